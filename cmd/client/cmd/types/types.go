// Package types holds the context keys shared between the root command and
// its subcommand packages.
package types

type contextKey string

// ClientAppKey carries the assembled *client.App through the command context.
const ClientAppKey contextKey = "client-app"
