package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"flocksync/cmd/client/cmd/types"
	"flocksync/internal/app/client"
)

// AuthCmd is the parent command for session management.
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign out and inspect the current session",
}

func appFrom(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application is not initialized")
	}
	return app, nil
}
