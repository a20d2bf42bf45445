package member

import (
	"fmt"

	"github.com/spf13/cobra"

	"flocksync/cmd/client/cmd/types"
	"flocksync/internal/app/client"
)

// MemberCmd is the parent command for the membership register.
var MemberCmd = &cobra.Command{
	Use:   "member",
	Short: "Browse and edit the membership register",
}

func appFrom(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application is not initialized")
	}
	return app, nil
}
