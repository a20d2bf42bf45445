package auth

import (
	"context"
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"flocksync/internal/app/client"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the session and forget the saved token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		if err := app.Logout(ctx); err != nil {
			if errors.Is(err, client.ErrNotSignedIn) {
				return err
			}
			// Mirror data stays on the device either way.
			color.Yellow("warning: remote sign-out failed: %v", err)
			return nil
		}
		color.Green("Signed out")
		return nil
	},
}
