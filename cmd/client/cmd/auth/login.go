package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and pull a first snapshot of your unit's records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		fmt.Print("Email: ")
		var email string
		if _, err := fmt.Scanln(&email); err != nil {
			return fmt.Errorf("read email: %w", err)
		}

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Println()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		profile, err := app.Login(ctx, email, string(password))
		if err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		color.Green("Signed in as %s (%s)", profile.FullName, profile.Role)

		// First sync can fail on a flaky connection; the session survives
		// and a later `flocksync sync` picks it up.
		fmt.Println("Syncing records...")
		if err := app.Sync(ctx, ""); err != nil {
			color.Yellow("warning: initial sync failed: %v", err)
			fmt.Println("You can keep working offline and run `flocksync sync` later.")
			return nil
		}
		color.Green("Records synced")
		return nil
	},
}
