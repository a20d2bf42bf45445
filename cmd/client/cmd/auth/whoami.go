package auth

import (
	"fmt"

	"github.com/spf13/cobra"
)

var WhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		profile, err := app.Profile()
		if err != nil {
			return err
		}

		fmt.Printf("%s <%s>\n", profile.FullName, profile.Email)
		fmt.Printf("role: %s\n", profile.Role)
		if profile.UnitID != "" {
			fmt.Printf("unit: %s\n", profile.UnitID)
		}
		return nil
	},
}
