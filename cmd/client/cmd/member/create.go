package member

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flocksync/internal/domain"
)

var (
	createName    string
	createPhone   string
	createSubunit string
)

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a member to your unit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}
		if createName == "" {
			return fmt.Errorf("--name is required")
		}

		profile, err := app.Profile()
		if err != nil {
			return err
		}
		sync, err := app.Syncer()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		m := domain.Member{
			ID:        uuid.NewString(),
			UnitID:    profile.UnitID,
			SubunitID: createSubunit,
			FullName:  createName,
			Phone:     createPhone,
			JoinedAt:  time.Now().UTC(),
		}
		if err := sync.CreateMember(ctx, m); err != nil {
			return err
		}
		color.Green("Added %s", m.FullName)
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVar(&createName, "name", "", "full name")
	CreateCmd.Flags().StringVar(&createPhone, "phone", "", "phone number")
	CreateCmd.Flags().StringVar(&createSubunit, "subunit", "", "subunit id")
}
