package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"flocksync/cmd/client/cmd/types"
	"flocksync/internal/app/client"
	"flocksync/internal/domain"
)

var SyncCmd = &cobra.Command{
	Use:   "sync [collection]",
	Short: "Refresh the local mirror from the backend",
	Long: `Without arguments sync refreshes every mirrored collection. Pass a
collection name (members, attendance_logs, inventory_items, ...) to refresh
just that one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("application is not initialized")
		}

		var collection domain.Collection
		if len(args) == 1 {
			collection = domain.Collection(args[0])
			if !known(collection) {
				return fmt.Errorf("unknown collection %q (one of: %s)",
					args[0], collectionNames())
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		started := time.Now()
		if err := app.Sync(ctx, collection); err != nil {
			return err
		}
		color.Green("Synced in %s", time.Since(started).Round(time.Millisecond))
		return nil
	},
}

func known(c domain.Collection) bool {
	for _, s := range domain.SyncedCollections() {
		if s == c {
			return true
		}
	}
	return false
}

func collectionNames() string {
	var names []string
	for _, c := range domain.SyncedCollections() {
		names = append(names, c.String())
	}
	return strings.Join(names, ", ")
}
