// Package watch runs the live notification channel in the foreground.
package watch

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"flocksync/cmd/client/cmd/types"
	"flocksync/internal/app/client"
)

const focusInterval = 5 * time.Minute

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and print announcements and notifications as they arrive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("application is not initialized")
		}

		ch, err := app.OpenChannel(cmd.Context())
		if err != nil {
			return err
		}
		defer ch.Close()

		printCounts := func() {
			fmt.Printf("unread: %d", ch.Unread())
			if pending := ch.Pending(); pending > 0 {
				fmt.Printf("  pending finance requests: %d", pending)
			}
			fmt.Println()
		}
		ch.OnChange(printCounts)

		color.Green("Connected. Press Ctrl-C to stop.")
		printCounts()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		// Periodic baseline refetch covers events dropped while the feed
		// was stalled; there is no replay log to recover them from.
		focus := time.NewTicker(focusInterval)
		defer focus.Stop()

		for {
			select {
			case <-focus.C:
				if err := ch.Focus(cmd.Context()); err != nil {
					color.Yellow("warning: counter refresh failed: %v", err)
				}
			case <-stop:
				fmt.Println("\nclosing...")
				return nil
			}
		}
	},
}
