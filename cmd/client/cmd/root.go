package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/gen2brain/beeep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"flocksync/cmd/client/cmd/types"
	"flocksync/internal/app/client"
	"flocksync/internal/app/client/config"
	"flocksync/internal/logger"
	"flocksync/internal/notify"
)

// terminalAlerter renders toasts inline and routes pushes through the
// permission-gated desktop notification surface.
type terminalAlerter struct {
	push *notify.PushGate
}

func (terminalAlerter) Toast(title, body string) {
	if body != "" {
		color.Cyan("• %s: %s", title, body)
		return
	}
	color.Cyan("• %s", title)
}

func (a terminalAlerter) Push(title, body string) {
	a.push.Push(title, body)
}

// promptPermission asks on the terminal the first time a push is about to be
// delivered. Non-interactive sessions are an implicit denial.
type promptPermission struct{}

func (promptPermission) Request() bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Print("Allow desktop notifications for this session? [y/N] ")
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// desktopPusher hands one notification to the platform daemon.
type desktopPusher struct{}

func (desktopPusher) Push(title, body string) error {
	return beeep.Notify(title, body, "")
}

var (
	cfg       *config.Config
	log       *zap.Logger
	app       *client.App
	serverURL string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "flocksync",
	Short: "FlockSync keeps a unit's records on the device and in sync",
	Long: `FlockSync mirrors a church unit's remote records (members, attendance,
inventory, finance requests and more) into a local store so they stay
readable offline, pushes local changes back up, and delivers announcements
and notifications live over the backend's change feed.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg = config.MustLoad()
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	var err error
	log, err = logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	alerter := terminalAlerter{
		push: notify.NewPushGate(promptPermission{}, desktopPusher{}, log),
	}
	app, err = client.New(cfg, log, alerter)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}
