package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	tuichat "venturechat/cmd/vchat/chat"
	"venturechat/cmd/vchat/ui"
	"venturechat/internal/config"
	"venturechat/internal/logging"
)

var (
	// Global flags
	verbose bool
	apiURL  string
	wsURL   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vchat",
	Short: "vchat - terminal client for the venture forum",
	Long: `vchat is a terminal client for the venture forum, connecting investors
and startups over authenticated chat rooms.

Run without arguments to pick a conversation interactively.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
		}
		if wsURL != "" {
			cfg.API.WSURL = wsURL
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(logging.Options{Level: level, File: cfg.Logging.File}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		appCfg = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPickAndChat(cmd.Context())
	},
}

// appCfg is resolved once in PersistentPreRunE and shared by all commands.
var appCfg config.Config

func styles() ui.Styles {
	return ui.NewStyles(ui.ThemeByName(appCfg.UI.Theme))
}

// runPickAndChat lists the rooms, lets the user choose one, and opens it.
func runPickAndChat(ctx context.Context) error {
	a, err := newApp(appCfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.persistSession() }()

	rooms, err := a.api.Conversations(ctx)
	if err != nil {
		return friendlyError(err)
	}
	if len(rooms) == 0 {
		fmt.Println("No conversations yet. Start one with `vchat contact <startup-id>`.")
		return nil
	}

	room, ok, err := tuichat.PickRoom(rooms, styles())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return openConversation(a, room)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws-url", "", "Notification channel URL (overrides config)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(resetPasswordCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(startupsCmd)
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(contactCmd)
	rootCmd.AddCommand(cabinetsCmd)
	rootCmd.AddCommand(selectCabinetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
