// Package cli provides the command-line interface for the bracket trader.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bracket-trader/internal/config"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "bracket-trader",
		Short: "Manual bracket-trade assistant",
		Long: `bracket-trader places and manages a single bracket trade (entry +
protective stop + target) on one instrument, driven by a manual
two-step arm-then-confirm workflow.

Use 'bracket-trader run' against a live feed, or
'bracket-trader simulate' for a paper session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.AddCommand(
		newRunCmd(app),
		newSimulateCmd(app),
		newJournalCmd(app),
		newConfigCmd(app),
	)

	return rootCmd
}
