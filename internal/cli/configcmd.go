package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"bracket-trader/internal/config"
	"bracket-trader/pkg/utils"
)

// newConfigCmd creates the config command, printing the resolved session
// configuration so a trader can verify what a run would use before arming
// anything.
func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config

			fmt.Printf("config file: %s\n\n", filepath.Join(config.DefaultConfigDir(), "config.toml"))

			fmt.Println("[instrument]")
			fmt.Printf("  symbol      = %s\n", cfg.Instrument.Symbol)
			fmt.Printf("  tick_size   = %v\n", cfg.Instrument.TickSize)
			fmt.Printf("  point_value = %v\n", cfg.Instrument.PointValue)
			fmt.Printf("  tag_prefix  = %s\n", cfg.Instrument.TagPrefix)

			fmt.Println("[risk]")
			fmt.Printf("  fixed_risk       = %s\n", utils.FormatUSD(cfg.Risk.FixedRiskUSD))
			fmt.Printf("  max_contracts    = %d\n", cfg.Risk.MaxContracts)
			fmt.Printf("  commission_on    = %v\n", cfg.Risk.CommissionOn)
			fmt.Printf("  commission       = %s\n", utils.FormatUSD(cfg.Risk.CommissionPerContract))
			fmt.Printf("  max_risk_warning = %s\n", utils.FormatUSD(cfg.Risk.MaxRiskWarningUSD))

			fmt.Println("[bracket]")
			fmt.Printf("  stop   = %d ticks\n", cfg.Bracket.DefaultStopTicks)
			fmt.Printf("  target = %d ticks\n", cfg.Bracket.DefaultTargetTicks)
			fmt.Printf("  be     = +%d ticks\n", cfg.Bracket.BreakEvenOffset)
			fmt.Printf("  trail  = %d ticks\n", cfg.Bracket.TrailOffset)

			fmt.Println("[feed]")
			fmt.Printf("  mode = %s\n", cfg.Feed.Mode)
			fmt.Printf("  url  = %s\n", cfg.Feed.URL)

			fmt.Println("[journal]")
			fmt.Printf("  enabled = %v\n", cfg.Journal.Enabled)
			fmt.Printf("  path    = %s\n", cfg.Journal.Path)

			fmt.Println("[metrics]")
			fmt.Printf("  enabled = %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  addr    = %s\n", cfg.Metrics.Addr)

			return nil
		},
	}
}
