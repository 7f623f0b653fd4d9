package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bracket-trader/internal/journal"
)

// newJournalCmd creates the journal command, listing recent completed
// trades from the audit journal.
func newJournalCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent completed trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			j, err := journal.Open(cfg.Journal.Path, cfg.Instrument.Symbol)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer j.Close()

			entries, err := j.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no trades recorded")
				return nil
			}

			fmt.Printf("%-20s %-8s %-6s %4s %10s %10s %-8s\n",
				"CLOSED", "SYMBOL", "SIDE", "QTY", "ENTRY", "EXIT", "REASON")
			for _, e := range entries {
				fmt.Printf("%-20s %-8s %-6s %4d %10.2f %10.2f %-8s\n",
					e.ClosedAt.Local().Format("2006-01-02 15:04:05"),
					e.Symbol, e.Direction, e.Quantity, e.AvgEntry, e.ExitPrice, e.ExitReason)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to list")
	return cmd
}
