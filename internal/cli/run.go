package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bracket-trader/internal/gateway"
	"bracket-trader/pkg/utils"
)

// newRunCmd creates the run command: a live session against the websocket
// market feed.
func newRunCmd(app *App) *cobra.Command {
	var feedURL string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a live trading session against the websocket feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			url := feedURL
			if url == "" {
				url = cfg.Feed.URL
			}
			if url == "" {
				return fmt.Errorf("no feed url configured; set feed.url or --feed-url")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !utils.IsSessionOpen() {
				app.Logger.Warn().
					Time("next_open", utils.NextSessionOpen()).
					Msg("Globex session appears closed")
			}

			feed := gateway.NewWSFeed(url, cfg.Instrument.Symbol, app.Logger)
			err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
				return feed.Connect(ctx)
			})
			if err != nil {
				return fmt.Errorf("connecting feed: %w", err)
			}
			go feed.Run(ctx)

			sess, err := newSession(app, feed)
			if err != nil {
				return err
			}
			defer sess.close()

			return sess.run(ctx)
		},
	}

	cmd.Flags().StringVar(&feedURL, "feed-url", "", "websocket feed url (overrides config)")
	return cmd
}
