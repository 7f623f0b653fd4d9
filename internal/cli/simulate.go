package cli

import (
	"context"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bracket-trader/internal/gateway"
	"bracket-trader/internal/models"
)

// newSimulateCmd creates the simulate command: a paper session priced off
// a random-walk feed, for exercising the workflow without any market
// connection.
func newSimulateCmd(app *App) *cobra.Command {
	var startPrice float64
	var tickInterval time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a paper session against a random-walk feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config

			tickSize := cfg.Instrument.TickSize
			pointValue := cfg.Instrument.PointValue
			if tickSize <= 0 {
				tickSize = 0.25
			}
			if pointValue <= 0 {
				pointValue = 50
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			feed := gateway.NewSimFeed(tickSize, pointValue)
			go randomWalk(ctx, feed, startPrice, tickSize, tickInterval)

			sess, err := newSession(app, feed)
			if err != nil {
				return err
			}
			defer sess.close()

			return sess.run(ctx)
		},
	}

	cmd.Flags().Float64Var(&startPrice, "start-price", 5000, "starting price of the random walk")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", 250*time.Millisecond, "delay between simulated ticks")
	return cmd
}

// randomWalk pushes a drifting quote into the feed until ctx is done.
func randomWalk(ctx context.Context, feed *gateway.SimFeed, price, tickSize float64, interval time.Duration) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	last := price

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			step := float64(rng.Intn(3)-1) * tickSize
			last += step
			feed.Push(models.Quote{
				Bid:  last - tickSize,
				Ask:  last,
				Last: last,
			})
		}
	}
}
