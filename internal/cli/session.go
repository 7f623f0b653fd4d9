package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"bracket-trader/internal/chart"
	"bracket-trader/internal/gateway"
	"bracket-trader/internal/journal"
	"bracket-trader/internal/metrics"
	"bracket-trader/internal/models"
	"bracket-trader/internal/notify"
	"bracket-trader/internal/trading"
	"bracket-trader/pkg/utils"
)

// session wires one trading session: feed, gateway, display, controller,
// and event loop.
type session struct {
	app        *App
	feed       gateway.MarketFeed
	gw         *gateway.PaperGateway
	display    *chart.Dispatcher
	controller *trading.Controller
	loop       *trading.Loop
	journal    *journal.SQLiteJournal
}

// newSession builds a session around the given market feed. Orders route
// through the paper gateway; the host platform's own routing subsystem is
// outside this process.
func newSession(app *App, feed gateway.MarketFeed) (*session, error) {
	cfg := app.Config
	logger := app.Logger

	gw := gateway.NewPaperGateway(feed, logger)
	display := chart.NewDispatcher(chart.NewLogDisplay(logger), logger)

	var j *journal.SQLiteJournal
	if cfg.Journal.Enabled {
		var err error
		j, err = journal.Open(cfg.Journal.Path, cfg.Instrument.Symbol)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
	}

	notifier := notify.NewThrottle(notify.NewLogNotifier(logger), notify.DefaultThrottleInterval)

	deps := trading.Deps{
		Gateway:  gw,
		Feed:     feed,
		Display:  display,
		Notifier: notifier,
		Logger:   logger,
	}
	if j != nil {
		deps.Journal = j
	}
	controller := trading.NewController(cfg, deps)
	loop := trading.NewLoop(controller, feed, gw, logger)

	return &session{
		app:        app,
		feed:       feed,
		gw:         gw,
		display:    display,
		controller: controller,
		loop:       loop,
		journal:    j,
	}, nil
}

// run starts the session and consumes keyboard commands until EOF or ctx
// cancellation.
func (s *session) run(ctx context.Context) error {
	cfg := s.app.Config

	s.display.Start()
	defer s.display.Stop()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				s.app.Logger.Warn().Err(err).Msg("Metrics endpoint stopped")
			}
		}()
	}

	if err := s.controller.Start(ctx); err != nil {
		return fmt.Errorf("starting controller: %w", err)
	}

	go s.loop.Run(ctx)

	fmt.Println("commands: arm long | arm short | confirm | close | be | trail | status | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if done := s.dispatch(strings.TrimSpace(scanner.Text())); done {
			return nil
		}
	}
	return scanner.Err()
}

// dispatch translates one input line into a command. Returns true on quit.
func (s *session) dispatch(line string) bool {
	switch strings.ToLower(line) {
	case "":
	case "arm long", "long", "l":
		s.loop.Submit(trading.Command{Kind: trading.CommandArm, Direction: models.DirectionLong})
	case "arm short", "short", "s":
		s.loop.Submit(trading.Command{Kind: trading.CommandArm, Direction: models.DirectionShort})
	case "confirm", "c":
		s.loop.Submit(trading.Command{Kind: trading.CommandConfirm})
	case "close", "x":
		s.loop.Submit(trading.Command{Kind: trading.CommandClose})
	case "be", "breakeven":
		s.loop.Submit(trading.Command{Kind: trading.CommandBreakEven})
	case "trail", "t":
		s.loop.Submit(trading.Command{Kind: trading.CommandTrail})
	case "status", "st":
		state, dir := s.controller.State()
		q := s.feed.Quote()
		fmt.Printf("state=%s direction=%s bid=%.2f ask=%.2f last=%.2f\n", state, dir, q.Bid, q.Ask, q.Last)
		if intent, ok := s.controller.Intent(); ok {
			tick, _, known := s.feed.InstrumentInfo()
			if !known || tick <= 0 {
				tick = trading.FallbackTickSize
			}
			fmt.Printf("entry=%s stop=%s (%s) target=%s (%s)\n",
				utils.FormatPrice(intent.Entry, tick),
				utils.FormatPrice(intent.Stop, tick),
				utils.FormatSignedTicks((intent.Stop-intent.Entry)/tick),
				utils.FormatPrice(intent.Target, tick),
				utils.FormatSignedTicks((intent.Target-intent.Entry)/tick))
		}
		if f := s.controller.Faults(); f.Count > 0 {
			fmt.Printf("faults=%d last=%s\n", f.Count, f.LastMessage)
		}
	case "quit", "exit", "q":
		return true
	default:
		fmt.Printf("unknown command: %s\n", line)
	}
	return false
}

// close releases session resources.
func (s *session) close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
	_ = s.gw.Close()
	_ = s.feed.Close()
}
