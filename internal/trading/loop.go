package trading

import (
	"context"

	"github.com/rs/zerolog"

	"bracket-trader/internal/gateway"
	"bracket-trader/internal/logging"
)

// Loop serializes market ticks, broker callbacks, and user commands onto
// one execution context, so no two core operations ever run concurrently
// against the shared session state. Every handler runs inside fault
// containment: an unexpected panic is recorded as a sticky fault and the
// loop keeps running, relying on the next well-formed event to make
// progress again.
type Loop struct {
	ctrl     *Controller
	feed     gateway.MarketFeed
	gw       gateway.OrderGateway
	marker   gateway.PriceMarker
	logger   zerolog.Logger
	commands chan Command
}

// NewLoop creates the event loop for a controller. The loop is the only
// consumer of the feed's update channel; a gateway that marks prices
// in-process gets every quote forwarded to it rather than racing for
// the same channel.
func NewLoop(ctrl *Controller, feed gateway.MarketFeed, gw gateway.OrderGateway, logger zerolog.Logger) *Loop {
	marker, _ := gw.(gateway.PriceMarker)
	return &Loop{
		ctrl:     ctrl,
		feed:     feed,
		gw:       gw,
		marker:   marker,
		logger:   logger.With().Str("component", "loop").Logger(),
		commands: make(chan Command, 16),
	}
}

// Submit enqueues a user command. Fire-and-forget: the result is logged by
// the loop. Returns false when the queue is full.
func (l *Loop) Submit(cmd Command) bool {
	select {
	case l.commands <- cmd:
		return true
	default:
		l.logger.Warn().Str("kind", string(cmd.Kind)).Msg("Command queue full")
		return false
	}
}

// Run consumes all three event sources until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticks := l.feed.Updates()
	events := l.gw.Events()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-l.commands:
			l.contain("command", func() {
				res := l.ctrl.HandleCommand(ctx, cmd)
				if res.Outcome == OutcomeRefused {
					logging.LogRefusal(l.logger, string(cmd.Kind), res.Reason)
					return
				}
				l.logger.Info().Str("kind", string(cmd.Kind)).Str("outcome", string(res.Outcome)).Msg("Command handled")
			})

		case q, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			l.contain("tick", func() {
				if l.marker != nil {
					l.marker.MarkPrice(q)
				}
				l.ctrl.HandleTick(q)
			})

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			l.contain("event", func() {
				if u, isOrder := ev.(gateway.OrderUpdate); isOrder {
					logging.LogOrder(l.logger, u.Ref.Key(), string(u.State), u.AvgFillPrice)
				}
				l.ctrl.HandleEvent(ctx, ev)
			})
		}

		if ticks == nil && events == nil {
			l.logger.Info().Msg("All sources closed, stopping")
			return
		}
	}
}

// contain runs fn at the handler boundary. A recovered fault is logged and
// recorded but never propagated; faults are not retried.
func (l *Loop) contain(handler string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.ctrl.recordFault(handler, r)
			logging.LogFault(l.logger, handler, r)
		}
	}()
	fn()
}
