package trading

import (
	"context"
	"fmt"
	"math"
	"time"

	"bracket-trader/internal/metrics"
	"bracket-trader/internal/models"
)

// finalizeSuppressWindow collapses rapid repeat finalize requests into one
// effective execution.
const finalizeSuppressWindow = 250 * time.Millisecond

// freePlacementLocked reports whether the trader may place lines anywhere:
// armed, not yet confirmed, flat. Clamping is skipped in this phase and
// enforced exactly once at confirm time.
func (c *Controller) freePlacementLocked() bool {
	return c.state.IsArmed()
}

// reconcileDragsLocked interprets marker positions as user edits. A marker
// at least a quarter tick away from its tracked price counts as a drag:
// the leg goes manual, the tracked price updates, validity is re-enforced
// subject to the free-placement rule, and a live order for that leg gets a
// price-modify unless the change is within an eighth tick of what the
// gateway already has.
func (c *Controller) reconcileDragsLocked(q models.Quote) {
	if c.intent == nil {
		return
	}
	tick := c.ticks.TickSize()
	if tick <= 0 {
		return
	}
	c.reconcileLegLocked(models.LegStop, q, tick)
	c.reconcileLegLocked(models.LegTarget, q, tick)
}

func (c *Controller) reconcileLegLocked(leg models.LegKind, q models.Quote, tick float64) {
	marker, ok := c.display.GetLinePrice(leg)
	if !ok {
		return
	}
	snapped := RoundToTick(marker, tick)

	tracked := c.intent.Stop
	adj := &c.legs.stop
	if leg == models.LegTarget {
		tracked = c.intent.Target
		adj = &c.legs.target
	}

	if math.Abs(snapped-tracked) < tick/4 {
		return
	}

	// First detection takes the leg out of auto-follow until disarm.
	adj.Manual = true
	newPrice := snapped

	if !c.freePlacementLocked() {
		newPrice = c.clampLegLocked(leg, snapped, q, tick)
		if newPrice != snapped {
			c.display.SetLinePrice(leg, newPrice)
			c.notifyThrottled("clamp", fmt.Sprintf("%s held %.2f from market", leg, newPrice))
		}
	}

	if leg == models.LegStop {
		c.intent.Stop = newPrice
	} else {
		c.intent.Target = newPrice
	}
	adj.OffsetTicks = (newPrice - c.intent.Entry) / tick

	c.modifyLegLocked(leg, newPrice, tick)

	c.logger.Debug().Str("leg", string(leg)).Float64("price", newPrice).Msg("Drag applied")
}

// clampLegLocked enforces validity for one leg, leaving the sibling as is.
func (c *Controller) clampLegLocked(leg models.LegKind, price float64, q models.Quote, tick float64) float64 {
	stop, target := c.intent.Stop, c.intent.Target
	if leg == models.LegStop {
		stop = price
	} else {
		target = price
	}
	v := EnforceValidity(c.direction, stop, target, q, tick)
	if leg == models.LegStop {
		return v.Stop
	}
	return v.Target
}

// modifyLegLocked issues a price-modify for a live order leg, skipping
// changes within an eighth tick of the last price sent to the gateway.
func (c *Controller) modifyLegLocked(leg models.LegKind, price float64, tick float64) {
	b := c.tracker.Active()
	if b == nil {
		return
	}
	ref := b.Stop
	if leg == models.LegTarget {
		ref = b.Target
	}
	if ref.IsZero() {
		return
	}

	if last, ok := c.lastSent[leg]; ok && math.Abs(price-last) <= tick/8 {
		return
	}

	var newLimit, newStop float64
	if leg == models.LegStop {
		newStop = price
	} else {
		newLimit = price
	}
	if err := c.gw.ModifyOrder(context.Background(), ref, newLimit, newStop); err != nil {
		c.logger.Warn().Err(err).Str("leg", string(leg)).Msg("Order modify failed")
		return
	}
	c.lastSent[leg] = price
	metrics.OrderModifies.WithLabelValues(string(leg)).Inc()
}

// FinalizeDrag runs once user interaction ends. It re-reads both leg
// markers directly as a fallback for drags not caught incrementally,
// applies a final clamp, and issues any outstanding modify commands.
// Safe to call from any input-event goroutine: an atomic in-progress guard
// makes it mutually exclusive with itself, and a repeat arriving within a
// short window of the previous run is suppressed.
func (c *Controller) FinalizeDrag() {
	if !c.finalizeInFlight.CompareAndSwap(false, true) {
		return
	}
	defer c.finalizeInFlight.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastFinalize.IsZero() && now.Sub(c.lastFinalize) < finalizeSuppressWindow {
		return
	}
	c.lastFinalize = now

	if c.intent == nil {
		return
	}
	c.reconcileDragsLocked(c.feed.Quote())
}
