package trading

import (
	"context"
	"fmt"

	apperrors "bracket-trader/internal/errors"
	"bracket-trader/internal/metrics"
	"bracket-trader/internal/models"
)

// breakEvenLocked moves the stop to average entry plus the configured
// offset. Refused when flat, when no stop leg is live, when the self-check
// failed, or when price has not yet moved at least one tick past entry in
// the favorable direction.
func (c *Controller) breakEvenLocked(ctx context.Context) OpResult {
	if c.state != models.StateInPosition {
		return RefusedErr(apperrors.ErrNotInPosition)
	}
	b := c.tracker.Active()
	if !b.HasLiveStop() {
		return RefusedErr(apperrors.ErrNoLiveStop)
	}
	if !c.selfCheckPassesLocked() {
		return RefusedErr(apperrors.ErrSelfCheckFailed)
	}

	q := c.feed.Quote()
	tick := c.ticks.TickSize()
	ref := q.ExitReference(c.direction)
	avg := b.AvgEntry

	profitable := false
	if c.direction == models.DirectionLong {
		profitable = ref >= avg+tick
	} else {
		profitable = ref <= avg-tick
	}
	if !profitable {
		c.notifyThrottled("be_blocked", fmt.Sprintf("break-even blocked: price %.2f not past entry %.2f", ref, avg))
		return RefusedErr(apperrors.ErrNotProfitable)
	}

	offset := float64(c.cfg.Bracket.BreakEvenOffset) * tick
	var newStop float64
	if c.direction == models.DirectionLong {
		newStop = avg + offset
	} else {
		newStop = avg - offset
	}
	newStop = c.applyStopLocked(ctx, newStop, q, tick)

	c.logger.Info().Float64("stop", newStop).Float64("avg_entry", avg).Msg("Stop moved to break-even")
	return Done()
}

// trailLocked re-anchors the stop at the configured distance behind the
// market. No profit gate: trailing is issued unconditionally.
func (c *Controller) trailLocked(ctx context.Context) OpResult {
	if c.state != models.StateInPosition {
		return RefusedErr(apperrors.ErrNotInPosition)
	}
	b := c.tracker.Active()
	if !b.HasLiveStop() {
		return RefusedErr(apperrors.ErrNoLiveStop)
	}
	if !c.selfCheckPassesLocked() {
		return RefusedErr(apperrors.ErrSelfCheckFailed)
	}

	q := c.feed.Quote()
	tick := c.ticks.TickSize()
	ref := q.ExitReference(c.direction)

	offset := float64(c.cfg.Bracket.TrailOffset) * tick
	var newStop float64
	if c.direction == models.DirectionLong {
		newStop = ref - offset
	} else {
		newStop = ref + offset
	}
	newStop = c.applyStopLocked(ctx, RoundToTick(newStop, tick), q, tick)

	c.logger.Info().Float64("stop", newStop).Float64("ref", ref).Msg("Stop trailed")
	return Done()
}

// applyStopLocked clamps, stores, displays, and modifies the live stop to
// the new price.
func (c *Controller) applyStopLocked(ctx context.Context, newStop float64, q models.Quote, tick float64) float64 {
	v := EnforceValidity(c.direction, newStop, c.intent.Target, q, tick)
	newStop = v.Stop

	c.intent.Stop = newStop
	if c.intent.Entry > 0 && tick > 0 {
		c.legs.stop.OffsetTicks = (newStop - c.intent.Entry) / tick
	}
	c.display.SetLinePrice(models.LegStop, newStop)

	ref := c.tracker.Active().Stop
	if err := c.gw.ModifyOrder(ctx, ref, 0, newStop); err != nil {
		c.logger.Warn().Err(err).Msg("Stop modify failed")
		return newStop
	}
	c.lastSent[models.LegStop] = newStop
	metrics.OrderModifies.WithLabelValues(string(models.LegStop)).Inc()
	return newStop
}
