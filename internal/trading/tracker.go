package trading

import (
	"github.com/rs/zerolog"

	"bracket-trader/internal/gateway"
	"bracket-trader/internal/models"
)

// TrackerAction tells the controller what a broker callback amounted to.
type TrackerAction int

const (
	ActionNone TrackerAction = iota
	ActionEntryFilled
	ActionExitFilled
	ActionLegCancelled
	ActionRejected
)

// TrackerResult is the interpreted outcome of one broker callback.
type TrackerResult struct {
	Action TrackerAction
	Leg    models.LegKind
	Price  float64
	Qty    int
	// Siblings holds the still-active legs to cancel after a rejection.
	Siblings []models.OrderRef
	// Deduped is true when an exit fill was discarded as already processed.
	Deduped bool
}

// BracketTracker owns the weak references to a confirmed trade's three legs
// and reconciles the broker's overlapping order-level and execution-level
// callbacks into at-most-once outcomes. It observes orders; it never owns
// execution.
type BracketTracker struct {
	logger  zerolog.Logger
	bracket *models.BracketOrder
	// processed holds composite exit keys (order id falling back to order
	// name, plus execution id when present) already handled as a
	// position-closing fill. Exits must be applied exactly once even when
	// the same fill arrives on both callback channels.
	processed map[string]struct{}
}

// NewBracketTracker creates an empty tracker.
func NewBracketTracker(logger zerolog.Logger) *BracketTracker {
	return &BracketTracker{
		logger:    logger.With().Str("component", "tracker").Logger(),
		processed: make(map[string]struct{}),
	}
}

// Begin starts tracking a freshly submitted bracket. At most one bracket
// group exists at a time; a second Begin while one is live is a logic
// error and is logged and ignored.
func (t *BracketTracker) Begin(refs gateway.BracketRefs, ocoGroup string, qty int) {
	if t.bracket != nil {
		t.logger.Error().Str("oco", ocoGroup).Msg("Begin called with live bracket, ignoring")
		return
	}
	t.bracket = &models.BracketOrder{
		Entry:    refs.Entry,
		Stop:     refs.Stop,
		Target:   refs.Target,
		OCOGroup: ocoGroup,
		Quantity: qty,
	}
}

// Active returns the live bracket, nil when flat.
func (t *BracketTracker) Active() *models.BracketOrder {
	return t.bracket
}

// Reset drops the bracket and every leg reference. Processed exit keys are
// kept for the session so late duplicate callbacks stay deduplicated.
func (t *BracketTracker) Reset() {
	t.bracket = nil
}

// classify matches a callback ref against the tracked legs.
func (t *BracketTracker) classify(ref models.OrderRef) (models.LegKind, bool) {
	if t.bracket == nil {
		return "", false
	}
	for _, leg := range []struct {
		kind models.LegKind
		ref  models.OrderRef
	}{
		{models.LegEntry, t.bracket.Entry},
		{models.LegStop, t.bracket.Stop},
		{models.LegTarget, t.bracket.Target},
	} {
		if leg.ref.IsZero() {
			continue
		}
		if (ref.ID != "" && ref.ID == leg.ref.ID) || (ref.Name != "" && ref.Name == leg.ref.Name) {
			return leg.kind, true
		}
	}
	return "", false
}

// exitKey builds the composite dedup key for an exit fill.
func exitKey(ref models.OrderRef, execID string) string {
	key := ref.Key()
	if execID != "" {
		key += ":" + execID
	}
	return key
}

// OnOrderUpdate interprets an order-state callback.
func (t *BracketTracker) OnOrderUpdate(ev gateway.OrderUpdate) TrackerResult {
	leg, ok := t.classify(ev.Ref)
	if !ok {
		return TrackerResult{}
	}

	switch ev.State {
	case models.OrderFilled:
		if leg == models.LegEntry {
			return t.entryFilled(ev.AvgFillPrice, ev.FilledQty)
		}
		return t.exitFilled(leg, ev.Ref, "", ev.AvgFillPrice, ev.FilledQty)

	case models.OrderCancelled:
		t.clearLeg(leg)
		t.logger.Info().Str("leg", string(leg)).Str("order", ev.Ref.Key()).Msg("Leg cancelled")
		return TrackerResult{Action: ActionLegCancelled, Leg: leg}

	case models.OrderRejected:
		siblings := t.activeSiblings(leg)
		t.logger.Warn().Str("leg", string(leg)).Str("reason", ev.Reason).Msg("Leg rejected")
		t.Reset()
		return TrackerResult{Action: ActionRejected, Leg: leg, Siblings: siblings}
	}
	return TrackerResult{}
}

// OnExecution interprets an execution-level callback. Executions carry the
// same fills as order updates; the composite key keeps exits single-shot.
func (t *BracketTracker) OnExecution(ev gateway.Execution) TrackerResult {
	leg, ok := t.classify(ev.Ref)
	if !ok {
		return TrackerResult{}
	}
	if leg == models.LegEntry {
		return t.entryFilled(ev.Price, ev.Quantity)
	}
	return t.exitFilled(leg, ev.Ref, ev.ExecID, ev.Price, ev.Quantity)
}

func (t *BracketTracker) entryFilled(price float64, qty int) TrackerResult {
	if t.bracket == nil {
		return TrackerResult{}
	}
	if t.bracket.AvgEntry > 0 {
		// Entry already applied; second channel's copy of the same fill.
		return TrackerResult{}
	}
	t.bracket.AvgEntry = price
	t.logger.Info().Float64("avg_entry", price).Int("qty", qty).Msg("Entry filled")
	return TrackerResult{Action: ActionEntryFilled, Leg: models.LegEntry, Price: price, Qty: qty}
}

func (t *BracketTracker) exitFilled(leg models.LegKind, ref models.OrderRef, execID string, price float64, qty int) TrackerResult {
	orderKey := exitKey(ref, "")
	fullKey := exitKey(ref, execID)
	if _, dup := t.processed[orderKey]; dup {
		return TrackerResult{Deduped: true}
	}
	if _, dup := t.processed[fullKey]; dup {
		return TrackerResult{Deduped: true}
	}
	t.processed[orderKey] = struct{}{}
	t.processed[fullKey] = struct{}{}

	t.logger.Info().Str("leg", string(leg)).Float64("price", price).Int("qty", qty).Msg("Exit filled")
	t.Reset()
	return TrackerResult{Action: ActionExitFilled, Leg: leg, Price: price, Qty: qty}
}

// activeSiblings returns the non-cleared legs other than the given one.
func (t *BracketTracker) activeSiblings(leg models.LegKind) []models.OrderRef {
	if t.bracket == nil {
		return nil
	}
	var out []models.OrderRef
	if leg != models.LegEntry && !t.bracket.Entry.IsZero() {
		out = append(out, t.bracket.Entry)
	}
	if leg != models.LegStop && !t.bracket.Stop.IsZero() {
		out = append(out, t.bracket.Stop)
	}
	if leg != models.LegTarget && !t.bracket.Target.IsZero() {
		out = append(out, t.bracket.Target)
	}
	return out
}

func (t *BracketTracker) clearLeg(leg models.LegKind) {
	if t.bracket == nil {
		return
	}
	switch leg {
	case models.LegEntry:
		t.bracket.Entry = models.OrderRef{}
	case models.LegStop:
		t.bracket.Stop = models.OrderRef{}
	case models.LegTarget:
		t.bracket.Target = models.OrderRef{}
	}
}
