package trading

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bracket-trader/internal/chart"
	"bracket-trader/internal/config"
	apperrors "bracket-trader/internal/errors"
	"bracket-trader/internal/gateway"
	"bracket-trader/internal/metrics"
	"bracket-trader/internal/models"
	"bracket-trader/internal/notify"
	"bracket-trader/pkg/utils"
)

// CommandKind is the closed set of user commands.
type CommandKind string

const (
	CommandArm       CommandKind = "ARM"
	CommandConfirm   CommandKind = "CONFIRM"
	CommandClose     CommandKind = "CLOSE"
	CommandBreakEven CommandKind = "BREAK_EVEN"
	CommandTrail     CommandKind = "TRAIL"
)

// Command is one user action. The presentation layer only translates raw
// input into these; all interpretation happens in the controller.
type Command struct {
	Kind      CommandKind
	Direction models.Direction // Arm only
}

// Outcome classifies an operation result.
type Outcome string

const (
	OutcomeDone    Outcome = "DONE"
	OutcomeRefused Outcome = "REFUSED"
	OutcomeFault   Outcome = "FAULT"
)

// OpResult is the result of one command: success, a guard-condition
// refusal with its reason, or a fault.
type OpResult struct {
	Outcome Outcome
	Reason  string
}

// Done returns a successful result.
func Done() OpResult { return OpResult{Outcome: OutcomeDone} }

// Refused returns a refusal with a reason.
func Refused(reason string) OpResult { return OpResult{Outcome: OutcomeRefused, Reason: reason} }

// RefusedErr returns a refusal carrying a sentinel error's message.
func RefusedErr(err error) OpResult { return Refused(err.Error()) }

// Faulted returns a fault result.
func Faulted(reason string) OpResult { return OpResult{Outcome: OutcomeFault, Reason: reason} }

// FaultStatus is the sticky record of contained handler faults.
type FaultStatus struct {
	Count       uint64
	LastMessage string
}

// TradeJournal records completed round trips. Implementations must not
// feed recorded data back into trading decisions.
type TradeJournal interface {
	Record(trade models.CompletedTrade) error
}

// Deps are the external collaborators of the controller.
type Deps struct {
	Gateway  gateway.OrderGateway
	Feed     gateway.MarketFeed
	Display  chart.MarkerDisplay
	Notifier *notify.Throttle
	Journal  TradeJournal
	Logger   zerolog.Logger
}

// legAdjusts holds the two exit legs' offsets and manual flags.
type legAdjusts struct {
	stop   models.LegAdjustment
	target models.LegAdjustment
}

// Controller is the arming state machine: the single owner of all trading
// session state. It consumes user commands and broker events, drives the
// sizing, validity, tracker, and drag components, and emits marker updates
// and gateway commands. All Handle methods and command operations must run
// on one logical thread; an internal mutex backs that guarantee for
// callers arriving from input-event goroutines.
type Controller struct {
	mu sync.Mutex

	cfg      *config.Config
	gw       gateway.OrderGateway
	feed     gateway.MarketFeed
	display  chart.MarkerDisplay
	notifier *notify.Throttle
	journal  TradeJournal
	logger   zerolog.Logger
	ns       chart.Namespace
	ticks    *TickSource
	tracker  *BracketTracker
	now      func() time.Time

	state     models.ArmingState
	direction models.Direction
	intent    *models.TradeIntent
	legs      legAdjusts

	selfCheck         *SelfCheckResult
	selfCheckNotified bool

	// lastSent holds the last price sent to the gateway per exit leg,
	// for the eighth-tick modify redundancy check.
	lastSent map[models.LegKind]float64

	// drag finalize guard
	finalizeInFlight atomic.Bool
	lastFinalize     time.Time

	faultCount uint64
	faultMu    sync.Mutex
	lastFault  string
}

// NewController creates a controller in the Idle state.
func NewController(cfg *config.Config, deps Deps) *Controller {
	seed := TickMetadata{TickSize: cfg.Instrument.TickSize, PointValue: cfg.Instrument.PointValue}
	return &Controller{
		cfg:      cfg,
		gw:       deps.Gateway,
		feed:     deps.Feed,
		display:  deps.Display,
		notifier: deps.Notifier,
		journal:  deps.Journal,
		logger:   deps.Logger.With().Str("component", "controller").Logger(),
		ns:       chart.NewNamespace(cfg.Instrument.TagPrefix),
		ticks:    NewTickSource(seed),
		tracker:  NewBracketTracker(deps.Logger),
		now:      time.Now,
		state:    models.StateIdle,
		lastSent: make(map[models.LegKind]float64),
	}
}

// Start runs the one-time session setup: pull instrument metadata, run the
// self-check, and rebuild local state from any live broker position.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshMetaLocked()
	res := RunSelfCheck(c.ticks.MetaOrFallback(), c.cfg.Risk)
	c.selfCheck = &res
	if !res.Passed {
		// One notification at failure time; refusals repeat it rate-limited.
		c.notifier.NotifyKey("selfcheck", res.Summary())
		c.selfCheckNotified = true
		c.logger.Error().Strs("reasons", res.Reasons).Msg("Self-check failed")
	} else {
		c.logger.Info().Msg("Self-check passed")
	}

	qty, avg, err := c.gw.Position(ctx)
	if err != nil {
		return fmt.Errorf("querying startup position: %w", err)
	}
	if qty != 0 {
		dir := models.DirectionLong
		if qty < 0 {
			dir = models.DirectionShort
		}
		c.state = models.StateInPosition
		c.direction = dir
		c.intent = &models.TradeIntent{Direction: dir, Entry: avg}
		c.tracker.Begin(gateway.BracketRefs{}, uuid.NewString(), abs(qty))
		c.tracker.bracket.AvgEntry = avg
		c.display.UpsertLine(models.LegEntry, avg, c.lineLabel(models.LegEntry, avg))
		c.logger.Info().Str("direction", string(dir)).Int("qty", abs(qty)).Float64("avg", avg).
			Msg("Rebuilt state from live broker position")
	}
	metrics.SetState(string(c.state))
	return nil
}

// State returns the current arming state and direction.
func (c *Controller) State() (models.ArmingState, models.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.direction
}

// Intent returns a copy of the working prices, if any.
func (c *Controller) Intent() (models.TradeIntent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intent == nil {
		return models.TradeIntent{}, false
	}
	return *c.intent, true
}

// Faults returns the sticky fault status.
func (c *Controller) Faults() FaultStatus {
	c.faultMu.Lock()
	defer c.faultMu.Unlock()
	return FaultStatus{Count: atomic.LoadUint64(&c.faultCount), LastMessage: c.lastFault}
}

func (c *Controller) recordFault(handler string, recovered interface{}) {
	atomic.AddUint64(&c.faultCount, 1)
	c.faultMu.Lock()
	c.lastFault = fmt.Sprintf("%s: %v", handler, recovered)
	c.faultMu.Unlock()
	metrics.Faults.Inc()
}

// HandleCommand executes one user command.
func (c *Controller) HandleCommand(ctx context.Context, cmd Command) OpResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res OpResult
	switch cmd.Kind {
	case CommandArm:
		res = c.armLocked(cmd.Direction)
	case CommandConfirm:
		res = c.confirmLocked(ctx)
	case CommandClose:
		res = c.closeLocked(ctx)
	case CommandBreakEven:
		res = c.breakEvenLocked(ctx)
	case CommandTrail:
		res = c.trailLocked(ctx)
	default:
		res = Refused(fmt.Sprintf("unknown command %q", cmd.Kind))
	}

	metrics.Commands.WithLabelValues(string(cmd.Kind), string(res.Outcome)).Inc()
	if res.Outcome == OutcomeRefused {
		metrics.Refusals.WithLabelValues(res.Reason).Inc()
	}
	metrics.SetState(string(c.state))
	return res
}

// armLocked seeds a new trade intent in the given direction. Arming the
// opposite side while still flat overwrites the direction and reseeds the
// lines directly, with no intermediate disarm.
func (c *Controller) armLocked(dir models.Direction) OpResult {
	if c.state == models.StatePendingEntry || c.state == models.StateInPosition {
		// Refused silently: logged, no notification.
		c.logger.Info().Str("state", string(c.state)).Msg("Arm refused, trade already live")
		return RefusedErr(apperrors.ErrNotFlat)
	}

	q := c.feed.Quote()
	c.refreshMetaLocked()
	tick := c.ticks.TickSize()

	entry := c.ticks.RoundToTick(q.Reference(dir))
	var stop, target float64
	if dir == models.DirectionLong {
		stop = entry - float64(c.cfg.Bracket.DefaultStopTicks)*tick
		target = entry + float64(c.cfg.Bracket.DefaultTargetTicks)*tick
	} else {
		stop = entry + float64(c.cfg.Bracket.DefaultStopTicks)*tick
		target = entry - float64(c.cfg.Bracket.DefaultTargetTicks)*tick
	}

	v := EnforceValidity(dir, stop, target, q, tick)
	c.intent = &models.TradeIntent{Direction: dir, Entry: entry, Stop: v.Stop, Target: v.Target}
	c.legs = legAdjusts{
		stop:   models.LegAdjustment{OffsetTicks: (v.Stop - entry) / tick},
		target: models.LegAdjustment{OffsetTicks: (v.Target - entry) / tick},
	}
	c.direction = dir
	c.state = models.ArmedState(dir)

	c.display.UpsertLine(models.LegEntry, entry, c.lineLabel(models.LegEntry, entry))
	c.display.UpsertLine(models.LegStop, v.Stop, c.lineLabel(models.LegStop, v.Stop))
	c.display.UpsertLine(models.LegTarget, v.Target, c.lineLabel(models.LegTarget, v.Target))

	c.logger.Info().Str("direction", string(dir)).
		Float64("entry", entry).Float64("stop", v.Stop).Float64("target", v.Target).
		Msg("Armed")
	return Done()
}

// confirmLocked submits the bracket. The market may have moved since
// arming, so validity is enforced again here, exactly once for the whole
// free-placement phase.
func (c *Controller) confirmLocked(ctx context.Context) OpResult {
	if !c.state.IsArmed() {
		c.logger.Info().Str("state", string(c.state)).Msg("Confirm refused, not armed")
		return RefusedErr(apperrors.ErrNotArmed)
	}
	if !c.selfCheckPassesLocked() {
		return RefusedErr(apperrors.ErrSelfCheckFailed)
	}

	q := c.feed.Quote()
	c.refreshMetaLocked()
	meta := c.ticks.MetaOrFallback()
	tick := meta.TickSize

	v := EnforceValidity(c.direction, c.intent.Stop, c.intent.Target, q, tick)
	if v.Clamped {
		c.notifyThrottled("clamp", fmt.Sprintf("prices adjusted to market: stop %.2f target %.2f", v.Stop, v.Target))
	}
	c.intent.Stop = v.Stop
	c.intent.Target = v.Target

	in := c.sizingInputs()
	qty := CalculateQuantity(c.intent.Entry, c.intent.Stop, meta, in)
	if qty < 1 {
		c.notifyThrottled("qty_blocked", "confirm blocked: risk too small for one contract at this stop distance")
		return RefusedErr(apperrors.ErrQuantityTooSmall)
	}
	if risk := PerTradeRisk(c.intent.Entry, c.intent.Stop, qty, meta, in); c.cfg.Risk.MaxRiskWarningUSD > 0 && risk > c.cfg.Risk.MaxRiskWarningUSD {
		c.notifyThrottled("risk_warning", fmt.Sprintf("warning: trade risk %s exceeds %s",
			utils.FormatUSD(risk), utils.FormatUSD(c.cfg.Risk.MaxRiskWarningUSD)))
	}

	oco := uuid.NewString()
	spec := gateway.BracketSpec{
		Direction:   c.direction,
		Quantity:    qty,
		StopPrice:   c.intent.Stop,
		TargetPrice: c.intent.Target,
		OCOGroup:    oco,
		EntryName:   c.ns.EntryOrderName(c.direction),
		StopName:    c.ns.StopOrderName(),
		TargetName:  c.ns.TargetOrderName(),
	}
	refs, err := c.gw.SubmitBracket(ctx, spec)
	if err != nil {
		err = apperrors.NewGatewayError("submit", "bracket submission failed", err)
		c.logger.Error().Err(err).Msg("Bracket submission failed")
		c.notifyThrottled("submit_failed", "bracket submission failed: "+err.Error())
		return Faulted(err.Error())
	}

	c.tracker.Begin(refs, oco, qty)
	c.lastSent[models.LegStop] = c.intent.Stop
	c.lastSent[models.LegTarget] = c.intent.Target
	c.state = models.StatePendingEntry

	metrics.OrdersSubmitted.WithLabelValues(string(models.LegEntry)).Inc()
	metrics.OrdersSubmitted.WithLabelValues(string(models.LegStop)).Inc()
	metrics.OrdersSubmitted.WithLabelValues(string(models.LegTarget)).Inc()

	c.logger.Info().Int("qty", qty).Str("oco", oco).
		Float64("stop", c.intent.Stop).Float64("target", c.intent.Target).
		Msg("Bracket submitted")
	return Done()
}

// closeLocked cancels all tracked legs, flattens any live position, and
// forces Idle with prices cleared. Valid from any state.
func (c *Controller) closeLocked(ctx context.Context) OpResult {
	qty := 0
	dir := c.direction
	if b := c.tracker.Active(); b != nil {
		for _, leg := range []struct {
			kind models.LegKind
			ref  models.OrderRef
		}{
			{models.LegEntry, b.Entry}, {models.LegStop, b.Stop}, {models.LegTarget, b.Target},
		} {
			if leg.ref.IsZero() {
				continue
			}
			if err := c.gw.CancelOrder(ctx, leg.ref); err != nil {
				c.logger.Warn().Err(err).Str("leg", string(leg.kind)).Msg("Cancel failed")
			}
		}
		// A market entry can be filled at the broker while its fill event
		// is still queued, so a pending bracket flattens the same as a
		// confirmed position.
		if c.state == models.StateInPosition || c.state == models.StatePendingEntry {
			qty = b.Quantity
		}
	}
	if liveQty, _, err := c.gw.Position(ctx); err == nil && abs(liveQty) > qty {
		qty = abs(liveQty)
		if liveQty > 0 {
			dir = models.DirectionLong
		} else {
			dir = models.DirectionShort
		}
	}
	if qty > 0 {
		if err := c.gw.Flatten(ctx, c.ns.CloseOrderName(), dir, qty); err != nil {
			c.logger.Error().Err(err).Msg("Flatten failed")
		}
	}
	c.cleanupLocked("closed by user")
	c.logger.Info().Msg("Closed")
	return Done()
}

// cleanupLocked resets all session trade state to flat Idle.
func (c *Controller) cleanupLocked(reason string) {
	c.state = models.StateIdle
	c.intent = nil
	c.legs = legAdjusts{}
	c.tracker.Reset()
	c.lastSent = make(map[models.LegKind]float64)
	c.display.RemoveAll()
	metrics.SetState(string(c.state))
	c.logger.Debug().Str("reason", reason).Msg("State cleared")
}

// HandleTick processes one market update: metadata refresh, pre-confirm
// market follow, and incremental drag detection.
func (c *Controller) HandleTick(q models.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics.Ticks.Inc()

	c.refreshMetaLocked()

	if c.state.IsArmed() {
		c.followMarketLocked(q)
	}
	if c.state.IsArmed() || c.state == models.StateInPosition {
		c.reconcileDragsLocked(q)
	}
}

// followMarketLocked re-seeds entry from the live reference while armed and
// unconfirmed, shifting non-manual legs by their stored offsets. Movement
// below a quarter tick is ignored.
func (c *Controller) followMarketLocked(q models.Quote) {
	tick := c.ticks.TickSize()
	ref := c.ticks.RoundToTick(q.Reference(c.direction))
	if ref <= 0 || math.Abs(ref-c.intent.Entry) < tick/4 {
		return
	}

	c.intent.Entry = ref
	c.display.SetLinePrice(models.LegEntry, ref)

	if !c.legs.stop.Manual {
		c.intent.Stop = ref + c.legs.stop.OffsetTicks*tick
	}
	if !c.legs.target.Manual {
		c.intent.Target = ref + c.legs.target.OffsetTicks*tick
	}

	v := EnforceValidity(c.direction, c.intent.Stop, c.intent.Target, q, tick)
	if !c.legs.stop.Manual {
		c.intent.Stop = v.Stop
		c.display.SetLinePrice(models.LegStop, v.Stop)
	}
	if !c.legs.target.Manual {
		c.intent.Target = v.Target
		c.display.SetLinePrice(models.LegTarget, v.Target)
	}
}

// HandleEvent processes one broker callback.
func (c *Controller) HandleEvent(ctx context.Context, ev gateway.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case gateway.OrderUpdate:
		c.applyTrackerLocked(ctx, c.tracker.OnOrderUpdate(e))
	case gateway.Execution:
		c.applyTrackerLocked(ctx, c.tracker.OnExecution(e))
	case gateway.PositionUpdate:
		c.applyPositionLocked(e)
	}
	metrics.SetState(string(c.state))
}

func (c *Controller) applyTrackerLocked(ctx context.Context, res TrackerResult) {
	if res.Deduped {
		metrics.ExitFillsDeduped.Inc()
		return
	}

	switch res.Action {
	case ActionEntryFilled:
		if c.state != models.StatePendingEntry {
			return
		}
		c.state = models.StateInPosition
		if c.intent != nil {
			c.intent.Entry = res.Price
		}
		c.display.UpsertLine(models.LegEntry, res.Price, c.lineLabel(models.LegEntry, res.Price))
		c.logger.Info().Float64("avg_entry", res.Price).Msg("In position")

	case ActionExitFilled:
		c.recordTradeLocked(res)
		c.cleanupLocked("exit fill on " + string(res.Leg))
		c.logger.Info().Str("leg", string(res.Leg)).Float64("price", res.Price).Msg("Flat")

	case ActionLegCancelled:
		// Reference already cleared by the tracker.

	case ActionRejected:
		for _, ref := range res.Siblings {
			if err := c.gw.CancelOrder(ctx, ref); err != nil {
				c.logger.Warn().Err(err).Str("order", ref.Key()).Msg("Sibling cancel failed")
			}
		}
		c.notifyThrottled("reject", apperrors.ErrOrderRejected.Error()+", bracket cancelled")
		c.cleanupLocked("leg rejected")
	}
}

func (c *Controller) applyPositionLocked(e gateway.PositionUpdate) {
	// A flat report while we still think a trade is live means the position
	// was closed out of band; fall back to full cleanup.
	if e.Quantity == 0 && (c.state == models.StateInPosition || c.state == models.StatePendingEntry) {
		if c.tracker.Active() != nil {
			// Exit fill callbacks normally arrive first and clean up; this
			// path only fires when they never came.
			c.logger.Warn().Msg("Position flat without exit fill, cleaning up")
			c.cleanupLocked("position flat")
		}
	}
}

func (c *Controller) recordTradeLocked(res TrackerResult) {
	if c.journal == nil || c.intent == nil {
		return
	}
	reason := "target"
	if res.Leg == models.LegStop {
		reason = "stop"
	}
	trade := models.CompletedTrade{
		Direction:  c.direction,
		Quantity:   res.Qty,
		AvgEntry:   c.intent.Entry,
		ExitPrice:  res.Price,
		ExitReason: reason,
	}
	if err := c.journal.Record(trade); err != nil {
		c.logger.Warn().Err(err).Msg("Journal write failed")
	}
}

// selfCheckPassesLocked gates order-affecting operations. The first
// failure notified once at Start; refusals repeat it rate-limited.
func (c *Controller) selfCheckPassesLocked() bool {
	if c.selfCheck == nil {
		res := RunSelfCheck(c.ticks.MetaOrFallback(), c.cfg.Risk)
		c.selfCheck = &res
	}
	if c.selfCheck.Passed {
		return true
	}
	c.notifyThrottled("selfcheck", c.selfCheck.Summary())
	return false
}

// notifyThrottled surfaces one notice through both the notifier and the
// HUD. The throttle decision is shared: a suppressed key reaches neither
// sink, so rapid movement cannot flood the display either.
func (c *Controller) notifyThrottled(key, text string) {
	if c.notifier != nil && !c.notifier.NotifyKey(key, text) {
		return
	}
	c.display.ShowNotification(text)
}

// refreshMetaLocked pulls instrument metadata from the feed into the tick
// source. Invalid feed values never evict a known-good cache.
func (c *Controller) refreshMetaLocked() {
	if tickSize, pointValue, ok := c.feed.InstrumentInfo(); ok {
		c.ticks.Set(TickMetadata{TickSize: tickSize, PointValue: pointValue})
	}
}

func (c *Controller) sizingInputs() SizingInputs {
	return SizingInputs{
		FixedRiskUSD:          c.cfg.Risk.FixedRiskUSD,
		CommissionOn:          c.cfg.Risk.CommissionOn,
		CommissionPerContract: c.cfg.Risk.CommissionPerContract,
		MaxContracts:          c.cfg.Risk.MaxContracts,
	}
}

func (c *Controller) lineLabel(kind models.LegKind, price float64) string {
	formatted := utils.FormatPrice(price, c.ticks.TickSize())
	switch kind {
	case models.LegStop:
		return "STOP " + formatted
	case models.LegTarget:
		return "TARGET " + formatted
	default:
		return "ENTRY " + formatted
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
