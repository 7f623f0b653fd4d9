package trading

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"bracket-trader/internal/chart"
	"bracket-trader/internal/config"
	"bracket-trader/internal/gateway"
	"bracket-trader/internal/models"
	"bracket-trader/internal/notify"
)

type modifyCall struct {
	ref      models.OrderRef
	newLimit float64
	newStop  float64
}

// stubGateway records every order command and answers with canned refs.
type stubGateway struct {
	mu        sync.Mutex
	submitted []gateway.BracketSpec
	modifies  []modifyCall
	cancels   []models.OrderRef
	flattens  int
	submitErr error
	posQty    int
	posAvg    float64
	events    chan gateway.Event
}

func newStubGateway() *stubGateway {
	return &stubGateway{events: make(chan gateway.Event, 64)}
}

func (g *stubGateway) SubmitBracket(ctx context.Context, spec gateway.BracketSpec) (gateway.BracketRefs, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return gateway.BracketRefs{}, g.submitErr
	}
	g.submitted = append(g.submitted, spec)
	return gateway.BracketRefs{
		Entry:  models.OrderRef{ID: "e-1", Name: spec.EntryName},
		Stop:   models.OrderRef{ID: "s-1", Name: spec.StopName},
		Target: models.OrderRef{ID: "t-1", Name: spec.TargetName},
	}, nil
}

func (g *stubGateway) ModifyOrder(ctx context.Context, ref models.OrderRef, newLimit, newStop float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modifies = append(g.modifies, modifyCall{ref: ref, newLimit: newLimit, newStop: newStop})
	return nil
}

func (g *stubGateway) CancelOrder(ctx context.Context, ref models.OrderRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, ref)
	return nil
}

func (g *stubGateway) Flatten(ctx context.Context, name string, dir models.Direction, qty int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flattens++
	return nil
}

func (g *stubGateway) Position(ctx context.Context) (int, float64, error) {
	return g.posQty, g.posAvg, nil
}

func (g *stubGateway) Events() <-chan gateway.Event {
	return g.events
}

func (g *stubGateway) modifyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.modifies)
}

func testConfig() *config.Config {
	return &config.Config{
		Instrument: config.InstrumentConfig{
			Symbol:     "ES",
			TickSize:   0.25,
			PointValue: 50,
			TagPrefix:  "BT1",
		},
		Risk: config.RiskConfig{
			FixedRiskUSD: 200,
			MaxContracts: 10,
		},
		Bracket: config.BracketConfig{
			DefaultStopTicks:   20,
			DefaultTargetTicks: 40,
			BreakEvenOffset:    1,
			TrailOffset:        8,
		},
	}
}

type fixture struct {
	ctrl    *Controller
	gw      *stubGateway
	feed    *gateway.SimFeed
	display *chart.MemoryDisplay
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	gw := newStubGateway()
	feed := gateway.NewSimFeed(0.25, 50)
	feed.Push(models.Quote{Bid: 5000.00, Ask: 5000.25, Last: 5000.00})
	display := chart.NewMemoryDisplay()

	ctrl := NewController(cfg, Deps{
		Gateway:  gw,
		Feed:     feed,
		Display:  display,
		Notifier: notify.NewThrottle(notify.Func(func(string) {}), 0),
		Logger:   zerolog.Nop(),
	})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &fixture{ctrl: ctrl, gw: gw, feed: feed, display: display}
}

func (f *fixture) cmd(t *testing.T, kind CommandKind, dir models.Direction) OpResult {
	t.Helper()
	return f.ctrl.HandleCommand(context.Background(), Command{Kind: kind, Direction: dir})
}

func (f *fixture) enterPosition(t *testing.T) {
	t.Helper()
	if res := f.cmd(t, CommandArm, models.DirectionLong); res.Outcome != OutcomeDone {
		t.Fatalf("arm: %+v", res)
	}
	if res := f.cmd(t, CommandConfirm, ""); res.Outcome != OutcomeDone {
		t.Fatalf("confirm: %+v", res)
	}
	f.ctrl.HandleEvent(context.Background(), gateway.OrderUpdate{
		Ref: models.OrderRef{ID: "e-1"}, State: models.OrderFilled, AvgFillPrice: 5000.25, FilledQty: 1,
	})
	if state, _ := f.ctrl.State(); state != models.StateInPosition {
		t.Fatalf("state after entry fill = %s", state)
	}
}

func TestArmSeedsBracketFromMarket(t *testing.T) {
	f := newFixture(t, testConfig())

	res := f.cmd(t, CommandArm, models.DirectionLong)
	if res.Outcome != OutcomeDone {
		t.Fatalf("arm = %+v", res)
	}
	state, dir := f.ctrl.State()
	if state != models.StateArmedLong || dir != models.DirectionLong {
		t.Errorf("state = %s %s", state, dir)
	}

	intent, ok := f.ctrl.Intent()
	if !ok {
		t.Fatal("no intent after arm")
	}
	// Long enters at the ask; 20 and 40 tick defaults.
	if intent.Entry != 5000.25 || intent.Stop != 4995.25 || intent.Target != 5010.25 {
		t.Errorf("intent = %+v", intent)
	}

	for _, kind := range []models.LegKind{models.LegEntry, models.LegStop, models.LegTarget} {
		if _, ok := f.display.GetLinePrice(kind); !ok {
			t.Errorf("no %s line drawn", kind)
		}
	}
}

func TestArmShortUsesBid(t *testing.T) {
	f := newFixture(t, testConfig())

	f.cmd(t, CommandArm, models.DirectionShort)
	intent, _ := f.ctrl.Intent()
	if intent.Entry != 5000.00 || intent.Stop != 5005.00 || intent.Target != 4990.00 {
		t.Errorf("short intent = %+v", intent)
	}
}

func TestArmOppositeOverwritesWhileFlat(t *testing.T) {
	f := newFixture(t, testConfig())

	f.cmd(t, CommandArm, models.DirectionLong)
	res := f.cmd(t, CommandArm, models.DirectionShort)
	if res.Outcome != OutcomeDone {
		t.Fatalf("re-arm = %+v", res)
	}
	state, dir := f.ctrl.State()
	if state != models.StateArmedShort || dir != models.DirectionShort {
		t.Errorf("state = %s %s", state, dir)
	}
	intent, _ := f.ctrl.Intent()
	if intent.Entry != 5000.00 {
		t.Errorf("entry not reseeded from bid: %v", intent.Entry)
	}
}

func TestArmRefusedWhileTradeLive(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)
	f.cmd(t, CommandConfirm, "")

	res := f.cmd(t, CommandArm, models.DirectionShort)
	if res.Outcome != OutcomeRefused {
		t.Fatalf("arm while pending = %+v", res)
	}
	if state, _ := f.ctrl.State(); state != models.StatePendingEntry {
		t.Errorf("state disturbed: %s", state)
	}
}

func TestConfirmRefusedWhenNotArmed(t *testing.T) {
	f := newFixture(t, testConfig())
	res := f.cmd(t, CommandConfirm, "")
	if res.Outcome != OutcomeRefused {
		t.Errorf("confirm from idle = %+v", res)
	}
}

func TestConfirmSizesAndSubmits(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)

	res := f.cmd(t, CommandConfirm, "")
	if res.Outcome != OutcomeDone {
		t.Fatalf("confirm = %+v", res)
	}
	if len(f.gw.submitted) != 1 {
		t.Fatalf("submissions = %d", len(f.gw.submitted))
	}

	spec := f.gw.submitted[0]
	// 20 ticks at $12.50 is $250 per contract; $200 risk buys 1.
	if spec.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", spec.Quantity)
	}
	if spec.OCOGroup == "" {
		t.Error("no OCO group assigned")
	}
	if spec.StopPrice != 4995.25 || spec.TargetPrice != 5010.25 {
		t.Errorf("prices = %v / %v", spec.StopPrice, spec.TargetPrice)
	}
	if !strings.HasPrefix(spec.StopName, "BT1_") {
		t.Errorf("stop name not namespaced: %s", spec.StopName)
	}
	if state, _ := f.ctrl.State(); state != models.StatePendingEntry {
		t.Errorf("state = %s", state)
	}
}

func TestConfirmRefusedWhenQuantityZero(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.FixedRiskUSD = 100 // 0.4 contracts at a 20 tick stop
	f := newFixture(t, cfg)
	f.cmd(t, CommandArm, models.DirectionLong)

	res := f.cmd(t, CommandConfirm, "")
	if res.Outcome != OutcomeRefused {
		t.Fatalf("confirm = %+v", res)
	}
	if len(f.gw.submitted) != 0 {
		t.Error("bracket submitted despite zero quantity")
	}
	if state, _ := f.ctrl.State(); state != models.StateArmedLong {
		t.Errorf("state = %s, want still armed", state)
	}
}

func TestConfirmReclampsAfterMarketMove(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)

	// Market ran up past the armed target before the trader confirmed.
	f.feed.Push(models.Quote{Bid: 5010.00, Ask: 5010.25, Last: 5010.00})

	res := f.cmd(t, CommandConfirm, "")
	if res.Outcome != OutcomeDone {
		t.Fatalf("confirm = %+v", res)
	}
	spec := f.gw.submitted[0]
	if spec.TargetPrice != 5010.50 {
		t.Errorf("target = %v, want clamped to 5010.50", spec.TargetPrice)
	}
	found := false
	for _, n := range f.display.Notifications() {
		if strings.Contains(n, "adjusted") {
			found = true
		}
	}
	if !found {
		t.Error("no clamp notification shown")
	}
}

func TestEntryFillMovesToInPosition(t *testing.T) {
	f := newFixture(t, testConfig())
	f.enterPosition(t)

	intent, _ := f.ctrl.Intent()
	if intent.Entry != 5000.25 {
		t.Errorf("entry not updated to fill price: %v", intent.Entry)
	}

	// Duplicate fill on the execution channel changes nothing.
	f.ctrl.HandleEvent(context.Background(), gateway.Execution{
		Ref: models.OrderRef{ID: "e-1"}, ExecID: "x-1", Quantity: 1, Price: 5000.25,
	})
	if state, _ := f.ctrl.State(); state != models.StateInPosition {
		t.Errorf("state = %s", state)
	}
}

func TestExitFillGoesFlat(t *testing.T) {
	f := newFixture(t, testConfig())
	f.enterPosition(t)

	f.ctrl.HandleEvent(context.Background(), gateway.OrderUpdate{
		Ref: models.OrderRef{ID: "t-1"}, State: models.OrderFilled, AvgFillPrice: 5010.25, FilledQty: 1,
	})

	if state, _ := f.ctrl.State(); state != models.StateIdle {
		t.Errorf("state = %s", state)
	}
	if _, ok := f.ctrl.Intent(); ok {
		t.Error("intent survived exit fill")
	}
	if _, ok := f.display.GetLinePrice(models.LegEntry); ok {
		t.Error("lines not removed")
	}
}

func TestRejectCancelsSiblingsAndCleansUp(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)
	f.cmd(t, CommandConfirm, "")

	f.ctrl.HandleEvent(context.Background(), gateway.OrderUpdate{
		Ref: models.OrderRef{ID: "t-1"}, State: models.OrderRejected, Reason: "margin",
	})

	if len(f.gw.cancels) != 2 {
		t.Errorf("cancels = %v, want entry and stop", f.gw.cancels)
	}
	if state, _ := f.ctrl.State(); state != models.StateIdle {
		t.Errorf("state = %s", state)
	}
}

func TestOutOfBandFlatCleansUp(t *testing.T) {
	f := newFixture(t, testConfig())
	f.enterPosition(t)

	// Position closed from outside this process; no exit fill ever arrives.
	f.ctrl.HandleEvent(context.Background(), gateway.PositionUpdate{Quantity: 0})

	if state, _ := f.ctrl.State(); state != models.StateIdle {
		t.Errorf("state = %s", state)
	}
}

func TestMarketFollowShiftsLegs(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)

	q := models.Quote{Bid: 5001.00, Ask: 5001.25, Last: 5001.00}
	f.feed.Push(q)
	f.ctrl.HandleTick(q)

	intent, _ := f.ctrl.Intent()
	if intent.Entry != 5001.25 || intent.Stop != 4996.25 || intent.Target != 5011.25 {
		t.Errorf("intent after follow = %+v", intent)
	}
	if p, _ := f.display.GetLinePrice(models.LegStop); p != 4996.25 {
		t.Errorf("stop line = %v", p)
	}
}

func TestMarketFollowIgnoresSubTickNoise(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)
	before, _ := f.ctrl.Intent()

	// Same quote again: zero movement, nothing should change.
	f.ctrl.HandleTick(models.Quote{Bid: 5000.00, Ask: 5000.25, Last: 5000.00})

	after, _ := f.ctrl.Intent()
	if after != before {
		t.Errorf("intent moved without market movement: %+v -> %+v", before, after)
	}
}

func TestMarketFollowLeavesManualLegPinned(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)

	// Drag the stop; the next ticks must not re-derive it from entry.
	f.display.SetLinePrice(models.LegStop, 4990.00)
	f.ctrl.HandleTick(models.Quote{Bid: 5000.00, Ask: 5000.25, Last: 5000.00})

	q := models.Quote{Bid: 5002.00, Ask: 5002.25, Last: 5002.00}
	f.feed.Push(q)
	f.ctrl.HandleTick(q)

	intent, _ := f.ctrl.Intent()
	if intent.Entry != 5002.25 {
		t.Errorf("entry = %v", intent.Entry)
	}
	if intent.Stop != 4990.00 {
		t.Errorf("manual stop moved: %v", intent.Stop)
	}
	if intent.Target != 5012.25 {
		t.Errorf("auto target = %v", intent.Target)
	}
}

func TestBreakEvenRequiresProfit(t *testing.T) {
	f := newFixture(t, testConfig())
	f.enterPosition(t)

	// Bid below entry: blocked.
	f.feed.Push(models.Quote{Bid: 4999.75, Ask: 5000.00, Last: 4999.75})
	res := f.cmd(t, CommandBreakEven, "")
	if res.Outcome != OutcomeRefused {
		t.Fatalf("break-even below entry = %+v", res)
	}

	// Bid one tick past entry: allowed. Offset 1 tick above average.
	f.feed.Push(models.Quote{Bid: 5000.75, Ask: 5001.00, Last: 5000.75})
	res = f.cmd(t, CommandBreakEven, "")
	if res.Outcome != OutcomeDone {
		t.Fatalf("break-even past entry = %+v", res)
	}

	intent, _ := f.ctrl.Intent()
	if math.Abs(intent.Stop-5000.50) > 1e-9 {
		t.Errorf("stop = %v, want 5000.50", intent.Stop)
	}
	last := f.gw.modifies[len(f.gw.modifies)-1]
	if math.Abs(last.newStop-5000.50) > 1e-9 || last.ref.ID != "s-1" {
		t.Errorf("modify = %+v", last)
	}
}

func TestBreakEvenRefusedWhenFlat(t *testing.T) {
	f := newFixture(t, testConfig())
	if res := f.cmd(t, CommandBreakEven, ""); res.Outcome != OutcomeRefused {
		t.Errorf("break-even while flat = %+v", res)
	}
}

func TestTrailHasNoProfitGate(t *testing.T) {
	f := newFixture(t, testConfig())
	f.enterPosition(t)

	// Bid below entry; trailing still re-anchors 8 ticks behind.
	f.feed.Push(models.Quote{Bid: 4999.50, Ask: 4999.75, Last: 4999.50})
	res := f.cmd(t, CommandTrail, "")
	if res.Outcome != OutcomeDone {
		t.Fatalf("trail = %+v", res)
	}

	intent, _ := f.ctrl.Intent()
	if math.Abs(intent.Stop-4997.50) > 1e-9 {
		t.Errorf("stop = %v, want 4997.50", intent.Stop)
	}
}

func TestTrailRefusedWithoutLiveStop(t *testing.T) {
	f := newFixture(t, testConfig())
	f.enterPosition(t)

	// Stop cancelled out of band.
	f.ctrl.HandleEvent(context.Background(), gateway.OrderUpdate{
		Ref: models.OrderRef{ID: "s-1"}, State: models.OrderCancelled,
	})
	if res := f.cmd(t, CommandTrail, ""); res.Outcome != OutcomeRefused {
		t.Errorf("trail without stop = %+v", res)
	}
}

func TestCloseFromArmed(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)

	res := f.cmd(t, CommandClose, "")
	if res.Outcome != OutcomeDone {
		t.Fatalf("close = %+v", res)
	}
	if state, _ := f.ctrl.State(); state != models.StateIdle {
		t.Errorf("state = %s", state)
	}
	if _, ok := f.display.GetLinePrice(models.LegEntry); ok {
		t.Error("lines not removed")
	}
}

func TestCloseInPositionCancelsAndFlattens(t *testing.T) {
	f := newFixture(t, testConfig())
	f.enterPosition(t)

	res := f.cmd(t, CommandClose, "")
	if res.Outcome != OutcomeDone {
		t.Fatalf("close = %+v", res)
	}
	if len(f.gw.cancels) == 0 {
		t.Error("no legs cancelled")
	}
	if f.gw.flattens != 1 {
		t.Errorf("flattens = %d", f.gw.flattens)
	}
	if state, _ := f.ctrl.State(); state != models.StateIdle {
		t.Errorf("state = %s", state)
	}
}

func TestCloseWhilePendingEntryFlattens(t *testing.T) {
	f := newFixture(t, testConfig())
	f.cmd(t, CommandArm, models.DirectionLong)
	if res := f.cmd(t, CommandConfirm, ""); res.Outcome != OutcomeDone {
		t.Fatalf("confirm: %+v", res)
	}
	// The market entry filled at the broker; its fill event is still
	// queued, so locally the bracket is only pending.
	f.gw.posQty = 1
	f.gw.posAvg = 5000.25

	res := f.cmd(t, CommandClose, "")
	if res.Outcome != OutcomeDone {
		t.Fatalf("close = %+v", res)
	}
	if f.gw.flattens != 1 {
		t.Errorf("flattens = %d, want the broker-side fill closed", f.gw.flattens)
	}
	if len(f.gw.cancels) == 0 {
		t.Error("no legs cancelled")
	}
	if state, _ := f.ctrl.State(); state != models.StateIdle {
		t.Errorf("state = %s", state)
	}
}

func TestCloseFromIdleIsHarmless(t *testing.T) {
	f := newFixture(t, testConfig())
	if res := f.cmd(t, CommandClose, ""); res.Outcome != OutcomeDone {
		t.Errorf("close from idle = %+v", res)
	}
}

func TestStartRebuildsFromLivePosition(t *testing.T) {
	cfg := testConfig()
	gw := newStubGateway()
	gw.posQty = 2
	gw.posAvg = 5000.00
	feed := gateway.NewSimFeed(0.25, 50)
	feed.Push(models.Quote{Bid: 5001.00, Ask: 5001.25, Last: 5001.00})
	display := chart.NewMemoryDisplay()

	ctrl := NewController(cfg, Deps{
		Gateway:  gw,
		Feed:     feed,
		Display:  display,
		Notifier: notify.NewThrottle(notify.Func(func(string) {}), 0),
		Logger:   zerolog.Nop(),
	})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	state, dir := ctrl.State()
	if state != models.StateInPosition || dir != models.DirectionLong {
		t.Errorf("state = %s %s", state, dir)
	}
	intent, ok := ctrl.Intent()
	if !ok || intent.Entry != 5000.00 {
		t.Errorf("intent = %+v ok=%v", intent, ok)
	}
	if p, ok := display.GetLinePrice(models.LegEntry); !ok || p != 5000.00 {
		t.Errorf("entry line = %v ok=%v", p, ok)
	}
}

func TestSelfCheckFailureBlocksConfirm(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.MaxContracts = 0
	f := newFixture(t, cfg)

	f.cmd(t, CommandArm, models.DirectionLong)
	res := f.cmd(t, CommandConfirm, "")
	if res.Outcome != OutcomeRefused {
		t.Fatalf("confirm with failed self-check = %+v", res)
	}
	if len(f.gw.submitted) != 0 {
		t.Error("bracket submitted despite failed self-check")
	}
	found := false
	for _, n := range f.display.Notifications() {
		if strings.Contains(n, "self-check failed") {
			found = true
		}
	}
	if !found {
		t.Error("no self-check notification")
	}
}

func TestSubmitFailureFaults(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gw.submitErr = context.DeadlineExceeded
	f.cmd(t, CommandArm, models.DirectionLong)

	res := f.cmd(t, CommandConfirm, "")
	if res.Outcome != OutcomeFault {
		t.Errorf("confirm with gateway error = %+v", res)
	}
	if state, _ := f.ctrl.State(); !state.IsArmed() {
		t.Errorf("state = %s, want still armed", state)
	}
}
