package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "bracket-trader/internal/errors"
	"bracket-trader/internal/models"
)

// paperOrder is one simulated working order.
type paperOrder struct {
	ref       models.OrderRef
	leg       models.LegKind
	direction models.Direction // direction of the position the order belongs to
	quantity  int
	stopPrice float64
	limit     float64
	oco       string
	state     models.OrderState
}

// PaperGateway implements OrderGateway against an in-memory simulation.
// Entries fill immediately at the market reference; stop and target legs
// trigger off quote updates pushed through MarkPrice. Fills are reported
// on both the order and execution feeds, the same overlapping shape a real
// gateway produces.
type PaperGateway struct {
	mu     sync.Mutex
	feed   MarketFeed
	logger zerolog.Logger

	orders map[string]*paperOrder
	posQty int // signed, positive long
	posAvg float64

	events chan Event
	closed bool
}

// NewPaperGateway creates a simulated gateway priced off the given feed.
func NewPaperGateway(feed MarketFeed, logger zerolog.Logger) *PaperGateway {
	return &PaperGateway{
		feed:   feed,
		logger: logger.With().Str("component", "paper_gateway").Logger(),
		orders: make(map[string]*paperOrder),
		events: make(chan Event, 256),
	}
}

// SubmitBracket fills the market entry immediately and leaves the two exit
// legs working under one OCO group.
func (p *PaperGateway) SubmitBracket(ctx context.Context, spec BracketSpec) (BracketRefs, error) {
	if spec.Quantity <= 0 {
		return BracketRefs{}, fmt.Errorf("submit bracket: quantity must be positive, got %d", spec.Quantity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return BracketRefs{}, apperrors.Wrap(apperrors.ErrGatewayClosed, "submit bracket")
	}

	refs := BracketRefs{
		Entry:  models.OrderRef{ID: uuid.NewString(), Name: spec.EntryName},
		Stop:   models.OrderRef{ID: uuid.NewString(), Name: spec.StopName},
		Target: models.OrderRef{ID: uuid.NewString(), Name: spec.TargetName},
	}

	fillPrice := p.feed.Quote().Reference(spec.Direction)

	p.orders[refs.Stop.ID] = &paperOrder{
		ref:       refs.Stop,
		leg:       models.LegStop,
		direction: spec.Direction,
		quantity:  spec.Quantity,
		stopPrice: spec.StopPrice,
		oco:       spec.OCOGroup,
		state:     models.OrderWorking,
	}
	p.orders[refs.Target.ID] = &paperOrder{
		ref:       refs.Target,
		leg:       models.LegTarget,
		direction: spec.Direction,
		quantity:  spec.Quantity,
		limit:     spec.TargetPrice,
		oco:       spec.OCOGroup,
		state:     models.OrderWorking,
	}

	if spec.Direction == models.DirectionLong {
		p.posQty += spec.Quantity
	} else {
		p.posQty -= spec.Quantity
	}
	p.posAvg = fillPrice

	p.logger.Info().
		Str("direction", string(spec.Direction)).
		Int("qty", spec.Quantity).
		Float64("fill", fillPrice).
		Str("oco", spec.OCOGroup).
		Msg("Paper entry filled")

	p.emit(OrderUpdate{Ref: refs.Entry, State: models.OrderFilled, AvgFillPrice: fillPrice, FilledQty: spec.Quantity})
	p.emit(Execution{Ref: refs.Entry, ExecID: uuid.NewString(), Quantity: spec.Quantity, Price: fillPrice})
	p.emitPosition()

	return refs, nil
}

// ModifyOrder updates the working prices of a simulated order.
func (p *PaperGateway) ModifyOrder(ctx context.Context, ref models.OrderRef, newLimit, newStop float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[ref.ID]
	if !ok || o.state != models.OrderWorking {
		return apperrors.NewOrderError(ref.Key(), "", "modify", "not working", nil)
	}
	if newLimit > 0 {
		o.limit = newLimit
	}
	if newStop > 0 {
		o.stopPrice = newStop
	}
	return nil
}

// CancelOrder cancels a simulated order and reports the cancellation.
func (p *PaperGateway) CancelOrder(ctx context.Context, ref models.OrderRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[ref.ID]
	if !ok || o.state.IsTerminal() {
		return nil
	}
	o.state = models.OrderCancelled
	p.emit(OrderUpdate{Ref: o.ref, State: models.OrderCancelled})
	return nil
}

// Flatten closes the position at market and reports a fill under the given
// close-order name.
func (p *PaperGateway) Flatten(ctx context.Context, name string, dir models.Direction, qty int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.posQty == 0 {
		return nil
	}
	price := p.feed.Quote().ExitReference(dir)
	ref := models.OrderRef{ID: uuid.NewString(), Name: name}
	p.posQty = 0
	p.posAvg = 0

	p.emit(OrderUpdate{Ref: ref, State: models.OrderFilled, AvgFillPrice: price, FilledQty: qty})
	p.emit(Execution{Ref: ref, ExecID: uuid.NewString(), Quantity: qty, Price: price})
	p.emitPosition()
	return nil
}

// Position returns the simulated position.
func (p *PaperGateway) Position(ctx context.Context) (int, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.posQty, p.posAvg, nil
}

// Events returns the callback channel.
func (p *PaperGateway) Events() <-chan Event {
	return p.events
}

// Close shuts the gateway down.
func (p *PaperGateway) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	return nil
}

// MarkPrice advances the simulation against a new quote, filling whichever
// exit leg the market has crossed and cancelling its OCO sibling.
func (p *PaperGateway) MarkPrice(q models.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.posQty == 0 {
		return
	}

	for _, o := range p.orders {
		if o.state != models.OrderWorking {
			continue
		}
		price, hit := o.triggered(q)
		if !hit {
			continue
		}

		o.state = models.OrderFilled
		p.posQty = 0
		p.posAvg = 0

		p.emit(OrderUpdate{Ref: o.ref, State: models.OrderFilled, AvgFillPrice: price, FilledQty: o.quantity})
		p.emit(Execution{Ref: o.ref, ExecID: uuid.NewString(), Quantity: o.quantity, Price: price})
		p.cancelSiblingsLocked(o)
		p.emitPosition()
		return
	}
}

// triggered reports whether the quote crosses the order, and the fill price.
func (o *paperOrder) triggered(q models.Quote) (float64, bool) {
	last := q.Last
	if last <= 0 {
		return 0, false
	}
	long := o.direction == models.DirectionLong
	switch o.leg {
	case models.LegStop:
		if long && last <= o.stopPrice {
			return o.stopPrice, true
		}
		if !long && last >= o.stopPrice {
			return o.stopPrice, true
		}
	case models.LegTarget:
		if long && last >= o.limit {
			return o.limit, true
		}
		if !long && last <= o.limit {
			return o.limit, true
		}
	}
	return 0, false
}

func (p *PaperGateway) cancelSiblingsLocked(filled *paperOrder) {
	for _, o := range p.orders {
		if o == filled || o.oco != filled.oco || o.state != models.OrderWorking {
			continue
		}
		o.state = models.OrderCancelled
		p.emit(OrderUpdate{Ref: o.ref, State: models.OrderCancelled})
	}
}

func (p *PaperGateway) emitPosition() {
	dir := models.DirectionLong
	qty := p.posQty
	if qty < 0 {
		dir = models.DirectionShort
		qty = -qty
	}
	p.emit(PositionUpdate{Direction: dir, Quantity: qty, AvgPrice: p.posAvg})
}

func (p *PaperGateway) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn().Msg("Event channel full, dropping event")
	}
}
