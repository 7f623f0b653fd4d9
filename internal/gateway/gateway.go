// Package gateway provides order-routing and market-data interfaces plus
// their paper and websocket implementations. The core only ever talks to
// these interfaces; broker effects are observed later through events.
package gateway

import (
	"context"

	"bracket-trader/internal/models"
)

// BracketSpec describes one bracket submission: a market entry plus a
// protective stop and a profit target, grouped under one OCO id. The leg
// names carry the per-instance namespace so concurrent instances never
// collide at the broker.
type BracketSpec struct {
	Direction   models.Direction
	Quantity    int
	StopPrice   float64
	TargetPrice float64
	OCOGroup    string
	EntryName   string
	StopName    string
	TargetName  string
}

// BracketRefs holds the weak order references returned by a submission.
type BracketRefs struct {
	Entry  models.OrderRef
	Stop   models.OrderRef
	Target models.OrderRef
}

// OrderGateway routes orders to the broker. All calls are asynchronous
// requests: success means accepted for routing, and the real outcome
// arrives later on the Events channel.
type OrderGateway interface {
	SubmitBracket(ctx context.Context, spec BracketSpec) (BracketRefs, error)
	// ModifyOrder changes an order's working prices. A zero value leaves
	// the corresponding price untouched.
	ModifyOrder(ctx context.Context, ref models.OrderRef, newLimit, newStop float64) error
	CancelOrder(ctx context.Context, ref models.OrderRef) error
	// Flatten closes qty contracts of an open position at market under the
	// given order name.
	Flatten(ctx context.Context, name string, dir models.Direction, qty int) error
	// Position returns the current broker-side position: signed quantity
	// (positive long) and average price. Used once at startup to rebuild
	// local state.
	Position(ctx context.Context) (int, float64, error)
	// Events delivers order, execution, and position callbacks. The order
	// and execution feeds overlap; consumers must deduplicate fills.
	Events() <-chan Event
}

// PriceMarker is implemented by gateways that simulate fills in-process
// and need to see every market update. The feed's update channel has one
// consumer, the event loop, which forwards each quote it takes to the
// marker before handling it.
type PriceMarker interface {
	MarkPrice(q models.Quote)
}

// Event is a broker callback delivered asynchronously.
type Event interface {
	isEvent()
}

// OrderUpdate reports an order-state change.
type OrderUpdate struct {
	Ref          models.OrderRef
	State        models.OrderState
	AvgFillPrice float64
	FilledQty    int
	Reason       string
}

// Execution reports a fill at the execution level. It can carry the same
// fill as a preceding OrderUpdate.
type Execution struct {
	Ref      models.OrderRef
	ExecID   string
	Quantity int
	Price    float64
}

// PositionUpdate reports the broker-side position after a change.
type PositionUpdate struct {
	Direction models.Direction
	Quantity  int
	AvgPrice  float64
}

func (OrderUpdate) isEvent()    {}
func (Execution) isEvent()      {}
func (PositionUpdate) isEvent() {}

// MarketFeed supplies market prices. Quote is a synchronous snapshot of
// the latest known prices; Updates pushes every change.
type MarketFeed interface {
	Quote() models.Quote
	Updates() <-chan models.Quote
	// InstrumentInfo returns tick size and point value when the feed has
	// learned them, ok=false before then.
	InstrumentInfo() (tickSize, pointValue float64, ok bool)
	Close() error
}
