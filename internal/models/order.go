package models

// OrderRef is a weak reference to a broker-side order. The tracker observes
// order lifecycles through refs; it never owns execution.
type OrderRef struct {
	ID   string
	Name string
}

// IsZero reports whether the ref points at nothing.
func (r OrderRef) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

// Key returns the identifier used for matching callbacks, preferring the
// broker order id and falling back to the order name.
func (r OrderRef) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// TradeIntent holds the mutable working prices of a trade before and while
// armed. Created on Arm, mutated by market-follow and drag reconciliation,
// cleared on disarm or flatten.
type TradeIntent struct {
	Direction Direction
	Entry     float64
	Stop      float64
	Target    float64
}

// LegAdjustment tracks one exit leg's offset from entry and whether the
// user has taken manual control of it. A manually adjusted leg stops
// re-deriving from entry movement until the arming state resets.
type LegAdjustment struct {
	OffsetTicks float64
	Manual      bool
}

// BracketOrder holds the three legs of a confirmed trade plus its OCO group.
// Destroyed when flat.
type BracketOrder struct {
	Entry    OrderRef
	Stop     OrderRef
	Target   OrderRef
	OCOGroup string
	AvgEntry float64
	Quantity int
}

// HasLiveStop reports whether a stop leg is still referenced.
func (b *BracketOrder) HasLiveStop() bool {
	return b != nil && !b.Stop.IsZero()
}

// CompletedTrade is one finished round trip, recorded to the journal.
type CompletedTrade struct {
	Direction  Direction
	Quantity   int
	AvgEntry   float64
	ExitPrice  float64
	ExitReason string
}
