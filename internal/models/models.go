// Package models provides domain models for the bracket trading assistant.
package models

// Direction represents the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Opposite returns the other trade direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// ArmingState represents the arming workflow state.
// Exactly one value is active at a time; it is owned exclusively
// by the trading controller.
type ArmingState string

const (
	StateIdle         ArmingState = "IDLE"
	StateArmedLong    ArmingState = "ARMED_LONG"
	StateArmedShort   ArmingState = "ARMED_SHORT"
	StatePendingEntry ArmingState = "PENDING_ENTRY"
	StateInPosition   ArmingState = "IN_POSITION"
)

// IsArmed reports whether the state is one of the armed-but-unconfirmed states.
func (s ArmingState) IsArmed() bool {
	return s == StateArmedLong || s == StateArmedShort
}

// ArmedState returns the armed state for a direction.
func ArmedState(d Direction) ArmingState {
	if d == DirectionShort {
		return StateArmedShort
	}
	return StateArmedLong
}

// OrderState represents the broker-side lifecycle state of an order.
type OrderState string

const (
	OrderWorking       OrderState = "WORKING"
	OrderAccepted      OrderState = "ACCEPTED"
	OrderPartFilled    OrderState = "PART_FILLED"
	OrderFilled        OrderState = "FILLED"
	OrderCancelled     OrderState = "CANCELLED"
	OrderRejected      OrderState = "REJECTED"
	OrderCancelPending OrderState = "CANCEL_PENDING"
)

// IsTerminal reports whether the order state is final.
func (s OrderState) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// LegKind identifies one leg of a bracket.
type LegKind string

const (
	LegEntry  LegKind = "ENTRY"
	LegStop   LegKind = "STOP"
	LegTarget LegKind = "TARGET"
)

// Quote is a point-in-time market snapshot.
type Quote struct {
	Bid  float64
	Ask  float64
	Last float64
}

// Reference returns the market reference price for entering in the given
// direction: ask for long, bid for short, falling back to the last trade
// when the book side is unavailable.
func (q Quote) Reference(d Direction) float64 {
	if d == DirectionLong {
		if q.Ask > 0 {
			return q.Ask
		}
	} else if q.Bid > 0 {
		return q.Bid
	}
	return q.Last
}

// ExitReference returns the price used to judge an open position: bid for
// long (what a sell would fetch), ask for short, last trade as fallback.
func (q Quote) ExitReference(d Direction) float64 {
	if d == DirectionLong {
		if q.Bid > 0 {
			return q.Bid
		}
	} else if q.Ask > 0 {
		return q.Ask
	}
	return q.Last
}
