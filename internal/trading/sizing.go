// Package trading implements the bracket-trade core: arming state machine,
// bracket order tracking, price validity, sizing, and drag reconciliation.
package trading

import (
	"math"
	"sync"
)

// FallbackTickSize is used when no instrument metadata has ever been seen
// this session. Matches the most common index-future increment.
const FallbackTickSize = 0.25

// FallbackPointValue pairs with FallbackTickSize for a $12.50 tick.
const FallbackPointValue = 50.0

// TickMetadata holds the instrument's price increment and point value.
type TickMetadata struct {
	TickSize   float64
	PointValue float64
}

// Valid reports whether the metadata is usable for sizing.
func (m TickMetadata) Valid() bool {
	return m.TickSize > 0 && m.PointValue > 0
}

// TickValue returns the dollar value of one tick per contract.
func (m TickMetadata) TickValue() float64 {
	return m.TickSize * m.PointValue
}

// TickSource resolves instrument tick metadata. Live metadata may arrive
// late in the session; once a known-good value is seen it is cached and
// preferred over the fixed fallback. Resolution order: current session
// value, last known-good cache, fixed fallback.
type TickSource struct {
	mu      sync.RWMutex
	session *TickMetadata
	cached  *TickMetadata
}

// NewTickSource creates a TickSource, seeding the session value from
// configuration when it is already valid.
func NewTickSource(seed TickMetadata) *TickSource {
	ts := &TickSource{}
	if seed.Valid() {
		ts.Set(seed)
	}
	return ts
}

// Set records live metadata. Invalid values are ignored so a bad feed
// update can never evict a known-good cache.
func (ts *TickSource) Set(meta TickMetadata) {
	if !meta.Valid() {
		return
	}
	ts.mu.Lock()
	m := meta
	ts.session = &m
	ts.cached = &m
	ts.mu.Unlock()
}

// Meta returns the current metadata and whether it came from a live or
// cached known-good value. When ok is false the caller has only the fixed
// fallback available via MetaOrFallback.
func (ts *TickSource) Meta() (TickMetadata, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if ts.session != nil {
		return *ts.session, true
	}
	if ts.cached != nil {
		return *ts.cached, true
	}
	return TickMetadata{}, false
}

// MetaOrFallback is the one named fallback path: it returns live or cached
// metadata when present, otherwise the fixed fallback values.
func (ts *TickSource) MetaOrFallback() TickMetadata {
	if m, ok := ts.Meta(); ok {
		return m
	}
	return TickMetadata{TickSize: FallbackTickSize, PointValue: FallbackPointValue}
}

// TickSize returns the resolved tick size.
func (ts *TickSource) TickSize() float64 {
	return ts.MetaOrFallback().TickSize
}

// RoundToTick rounds a price to the nearest tick using the resolved size.
func (ts *TickSource) RoundToTick(price float64) float64 {
	return RoundToTick(price, ts.TickSize())
}

// RoundToTick rounds a price to the nearest multiple of tick.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// SizingInputs are the configuration inputs to quantity calculation.
type SizingInputs struct {
	FixedRiskUSD          float64
	CommissionOn          bool
	CommissionPerContract float64
	MaxContracts          int
}

// CalculateQuantity computes the contract quantity for a fixed dollar risk
// between entry and stop. Pure: identical inputs always yield identical
// output. Returns 0 when the stop distance or per-contract risk is not
// positive; the result is capped at MaxContracts.
func CalculateQuantity(entry, stop float64, meta TickMetadata, in SizingInputs) int {
	if meta.TickSize <= 0 {
		return 0
	}
	distanceTicks := math.Abs(entry-stop) / meta.TickSize
	if distanceTicks <= 0 {
		return 0
	}

	perContractRisk := distanceTicks * meta.TickValue()
	if in.CommissionOn {
		perContractRisk += in.CommissionPerContract
	}
	if perContractRisk <= 0 {
		return 0
	}

	rawQty := in.FixedRiskUSD / perContractRisk
	qty := int(math.Floor(rawQty + 0.5)) // round half up
	if qty < 0 {
		qty = 0
	}
	if in.MaxContracts > 0 && qty > in.MaxContracts {
		qty = in.MaxContracts
	}
	return qty
}

// PerTradeRisk returns the dollar risk of qty contracts between entry and
// stop, used for the max-risk warning at confirm time.
func PerTradeRisk(entry, stop float64, qty int, meta TickMetadata, in SizingInputs) float64 {
	if meta.TickSize <= 0 || qty <= 0 {
		return 0
	}
	distanceTicks := math.Abs(entry-stop) / meta.TickSize
	perContract := distanceTicks * meta.TickValue()
	if in.CommissionOn {
		perContract += in.CommissionPerContract
	}
	return perContract * float64(qty)
}
