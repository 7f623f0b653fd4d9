package trading

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"bracket-trader/internal/models"
)

// After enforcement the stop and target always sit at least one tick away
// from the adverse market side, so a fresh exit can never trigger on
// submission.
func TestProperty_EnforcedPricesAtLeastOneTickFromMarket(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	const eps = 1e-9

	properties.Property("long and short bounds hold", prop.ForAll(
		func(bid, spread, stop, target float64, long bool) bool {
			tick := 0.25
			q := models.Quote{Bid: bid, Ask: bid + spread, Last: bid}
			dir := models.DirectionShort
			if long {
				dir = models.DirectionLong
			}

			res := EnforceValidity(dir, stop, target, q, tick)
			if dir == models.DirectionLong {
				if res.Stop > q.Bid-tick+eps {
					t.Logf("long stop %v above bid-tick %v", res.Stop, q.Bid-tick)
					return false
				}
				if res.Target < q.Ask+tick-eps {
					t.Logf("long target %v below ask+tick %v", res.Target, q.Ask+tick)
					return false
				}
			} else {
				if res.Stop < q.Ask+tick-eps {
					t.Logf("short stop %v below ask+tick %v", res.Stop, q.Ask+tick)
					return false
				}
				if res.Target > q.Bid-tick+eps {
					t.Logf("short target %v above bid-tick %v", res.Target, q.Bid-tick)
					return false
				}
			}
			return true
		},
		gen.Float64Range(100, 9000),
		gen.Float64Range(0.25, 5),
		gen.Float64Range(50, 9500),
		gen.Float64Range(50, 9500),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Enforcement is idempotent: clamping an already-clamped pair changes
// nothing, and an unclamped result means the inputs were already valid.
func TestProperty_EnforceValidityIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("second pass is a no-op", prop.ForAll(
		func(bid, spread, stop, target float64, long bool) bool {
			tick := 0.25
			q := models.Quote{Bid: bid, Ask: bid + spread, Last: bid}
			dir := models.DirectionShort
			if long {
				dir = models.DirectionLong
			}

			first := EnforceValidity(dir, stop, target, q, tick)
			second := EnforceValidity(dir, first.Stop, first.Target, q, tick)
			if second.Clamped {
				t.Logf("second pass clamped again: %+v -> %+v", first, second)
				return false
			}
			if second.Stop != first.Stop || second.Target != first.Target {
				t.Logf("second pass moved prices: %+v -> %+v", first, second)
				return false
			}
			if !first.Clamped && (first.Stop != stop || first.Target != target) {
				t.Logf("unclamped result changed prices: stop %v->%v target %v->%v", stop, first.Stop, target, first.Target)
				return false
			}
			return true
		},
		gen.Float64Range(100, 9000),
		gen.Float64Range(0.25, 5),
		gen.Float64Range(50, 9500),
		gen.Float64Range(50, 9500),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
