package trading

import "bracket-trader/internal/models"

// ValidityResult is the outcome of one clamp pass.
type ValidityResult struct {
	Stop    float64
	Target  float64
	Clamped bool
}

// EnforceValidity forces stop and target at least one tick away from the
// adverse side of the market, so a freshly submitted exit cannot trigger
// instantly. For a long trade the stop must sit at or below bid minus one
// tick and the target at or above ask plus one tick; mirrored for short.
// Bid/ask fall back to the last trade price when unavailable (<= 0).
// Pure function of its inputs.
func EnforceValidity(dir models.Direction, stop, target float64, q models.Quote, tick float64) ValidityResult {
	bid := q.Bid
	if bid <= 0 {
		bid = q.Last
	}
	ask := q.Ask
	if ask <= 0 {
		ask = q.Last
	}

	res := ValidityResult{Stop: stop, Target: target}
	if tick <= 0 || (bid <= 0 && ask <= 0) {
		return res
	}

	if dir == models.DirectionLong {
		if maxStop := bid - tick; res.Stop > maxStop {
			res.Stop = maxStop
			res.Clamped = true
		}
		if minTarget := ask + tick; res.Target < minTarget {
			res.Target = minTarget
			res.Clamped = true
		}
	} else {
		if minStop := ask + tick; res.Stop < minStop {
			res.Stop = minStop
			res.Clamped = true
		}
		if maxTarget := bid - tick; res.Target > maxTarget {
			res.Target = maxTarget
			res.Clamped = true
		}
	}
	return res
}
