package trading

import (
	"fmt"
	"strings"

	"bracket-trader/internal/config"
)

// SelfCheckResult is the one-time instrument-metadata validation computed
// when live operation begins. A failed check gates every order-affecting
// operation for the rest of the session.
type SelfCheckResult struct {
	Passed  bool
	Reasons []string
}

// Summary renders the failure reasons for a notification.
func (r SelfCheckResult) Summary() string {
	if r.Passed {
		return "self-check passed"
	}
	return "self-check failed: " + strings.Join(r.Reasons, "; ")
}

// RunSelfCheck validates instrument metadata and risk configuration.
func RunSelfCheck(meta TickMetadata, risk config.RiskConfig) SelfCheckResult {
	var reasons []string

	if meta.TickSize <= 0 {
		reasons = append(reasons, fmt.Sprintf("tick size %.6f is not positive", meta.TickSize))
	}
	if meta.PointValue <= 0 {
		reasons = append(reasons, fmt.Sprintf("point value %.2f is not positive", meta.PointValue))
	}
	if meta.TickSize > 0 && meta.PointValue > 0 && meta.TickValue() <= 0 {
		reasons = append(reasons, fmt.Sprintf("derived tick value %.4f is not positive", meta.TickValue()))
	}
	if risk.MaxContracts <= 0 {
		reasons = append(reasons, fmt.Sprintf("max contracts %d is not positive", risk.MaxContracts))
	}
	if risk.FixedRiskUSD <= 0 {
		reasons = append(reasons, fmt.Sprintf("fixed risk $%.2f is not positive", risk.FixedRiskUSD))
	}

	return SelfCheckResult{Passed: len(reasons) == 0, Reasons: reasons}
}
