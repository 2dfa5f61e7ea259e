// Package scoring assigns a 0-100 risk score to normalized trades. The
// heuristic is position size relative to typical prediction-market
// liquidity; a ~$50k clip on a thin market was the signature of the known
// insider cases this tool was built around.
package scoring

import "github.com/wukkeen/AInsider/internal/notify"

const (
	// AlertThreshold is the minimum score that produces an alert.
	AlertThreshold = 70
	// HighRiskThreshold promotes an alert to HIGH.
	HighRiskThreshold = 85
)

type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// Score returns the risk score for a trade of the given USD size.
func (s *Scorer) Score(sizeUSD float64) int {
	score := 10
	switch {
	case sizeUSD > 50_000:
		score += 70
	case sizeUSD > 10_000:
		score += 40
	case sizeUSD > 1_000:
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Level maps a score to the alert risk level.
func Level(score int) notify.RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return notify.RiskHigh
	case score >= AlertThreshold:
		return notify.RiskMedium
	default:
		return notify.RiskLow
	}
}
