// Package sim provides deterministic in-process implementations of the
// external boundaries: risk analysis, agent voting, bridge providers, and
// trade execution. They let the coordinator run end to end without exchange
// or model connectivity; production deployments swap them out behind the
// domain port interfaces.
package sim

import (
	"context"
	"fmt"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// RiskProvider scores opportunities with a fee-drag and volatility heuristic.
// Same input, same output.
type RiskProvider struct {
	// MaxRiskScore is the score above which the recommendation is skip.
	MaxRiskScore float64
}

// NewRiskProvider creates a RiskProvider with the given recommendation
// threshold.
func NewRiskProvider(maxRiskScore float64) *RiskProvider {
	if maxRiskScore <= 0 {
		maxRiskScore = 70
	}
	return &RiskProvider{MaxRiskScore: maxRiskScore}
}

// Analyze scores the opportunity from its fee drag and volatility. Scores are
// 0 (safe) to 100 (reject); fees eating into the estimated profit contribute
// up to 50 points and volatility up to 30 on top of a base of 20.
func (p *RiskProvider) Analyze(ctx context.Context, rc domain.RiskContext) (domain.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return domain.RiskAssessment{}, err
	}

	opp := rc.Opportunity
	if opp.EstimatedProfit <= 0 {
		return domain.RiskAssessment{
			RiskScore:      100,
			Recommendation: domain.RecommendSkip,
			Confidence:     0.9,
			Reasoning:      "no profit after fees",
		}, nil
	}

	score := 20.0

	feeDrag := (rc.GasFeeUSD + rc.BridgeFeeUSD) / opp.EstimatedProfit
	score += min(50, feeDrag*50)

	score += min(30, rc.Volatility*300)

	if score > 100 {
		score = 100
	}

	rec := domain.RecommendExecute
	switch {
	case score > p.MaxRiskScore+10:
		rec = domain.RecommendSkip
	case score > p.MaxRiskScore:
		rec = domain.RecommendWait
	}

	confidence := 1 - score/100
	if confidence < 0.1 {
		confidence = 0.1
	}

	return domain.RiskAssessment{
		RiskScore:      score,
		Recommendation: rec,
		Confidence:     confidence,
		Reasoning: fmt.Sprintf("fee drag %.2f, volatility %.3f, score %.1f",
			feeDrag, rc.Volatility, score),
	}, nil
}

// Compile-time interface check.
var _ domain.RiskAnalysisProvider = (*RiskProvider)(nil)
