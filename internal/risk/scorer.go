// Package risk wraps the external risk analysis provider with timeouts and a
// conservative fallback, so unscored opportunities are never acted on.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// fallbackScore is applied when the provider fails or returns a malformed
// assessment. 100 is maximally conservative; downstream filters reject it.
const fallbackScore = 100

// Config holds the scorer parameters.
type Config struct {
	// Timeout bounds each provider call.
	Timeout time.Duration
}

// Scorer assigns a risk score and recommendation to a candidate opportunity.
type Scorer struct {
	provider domain.RiskAnalysisProvider
	cfg      Config
	logger   *slog.Logger
}

// NewScorer creates a Scorer with all required dependencies.
func NewScorer(provider domain.RiskAnalysisProvider, cfg Config, logger *slog.Logger) *Scorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Scorer{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "risk_scorer")),
	}
}

// Score calls the analysis provider for the given context and returns an
// updated copy of the opportunity with its risk score set, plus the full
// assessment. Score never returns an error: on provider failure, timeout, or
// a malformed response it falls back to riskScore 100 and a skip
// recommendation, logging the cause.
func (s *Scorer) Score(ctx context.Context, rc domain.RiskContext) (domain.Opportunity, domain.RiskAssessment) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	assessment, err := s.provider.Analyze(callCtx, rc)
	if err != nil {
		return s.fallback(ctx, rc.Opportunity, fmt.Sprintf("risk analysis failed: %v", err))
	}
	if reason, ok := validate(assessment); !ok {
		return s.fallback(ctx, rc.Opportunity, "malformed risk assessment: "+reason)
	}

	return rc.Opportunity.WithRiskScore(assessment.RiskScore), assessment
}

func (s *Scorer) fallback(ctx context.Context, opp domain.Opportunity, reason string) (domain.Opportunity, domain.RiskAssessment) {
	s.logger.WarnContext(ctx, "falling back to conservative risk score",
		slog.String("opportunity_id", opp.ID),
		slog.String("token", opp.Token),
		slog.String("reason", reason),
	)
	assessment := domain.RiskAssessment{
		RiskScore:      fallbackScore,
		Recommendation: domain.RecommendSkip,
		Confidence:     0,
		Reasoning:      reason,
	}
	return opp.WithRiskScore(fallbackScore), assessment
}

// validate rejects assessments with out-of-range fields so a misbehaving
// provider cannot smuggle an unscored opportunity downstream.
func validate(a domain.RiskAssessment) (string, bool) {
	if a.RiskScore < 0 || a.RiskScore > 100 {
		return fmt.Sprintf("risk score %v out of [0,100]", a.RiskScore), false
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Sprintf("confidence %v out of [0,1]", a.Confidence), false
	}
	if !a.Recommendation.Valid() {
		return fmt.Sprintf("unknown recommendation %q", a.Recommendation), false
	}
	return "", true
}
