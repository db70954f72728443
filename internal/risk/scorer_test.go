package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/swarmarb/swarmarb/internal/domain"
)

type fakeProvider struct {
	assessment domain.RiskAssessment
	err        error
	delay      time.Duration
}

func (f *fakeProvider) Analyze(ctx context.Context, rc domain.RiskContext) (domain.RiskAssessment, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.RiskAssessment{}, ctx.Err()
		}
	}
	return f.assessment, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:          "opp-1",
		Token:       "USDC",
		SourceVenue: "uniswap",
		SourceChain: "ethereum",
		TargetVenue: "sushiswap",
		TargetChain: "ethereum",
		ProfitPct:   2.0,
	}
}

func TestScoreSuccess(t *testing.T) {
	provider := &fakeProvider{
		assessment: domain.RiskAssessment{
			RiskScore:      30,
			Recommendation: domain.RecommendExecute,
			Confidence:     0.85,
			Reasoning:      "liquid pair, shallow spread risk",
		},
	}
	s := NewScorer(provider, Config{Timeout: time.Second}, discard())

	opp, assessment := s.Score(context.Background(), domain.RiskContext{Opportunity: testOpportunity()})
	if opp.RiskScore != 30 {
		t.Errorf("risk score = %v, want 30", opp.RiskScore)
	}
	if opp.ID != "opp-1" {
		t.Errorf("correlation id changed: %q", opp.ID)
	}
	if assessment.Recommendation != domain.RecommendExecute {
		t.Errorf("recommendation = %q, want execute", assessment.Recommendation)
	}
}

func TestScoreProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model overloaded")}
	s := NewScorer(provider, Config{Timeout: time.Second}, discard())

	opp, assessment := s.Score(context.Background(), domain.RiskContext{Opportunity: testOpportunity()})
	if opp.RiskScore != 100 {
		t.Errorf("risk score = %v, want conservative 100", opp.RiskScore)
	}
	if assessment.Recommendation != domain.RecommendSkip {
		t.Errorf("recommendation = %q, want skip", assessment.Recommendation)
	}
	if assessment.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", assessment.Confidence)
	}
}

func TestScoreProviderTimeout(t *testing.T) {
	provider := &fakeProvider{
		delay: 500 * time.Millisecond,
		assessment: domain.RiskAssessment{
			RiskScore:      10,
			Recommendation: domain.RecommendExecute,
			Confidence:     0.9,
		},
	}
	s := NewScorer(provider, Config{Timeout: 20 * time.Millisecond}, discard())

	opp, assessment := s.Score(context.Background(), domain.RiskContext{Opportunity: testOpportunity()})
	if opp.RiskScore != 100 {
		t.Errorf("risk score = %v, want 100 after timeout", opp.RiskScore)
	}
	if assessment.Recommendation != domain.RecommendSkip {
		t.Errorf("recommendation = %q, want skip after timeout", assessment.Recommendation)
	}
}

func TestScoreMalformedResponses(t *testing.T) {
	cases := []struct {
		name       string
		assessment domain.RiskAssessment
	}{
		{"score above range", domain.RiskAssessment{RiskScore: 130, Recommendation: domain.RecommendExecute, Confidence: 0.5}},
		{"negative score", domain.RiskAssessment{RiskScore: -5, Recommendation: domain.RecommendExecute, Confidence: 0.5}},
		{"confidence above range", domain.RiskAssessment{RiskScore: 20, Recommendation: domain.RecommendExecute, Confidence: 1.5}},
		{"unknown recommendation", domain.RiskAssessment{RiskScore: 20, Recommendation: "yolo", Confidence: 0.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScorer(&fakeProvider{assessment: tc.assessment}, Config{Timeout: time.Second}, discard())
			opp, got := s.Score(context.Background(), domain.RiskContext{Opportunity: testOpportunity()})
			if opp.RiskScore != 100 || got.Recommendation != domain.RecommendSkip {
				t.Errorf("got score=%v rec=%q, want conservative fallback", opp.RiskScore, got.Recommendation)
			}
		})
	}
}
