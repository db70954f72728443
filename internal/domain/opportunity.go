package domain

import "time"

// Opportunity is a detected cross-venue price spread for a single token. It is
// a value type: updates (risk scoring) produce a new copy carrying the same ID
// rather than mutating in place.
type Opportunity struct {
	ID              string // correlation id, stable across copies
	Token           string
	SourceVenue     string
	SourceChain     string
	TargetVenue     string
	TargetChain     string
	SourcePrice     float64
	TargetPrice     float64
	ProfitPct       float64
	EstimatedProfit float64
	RiskScore       float64 // 0 until scored
	CreatedAt       time.Time
}

// Source returns the bucket holding the lower price.
func (o Opportunity) Source() Bucket {
	return Bucket{Venue: o.SourceVenue, Chain: o.SourceChain}
}

// Target returns the bucket holding the higher price.
func (o Opportunity) Target() Bucket {
	return Bucket{Venue: o.TargetVenue, Chain: o.TargetChain}
}

// CrossChain reports whether realizing the spread requires a bridge transfer.
func (o Opportunity) CrossChain() bool {
	return o.SourceChain != o.TargetChain
}

// WithRiskScore returns a copy with the risk score set. The correlation ID is
// preserved.
func (o Opportunity) WithRiskScore(score float64) Opportunity {
	o.RiskScore = score
	return o
}

// Recommendation is an agent's or the risk provider's verdict on an
// opportunity.
type Recommendation string

const (
	RecommendExecute Recommendation = "execute"
	RecommendSkip    Recommendation = "skip"
	RecommendWait    Recommendation = "wait"
)

// Valid reports whether r is one of the known recommendation values.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendExecute, RecommendSkip, RecommendWait:
		return true
	}
	return false
}

// RiskAssessment is the outcome of scoring one opportunity.
type RiskAssessment struct {
	RiskScore      float64 // 0 (safe) .. 100 (reject)
	Recommendation Recommendation
	Confidence     float64 // 0..1
	Reasoning      string
}
