package sim

import (
	"context"
	"fmt"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// VoteConfig holds the thresholds the heuristic voters apply.
type VoteConfig struct {
	// MinProfitPct is the spread below which analysis roles vote skip.
	MinProfitPct float64

	// MaxRiskScore is the risk score above which assessment roles vote skip.
	MaxRiskScore float64
}

// VoteCaster implements domain.VoteEndpoint with per-role heuristics over
// the opportunity's own numbers. Votes are deterministic for a given
// opportunity and agent, which keeps consensus rounds reproducible.
type VoteCaster struct {
	cfg VoteConfig
}

// NewVoteCaster creates a VoteCaster with the given thresholds.
func NewVoteCaster(cfg VoteConfig) *VoteCaster {
	if cfg.MinProfitPct <= 0 {
		cfg.MinProfitPct = 0.5
	}
	if cfg.MaxRiskScore <= 0 {
		cfg.MaxRiskScore = 70
	}
	return &VoteCaster{cfg: cfg}
}

// Vote returns the agent's verdict on the opportunity. Each role inspects
// the dimension it specializes in; the coordinator weighs profit against
// risk.
func (vc *VoteCaster) Vote(ctx context.Context, agent domain.Agent, opp domain.Opportunity) (domain.AgentVote, error) {
	if err := ctx.Err(); err != nil {
		return domain.AgentVote{}, err
	}

	rec, reasoning := vc.verdict(agent.Role, opp)

	// Healthier agents vote with more conviction.
	confidence := 0.5 + agent.SuccessRate*0.45
	if confidence > 0.95 {
		confidence = 0.95
	}

	return domain.AgentVote{
		AgentID:        agent.ID,
		Recommendation: rec,
		Confidence:     confidence,
		Reasoning:      reasoning,
	}, nil
}

func (vc *VoteCaster) verdict(role domain.AgentRole, opp domain.Opportunity) (domain.Recommendation, string) {
	switch role {
	case domain.RoleMarketAnalysis:
		if opp.ProfitPct < vc.cfg.MinProfitPct {
			return domain.RecommendSkip, fmt.Sprintf("spread %.2f%% below threshold", opp.ProfitPct)
		}
		return domain.RecommendExecute, fmt.Sprintf("spread %.2f%% is actionable", opp.ProfitPct)

	case domain.RoleArbitrageDetection:
		if opp.EstimatedProfit <= 0 {
			return domain.RecommendSkip, "no profit after fees"
		}
		return domain.RecommendExecute, fmt.Sprintf("estimated profit %.2f", opp.EstimatedProfit)

	case domain.RoleRiskAssessment:
		if opp.RiskScore > vc.cfg.MaxRiskScore {
			return domain.RecommendSkip, fmt.Sprintf("risk %.1f above limit", opp.RiskScore)
		}
		return domain.RecommendExecute, fmt.Sprintf("risk %.1f acceptable", opp.RiskScore)

	case domain.RoleExecution:
		if opp.CrossChain() && opp.EstimatedProfit <= 0 {
			return domain.RecommendSkip, "bridge cost exceeds edge"
		}
		return domain.RecommendExecute, "route executable"

	case domain.RolePortfolioManagement:
		// Thin edges are deferred rather than rejected outright.
		if opp.ProfitPct < vc.cfg.MinProfitPct*2 {
			return domain.RecommendWait, fmt.Sprintf("spread %.2f%% too thin for sizing", opp.ProfitPct)
		}
		return domain.RecommendExecute, "position sizing fits"

	default: // coordinator and unknown roles
		if opp.EstimatedProfit > 0 && opp.RiskScore <= vc.cfg.MaxRiskScore {
			return domain.RecommendExecute, "profit outweighs risk"
		}
		return domain.RecommendSkip, "risk outweighs profit"
	}
}

// Compile-time interface check.
var _ domain.VoteEndpoint = (*VoteCaster)(nil)
