package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// CoordinatorConfig holds the consensus parameters.
type CoordinatorConfig struct {
	// ConsensusThreshold is the minimum approve ratio for a round to pass.
	ConsensusThreshold float64

	// VoteTimeout bounds each agent's vote call.
	VoteTimeout time.Duration
}

// Coordinator runs consensus rounds: it polls every active agent for a vote
// on a candidate opportunity, tallies the responses, and decides.
type Coordinator struct {
	pool   *Pool
	votes  domain.VoteEndpoint
	cfg    CoordinatorConfig
	logger *slog.Logger
}

// NewCoordinator creates a consensus Coordinator over the given pool.
func NewCoordinator(pool *Pool, votes domain.VoteEndpoint, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	if cfg.VoteTimeout <= 0 {
		cfg.VoteTimeout = 5 * time.Second
	}
	return &Coordinator{
		pool:   pool,
		votes:  votes,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "consensus")),
	}
}

// Decide runs one full consensus round for the opportunity and returns the
// result. Agents that error or exceed VoteTimeout are excluded from the
// tally; a single agent failure never fails the round. When no agent
// responds at all the round is conservatively not approved with score 0.
func (c *Coordinator) Decide(ctx context.Context, opp domain.Opportunity) domain.ConsensusResult {
	// Collecting -> Tallying -> Decided; each phase completes before the
	// next starts, so a slow agent can delay but never corrupt the tally.
	agents := c.pool.Active()
	votes := c.collect(ctx, agents, opp)
	result := tally(votes, c.cfg.ConsensusThreshold)

	c.logger.InfoContext(ctx, "consensus decided",
		slog.String("opportunity_id", opp.ID),
		slog.String("token", opp.Token),
		slog.Bool("approved", result.Approved),
		slog.Float64("score", result.Score),
		slog.Int("approved_votes", result.ApprovedVotes),
		slog.Int("total_votes", result.TotalVotes),
		slog.Int("polled", len(agents)),
	)
	return result
}

// collect fans out one vote request per active agent, each bounded by the
// per-agent timeout, and returns the votes that arrived in time.
func (c *Coordinator) collect(ctx context.Context, agents []domain.Agent, opp domain.Opportunity) []domain.AgentVote {
	type outcome struct {
		vote domain.AgentVote
		err  error
	}

	results := make([]outcome, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent domain.Agent) {
			defer wg.Done()
			voteCtx, cancel := context.WithTimeout(ctx, c.cfg.VoteTimeout)
			defer cancel()
			vote, err := c.votes.Vote(voteCtx, agent, opp)
			results[i] = outcome{vote: vote, err: err}
		}(i, agent)
	}
	wg.Wait()

	votes := make([]domain.AgentVote, 0, len(agents))
	for i, res := range results {
		if res.err != nil {
			// A non-vote reduces totalVotes; it is neither an approval nor
			// a rejection.
			if errors.Is(res.err, context.DeadlineExceeded) {
				res.err = domain.ErrParticipantTimeout
			}
			c.logger.WarnContext(ctx, "agent vote excluded",
				slog.String("agent_id", agents[i].ID),
				slog.String("error", res.err.Error()),
			)
			c.pool.RecordResult(agents[i].ID, false)
			continue
		}
		vote := res.vote
		if vote.AgentID == "" {
			vote.AgentID = agents[i].ID
		}
		votes = append(votes, vote)
		c.pool.RecordResult(agents[i].ID, true)
	}
	return votes
}

// tally aggregates votes into the round decision.
func tally(votes []domain.AgentVote, threshold float64) domain.ConsensusResult {
	if len(votes) == 0 {
		return domain.ConsensusResult{
			Approved:  false,
			Score:     0,
			Reasoning: domain.ErrNoQuorum.Error(),
		}
	}

	approved := 0
	for _, v := range votes {
		if v.Recommendation == domain.RecommendExecute {
			approved++
		}
	}
	score := float64(approved) / float64(len(votes))

	return domain.ConsensusResult{
		Approved:      score >= threshold,
		Score:         score,
		ApprovedVotes: approved,
		TotalVotes:    len(votes),
		Reasoning:     synthesizeReasoning(votes),
	}
}

// synthesizeReasoning builds a deterministic summary of the round from the
// individual vote reasons, ordered by agent id. No generative call is made
// here; if generative analysis is wanted it belongs behind the risk provider
// interface.
func synthesizeReasoning(votes []domain.AgentVote) string {
	sorted := make([]domain.AgentVote, len(votes))
	copy(sorted, votes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AgentID < sorted[j].AgentID })

	var b strings.Builder
	for i, v := range sorted {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s (%.2f)", v.AgentID, v.Recommendation, v.Confidence)
		if v.Reasoning != "" {
			b.WriteString(" - ")
			b.WriteString(v.Reasoning)
		}
	}
	return b.String()
}
