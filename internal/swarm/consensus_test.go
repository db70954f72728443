package swarm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// scriptedVotes returns a canned vote per agent role, an error for agents
// listed in fail, and blocks past the timeout for agents listed in slow.
type scriptedVotes struct {
	byRole map[domain.AgentRole]domain.AgentVote
	fail   map[string]bool
	slow   map[string]time.Duration
}

func (s *scriptedVotes) Vote(ctx context.Context, agent domain.Agent, _ domain.Opportunity) (domain.AgentVote, error) {
	if d, ok := s.slow[agent.ID]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return domain.AgentVote{}, ctx.Err()
		}
	}
	if s.fail[agent.ID] {
		return domain.AgentVote{}, errors.New("agent unreachable")
	}
	v, ok := s.byRole[agent.Role]
	if !ok {
		v = domain.AgentVote{Recommendation: domain.RecommendExecute, Confidence: 0.9}
	}
	v.AgentID = agent.ID
	return v, nil
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:          "opp-1",
		Token:       "WETH",
		SourceVenue: "uniswap",
		SourceChain: "ethereum",
		TargetVenue: "sushiswap",
		TargetChain: "ethereum",
		SourcePrice: 1.00,
		TargetPrice: 1.02,
		ProfitPct:   2.0,
	}
}

func smallPool(t *testing.T, n int, role domain.AgentRole) *Pool {
	t.Helper()
	cfg := DefaultPoolConfig()
	cfg.MaxAgents = n + 1
	cfg.InitialAgents = map[domain.AgentRole]int{role: n}
	return NewPool(cfg, discard())
}

func TestDecideUnanimousApproval(t *testing.T) {
	pool := smallPool(t, 4, domain.RoleMarketAnalysis)
	votes := &scriptedVotes{}
	c := NewCoordinator(pool, votes, CoordinatorConfig{ConsensusThreshold: 0.66}, discard())

	result := c.Decide(context.Background(), testOpportunity())

	if !result.Approved {
		t.Fatal("unanimous execute votes not approved")
	}
	if result.TotalVotes != 5 { // 4 analysts + coordinator
		t.Errorf("total votes = %d, want 5", result.TotalVotes)
	}
	if result.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", result.Score)
	}
}

func TestDecideBelowThreshold(t *testing.T) {
	pool := smallPool(t, 3, domain.RoleRiskAssessment)
	votes := &scriptedVotes{
		byRole: map[domain.AgentRole]domain.AgentVote{
			domain.RoleRiskAssessment: {Recommendation: domain.RecommendSkip, Confidence: 0.8, Reasoning: "volatility too high"},
		},
	}
	c := NewCoordinator(pool, votes, CoordinatorConfig{ConsensusThreshold: 0.66}, discard())

	result := c.Decide(context.Background(), testOpportunity())

	if result.Approved {
		t.Fatal("approved despite 1/4 execute votes")
	}
	if result.ApprovedVotes != 1 || result.TotalVotes != 4 {
		t.Errorf("votes = %d/%d, want 1/4", result.ApprovedVotes, result.TotalVotes)
	}
	if result.Score != 0.25 {
		t.Errorf("score = %v, want 0.25", result.Score)
	}
}

func TestDecideExcludesTimedOutAgent(t *testing.T) {
	pool := smallPool(t, 4, domain.RoleMarketAnalysis)
	var slowID string
	for _, a := range pool.Active() {
		if a.Role == domain.RoleMarketAnalysis {
			slowID = a.ID
			break
		}
	}
	votes := &scriptedVotes{
		slow: map[string]time.Duration{slowID: time.Second},
	}
	c := NewCoordinator(pool, votes, CoordinatorConfig{
		ConsensusThreshold: 0.66,
		VoteTimeout:        20 * time.Millisecond,
	}, discard())

	result := c.Decide(context.Background(), testOpportunity())

	// The timed-out agent shrinks the denominator instead of counting as a
	// rejection.
	if result.TotalVotes != 4 {
		t.Fatalf("total votes = %d, want 4 (one of five excluded)", result.TotalVotes)
	}
	if !result.Approved || result.Score != 1.0 {
		t.Errorf("approved=%v score=%v, want approved with score 1.0", result.Approved, result.Score)
	}
}

func TestDecideAgentErrorLowersSuccessRate(t *testing.T) {
	pool := smallPool(t, 2, domain.RoleMarketAnalysis)
	var failID string
	for _, a := range pool.Active() {
		if a.Role == domain.RoleMarketAnalysis {
			failID = a.ID
			break
		}
	}
	votes := &scriptedVotes{fail: map[string]bool{failID: true}}
	c := NewCoordinator(pool, votes, CoordinatorConfig{ConsensusThreshold: 0.5}, discard())

	c.Decide(context.Background(), testOpportunity())

	for _, a := range pool.Snapshot() {
		if a.ID == failID && a.SuccessRate >= 1.0 {
			t.Fatalf("failing agent success rate = %v, want < 1.0", a.SuccessRate)
		}
	}
}

func TestDecideNoVotes(t *testing.T) {
	pool := smallPool(t, 2, domain.RoleMarketAnalysis)
	ids := make(map[string]bool)
	for _, a := range pool.Active() {
		ids[a.ID] = true
	}
	votes := &scriptedVotes{fail: ids}
	c := NewCoordinator(pool, votes, CoordinatorConfig{ConsensusThreshold: 0.5}, discard())

	result := c.Decide(context.Background(), testOpportunity())

	if result.Approved {
		t.Fatal("approved with zero votes")
	}
	if result.Score != 0 || result.TotalVotes != 0 {
		t.Errorf("score=%v totalVotes=%d, want 0 and 0", result.Score, result.TotalVotes)
	}
	if result.Reasoning != domain.ErrNoQuorum.Error() {
		t.Errorf("reasoning = %q, want %q", result.Reasoning, domain.ErrNoQuorum)
	}
}

func TestSynthesizeReasoningDeterministicOrder(t *testing.T) {
	votes := []domain.AgentVote{
		{AgentID: "b", Recommendation: domain.RecommendSkip, Confidence: 0.5, Reasoning: "thin liquidity"},
		{AgentID: "a", Recommendation: domain.RecommendExecute, Confidence: 0.9},
	}

	got := synthesizeReasoning(votes)
	want := "a: execute (0.90); b: skip (0.50) - thin liquidity"
	if got != want {
		t.Fatalf("reasoning = %q, want %q", got, want)
	}
	// Reversed input produces identical output.
	if again := synthesizeReasoningReversed(votes); again != got {
		t.Fatalf("order-dependent reasoning: %q vs %q", again, got)
	}
}

func synthesizeReasoningReversed(votes []domain.AgentVote) string {
	rev := make([]domain.AgentVote, 0, len(votes))
	for i := len(votes) - 1; i >= 0; i-- {
		rev = append(rev, votes[i])
	}
	return synthesizeReasoning(rev)
}

func TestTallyThresholdBoundary(t *testing.T) {
	votes := []domain.AgentVote{
		{AgentID: "a", Recommendation: domain.RecommendExecute},
		{AgentID: "b", Recommendation: domain.RecommendExecute},
		{AgentID: "c", Recommendation: domain.RecommendWait},
	}

	// Score is exactly 2/3; an equal threshold passes, anything above fails.
	if r := tally(votes, 2.0/3.0); !r.Approved {
		t.Error("score equal to threshold should approve")
	}
	if r := tally(votes, 0.67); r.Approved {
		t.Error("score below threshold should not approve")
	}
	if strings.Count(tally(votes, 0.5).Reasoning, ";") != 2 {
		t.Error("reasoning should join all three votes")
	}
}
