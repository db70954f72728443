package domain

import "time"

// AgentRole is the specialization of a swarm agent.
type AgentRole string

const (
	RoleMarketAnalysis      AgentRole = "market_analysis"
	RoleArbitrageDetection  AgentRole = "arbitrage_detection"
	RoleRiskAssessment      AgentRole = "risk_assessment"
	RoleExecution           AgentRole = "execution"
	RolePortfolioManagement AgentRole = "portfolio_management"
	RoleCoordinator         AgentRole = "coordinator"
)

// AgentStatus is the lifecycle state of an agent. Transitions are driven only
// by the pool.
type AgentStatus string

const (
	AgentActive   AgentStatus = "active"
	AgentIdle     AgentStatus = "idle"
	AgentDegraded AgentStatus = "degraded"
	AgentRemoved  AgentStatus = "removed"
)

// Agent is a logical worker with a role, health, and vote capability. Agents
// are owned exclusively by the pool; everything outside the pool sees copies.
type Agent struct {
	ID             string
	Role           AgentRole
	Status         AgentStatus
	CurrentLoad    float64 // 0..1
	SuccessRate    float64 // 0..1
	WorkloadWeight float64 // 0..2, adjusted by load balancing
	CreatedAt      time.Time
}

// Essential reports whether the agent's role must always keep at least one
// member in the pool. The coordinator and execution agents are never scaled
// to zero.
func (a Agent) Essential() bool {
	return a.Role == RoleCoordinator || a.Role == RoleExecution
}

// AgentVote is one agent's verdict on an opportunity. Votes are ephemeral:
// they exist only for the duration of a consensus round.
type AgentVote struct {
	AgentID        string
	Recommendation Recommendation
	Confidence     float64 // 0..1
	Reasoning      string
}

// ConsensusResult is the aggregated outcome of one consensus round. Derived,
// never mutated.
type ConsensusResult struct {
	Approved      bool
	Score         float64 // approvedVotes / totalVotes, 0 when no votes
	ApprovedVotes int
	TotalVotes    int
	Reasoning     string
}
