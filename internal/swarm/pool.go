// Package swarm implements the agent pool and the consensus coordinator: the
// ownership of agent state, scaling and load balancing, and the
// poll-and-tally machinery that turns individual agent votes into an
// approve/reject decision.
package swarm

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// PoolConfig holds the agent pool parameters.
type PoolConfig struct {
	MaxAgents int

	// InitialAgents maps role to the number of agents seeded at pool
	// creation. A coordinator is always added on top.
	InitialAgents map[domain.AgentRole]int

	// ScaleUpThreshold / ScaleDownThreshold bound the pool load ratio that
	// triggers scaling, checked once per coordination cycle.
	ScaleUpThreshold   float64
	ScaleDownThreshold float64

	// ScaleUpCount agents of ScaleUpRole are added on each scale-up.
	ScaleUpCount int
	ScaleUpRole  domain.AgentRole

	// HighLoadThreshold / LowLoadThreshold drive per-agent workload weight
	// adjustment.
	HighLoadThreshold float64
	LowLoadThreshold  float64
}

// DefaultPoolConfig returns the pool parameters used when config leaves them
// unset.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxAgents: 10,
		InitialAgents: map[domain.AgentRole]int{
			domain.RoleMarketAnalysis:      2,
			domain.RoleArbitrageDetection:  2,
			domain.RoleRiskAssessment:      1,
			domain.RoleExecution:           1,
			domain.RolePortfolioManagement: 1,
		},
		ScaleUpThreshold:   0.9,
		ScaleDownThreshold: 0.3,
		ScaleUpCount:       2,
		ScaleUpRole:        domain.RoleMarketAnalysis,
		HighLoadThreshold:  0.8,
		LowLoadThreshold:   0.2,
	}
}

// Pool owns the set of live agents. Mutations replace the roster slice under
// the mutex (copy-on-write), so concurrent readers always observe a
// consistent snapshot and never a partially-updated collection.
type Pool struct {
	mu     sync.Mutex
	agents []domain.Agent // current published version; never mutated in place
	cfg    PoolConfig
	logger *slog.Logger
}

// NewPool seeds the initial roster from cfg (plus one coordinator) and
// returns the pool.
func NewPool(cfg PoolConfig, logger *slog.Logger) *Pool {
	p := &Pool{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "agent_pool")),
	}

	roster := []domain.Agent{newAgent(domain.RoleCoordinator)}
	roles := make([]domain.AgentRole, 0, len(cfg.InitialAgents))
	for role := range cfg.InitialAgents {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	for _, role := range roles {
		for i := 0; i < cfg.InitialAgents[role]; i++ {
			if cfg.MaxAgents > 0 && len(roster) >= cfg.MaxAgents {
				break
			}
			roster = append(roster, newAgent(role))
		}
	}
	p.agents = roster

	p.logger.Info("agent pool initialized",
		slog.Int("agents", len(roster)),
		slog.Int("max_agents", cfg.MaxAgents),
	)
	return p
}

func newAgent(role domain.AgentRole) domain.Agent {
	return domain.Agent{
		ID:             string(role) + "-" + uuid.New().String()[:8],
		Role:           role,
		Status:         domain.AgentActive,
		SuccessRate:    1.0,
		WorkloadWeight: 1.0,
		CreatedAt:      time.Now().UTC(),
	}
}

// Snapshot returns a copy of the full roster.
func (p *Pool) Snapshot() []domain.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Agent, len(p.agents))
	copy(out, p.agents)
	return out
}

// Active returns a copy of the agents currently in active status. The copy is
// safe to iterate while the pool scales concurrently.
func (p *Pool) Active() []domain.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Agent
	for _, a := range p.agents {
		if a.Status == domain.AgentActive {
			out = append(out, a)
		}
	}
	return out
}

// ComputeLoad returns activeAgents / totalAgents. An empty pool has zero
// load.
func (p *Pool) ComputeLoad() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return computeLoad(p.agents)
}

func computeLoad(agents []domain.Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	active := 0
	for _, a := range agents {
		if a.Status == domain.AgentActive {
			active++
		}
	}
	return float64(active) / float64(len(agents))
}

// AutoScale applies the scaling policy once: above ScaleUpThreshold it adds
// ScaleUpCount agents of ScaleUpRole (bounded by MaxAgents), below
// ScaleDownThreshold it removes the lowest-successRate removable agent. It
// returns the net number of agents added (negative when scaled down).
func (p *Pool) AutoScale() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	load := computeLoad(p.agents)
	switch {
	case load > p.cfg.ScaleUpThreshold:
		return p.scaleUpLocked()
	case load < p.cfg.ScaleDownThreshold:
		return -p.scaleDownLocked()
	}
	return 0
}

func (p *Pool) scaleUpLocked() int {
	role := p.cfg.ScaleUpRole
	if role == "" {
		role = domain.RoleMarketAnalysis
	}

	next := make([]domain.Agent, len(p.agents), len(p.agents)+p.cfg.ScaleUpCount)
	copy(next, p.agents)

	added := 0
	for i := 0; i < p.cfg.ScaleUpCount; i++ {
		if p.cfg.MaxAgents > 0 && len(next) >= p.cfg.MaxAgents {
			break
		}
		next = append(next, newAgent(role))
		added++
	}
	if added == 0 {
		p.logger.Warn("scale up skipped",
			slog.String("reason", domain.ErrPoolExhausted.Error()),
			slog.Int("agents", len(p.agents)),
			slog.Int("max_agents", p.cfg.MaxAgents),
		)
		return 0
	}
	p.agents = next

	p.logger.Info("scaled up",
		slog.Int("added", added),
		slog.String("role", string(role)),
		slog.Int("agents", len(next)),
	)
	return added
}

// scaleDownLocked removes the agent with the lowest success rate among those
// that can be removed. The coordinator is never removed, and the last
// active execution agent is never removed.
func (p *Pool) scaleDownLocked() int {
	activeExecution := 0
	for _, a := range p.agents {
		if a.Role == domain.RoleExecution && a.Status == domain.AgentActive {
			activeExecution++
		}
	}

	victim := -1
	for i, a := range p.agents {
		if a.Status == domain.AgentRemoved {
			continue
		}
		if a.Role == domain.RoleCoordinator {
			continue
		}
		if a.Role == domain.RoleExecution && activeExecution <= 1 {
			continue
		}
		if victim < 0 || a.SuccessRate < p.agents[victim].SuccessRate {
			victim = i
		}
	}
	if victim < 0 {
		return 0
	}

	next := make([]domain.Agent, 0, len(p.agents)-1)
	for i, a := range p.agents {
		if i == victim {
			p.logger.Info("scaled down",
				slog.String("agent_id", a.ID),
				slog.String("role", string(a.Role)),
				slog.Float64("success_rate", a.SuccessRate),
			)
			continue
		}
		next = append(next, a)
	}
	p.agents = next
	return 1
}

// BalanceLoad adjusts workload weights once: agents above HighLoadThreshold
// have their weight halved, agents below LowLoadThreshold get a 1.5x boost.
// Weights are clamped to [0, 2]. It returns the number of agents adjusted.
func (p *Pool) BalanceLoad() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make([]domain.Agent, len(p.agents))
	copy(next, p.agents)

	adjusted := 0
	for i, a := range next {
		switch {
		case a.CurrentLoad > p.cfg.HighLoadThreshold:
			next[i].WorkloadWeight = clampWeight(a.WorkloadWeight / 2)
			adjusted++
		case a.CurrentLoad < p.cfg.LowLoadThreshold:
			next[i].WorkloadWeight = clampWeight(a.WorkloadWeight * 1.5)
			adjusted++
		}
	}
	if adjusted > 0 {
		p.agents = next
	}
	return adjusted
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 2 {
		return 2
	}
	return w
}

// UpdateAgent applies load/status telemetry for one agent. Unknown ids are
// ignored.
func (p *Pool) UpdateAgent(id string, status domain.AgentStatus, load float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make([]domain.Agent, len(p.agents))
	copy(next, p.agents)
	for i, a := range next {
		if a.ID != id {
			continue
		}
		next[i].Status = status
		next[i].CurrentLoad = load
		p.agents = next
		return
	}
}

// RecordResult folds one vote/execution outcome into the agent's success rate
// using an exponential moving average, so recent behavior dominates.
func (p *Pool) RecordResult(id string, success bool) {
	const alpha = 0.2

	p.mu.Lock()
	defer p.mu.Unlock()

	next := make([]domain.Agent, len(p.agents))
	copy(next, p.agents)
	for i, a := range next {
		if a.ID != id {
			continue
		}
		outcome := 0.0
		if success {
			outcome = 1.0
		}
		next[i].SuccessRate = a.SuccessRate*(1-alpha) + outcome*alpha
		p.agents = next
		return
	}
}

// Status aggregates roster counts for operational reporting.
type Status struct {
	TotalAgents  int
	ActiveAgents int
	Load         float64
	ByRole       map[domain.AgentRole]int
	ByStatus     map[domain.AgentStatus]int
}

// Status returns aggregate roster counts.
func (p *Pool) Status() Status {
	agents := p.Snapshot()
	st := Status{
		TotalAgents: len(agents),
		ByRole:      make(map[domain.AgentRole]int),
		ByStatus:    make(map[domain.AgentStatus]int),
	}
	for _, a := range agents {
		st.ByRole[a.Role]++
		st.ByStatus[a.Status]++
		if a.Status == domain.AgentActive {
			st.ActiveAgents++
		}
	}
	if st.TotalAgents > 0 {
		st.Load = float64(st.ActiveAgents) / float64(st.TotalAgents)
	}
	return st
}
