package swarm

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/swarmarb/swarmarb/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countRole(agents []domain.Agent, role domain.AgentRole) int {
	n := 0
	for _, a := range agents {
		if a.Role == role {
			n++
		}
	}
	return n
}

func TestNewPoolSeedsRoster(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), discard())
	agents := p.Snapshot()

	if len(agents) != 8 { // coordinator + 2+2+1+1+1
		t.Fatalf("roster size = %d, want 8", len(agents))
	}
	if countRole(agents, domain.RoleCoordinator) != 1 {
		t.Error("expected exactly one coordinator")
	}
	if countRole(agents, domain.RoleExecution) != 1 {
		t.Error("expected one execution agent")
	}
	for _, a := range agents {
		if a.Status != domain.AgentActive {
			t.Errorf("agent %s seeded with status %s, want active", a.ID, a.Status)
		}
		if a.WorkloadWeight != 1.0 {
			t.Errorf("agent %s weight = %v, want 1.0", a.ID, a.WorkloadWeight)
		}
	}
}

func TestComputeLoad(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), discard())
	if got := p.ComputeLoad(); got != 1.0 {
		t.Fatalf("load of all-active pool = %v, want 1.0", got)
	}

	agents := p.Snapshot()
	p.UpdateAgent(agents[1].ID, domain.AgentIdle, 0)
	p.UpdateAgent(agents[2].ID, domain.AgentIdle, 0)

	want := 6.0 / 8.0
	if got := p.ComputeLoad(); got != want {
		t.Fatalf("load = %v, want %v", got, want)
	}
}

func TestAutoScaleUpRespectsMaxAgents(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.MaxAgents = 9
	cfg.ScaleUpCount = 3
	p := NewPool(cfg, discard())

	// All agents active: load 1.0 > 0.9 triggers scale-up, capped at max.
	added := p.AutoScale()
	if added != 1 {
		t.Fatalf("added = %d, want 1 (capped by max_agents)", added)
	}
	if got := len(p.Snapshot()); got != 9 {
		t.Fatalf("roster size = %d, want 9", got)
	}

	// At capacity nothing further is added.
	if added := p.AutoScale(); added != 0 {
		t.Fatalf("added at capacity = %d, want 0", added)
	}
}

func TestAutoScaleUpRole(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.MaxAgents = 20
	cfg.ScaleUpCount = 2
	cfg.ScaleUpRole = domain.RoleArbitrageDetection
	p := NewPool(cfg, discard())

	before := countRole(p.Snapshot(), domain.RoleArbitrageDetection)
	if added := p.AutoScale(); added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	after := countRole(p.Snapshot(), domain.RoleArbitrageDetection)
	if after != before+2 {
		t.Fatalf("arbitrage_detection agents = %d, want %d", after, before+2)
	}
}

func TestAutoScaleDownPicksLowestSuccessRate(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), discard())
	agents := p.Snapshot()

	// Drive load below 0.3: mark most agents idle.
	for _, a := range agents[2:] {
		p.UpdateAgent(a.ID, domain.AgentIdle, 0)
	}

	// Give one non-essential agent a visibly bad record.
	var victim string
	for _, a := range p.Snapshot() {
		if a.Role == domain.RoleMarketAnalysis {
			victim = a.ID
			break
		}
	}
	for i := 0; i < 20; i++ {
		p.RecordResult(victim, false)
	}

	if net := p.AutoScale(); net != -1 {
		t.Fatalf("net scale = %d, want -1", net)
	}
	for _, a := range p.Snapshot() {
		if a.ID == victim {
			t.Fatalf("lowest-successRate agent %s still in roster", victim)
		}
	}
}

func TestAutoScaleDownNeverRemovesLastExecutionAgent(t *testing.T) {
	cfg := PoolConfig{
		MaxAgents: 4,
		InitialAgents: map[domain.AgentRole]int{
			domain.RoleExecution: 3,
		},
		ScaleUpThreshold:   0.9,
		ScaleDownThreshold: 0.3,
		ScaleUpCount:       1,
		ScaleUpRole:        domain.RoleMarketAnalysis,
		HighLoadThreshold:  0.8,
		LowLoadThreshold:   0.2,
	}
	p := NewPool(cfg, discard())

	// Idle the whole pool, then bring a single execution agent back: load is
	// 1/4 which sits below the scale-down threshold, but the only removable
	// candidates are execution agents guarding a lone active executor.
	agents := p.Snapshot()
	for _, a := range agents {
		p.UpdateAgent(a.ID, domain.AgentIdle, 0)
	}
	for _, a := range agents {
		if a.Role == domain.RoleExecution {
			p.UpdateAgent(a.ID, domain.AgentActive, 0.1)
			break
		}
	}

	if net := p.AutoScale(); net != 0 {
		t.Fatalf("net scale = %d, want 0 (nothing removable)", net)
	}
	after := p.Snapshot()
	if countRole(after, domain.RoleExecution) != 3 || countRole(after, domain.RoleCoordinator) != 1 {
		t.Fatalf("essential agents were removed: %+v", after)
	}
}

func TestBalanceLoadAdjustsWeights(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), discard())
	agents := p.Snapshot()

	hot, cold, steady := agents[0].ID, agents[1].ID, agents[2].ID
	p.UpdateAgent(hot, domain.AgentActive, 0.95)
	p.UpdateAgent(cold, domain.AgentActive, 0.05)
	p.UpdateAgent(steady, domain.AgentActive, 0.5)

	p.BalanceLoad()

	weights := make(map[string]float64)
	for _, a := range p.Snapshot() {
		weights[a.ID] = a.WorkloadWeight
	}
	if weights[hot] != 0.5 {
		t.Errorf("hot agent weight = %v, want 0.5", weights[hot])
	}
	if weights[cold] != 1.5 {
		t.Errorf("cold agent weight = %v, want 1.5", weights[cold])
	}
	if weights[steady] != 1.0 {
		t.Errorf("steady agent weight = %v, want unchanged 1.0", weights[steady])
	}
}

func TestBalanceLoadClampsWeights(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), discard())
	cold := p.Snapshot()[0].ID
	p.UpdateAgent(cold, domain.AgentActive, 0.01)

	// Repeated boosts must not exceed the clamp.
	for i := 0; i < 5; i++ {
		p.BalanceLoad()
	}
	for _, a := range p.Snapshot() {
		if a.ID == cold && a.WorkloadWeight > 2.0 {
			t.Fatalf("weight %v exceeds clamp of 2.0", a.WorkloadWeight)
		}
	}
}

func TestConcurrentReadersSeeConsistentRoster(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), discard())

	var wg sync.WaitGroup

	// Writer: scale and balance continuously.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			p.AutoScale()
			p.BalanceLoad()
		}
	}()

	// Readers: every snapshot must be internally consistent.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				agents := p.Active()
				for _, a := range agents {
					if a.Status != domain.AgentActive {
						t.Errorf("Active() returned agent with status %s", a.Status)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
