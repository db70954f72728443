package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/swarmarb/swarmarb/internal/bridge"
	"github.com/swarmarb/swarmarb/internal/detector"
	"github.com/swarmarb/swarmarb/internal/domain"
	"github.com/swarmarb/swarmarb/internal/risk"
	"github.com/swarmarb/swarmarb/internal/swarm"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticSource serves a fixed price table per bucket.
type staticSource struct {
	prices map[string]map[string]float64 // bucket key -> token -> price
	err    error
}

func (s *staticSource) Fetch(_ context.Context, venue, chain string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.prices[venue+"_"+chain], nil
}

// approveAll scores every opportunity as low risk.
type approveAll struct{}

func (approveAll) Analyze(context.Context, domain.RiskContext) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{
		RiskScore:      10,
		Recommendation: domain.RecommendExecute,
		Confidence:     0.9,
	}, nil
}

// rejectAll scores every opportunity above any sane risk ceiling.
type rejectAll struct{}

func (rejectAll) Analyze(context.Context, domain.RiskContext) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{
		RiskScore:      95,
		Recommendation: domain.RecommendSkip,
		Confidence:     0.9,
	}, nil
}

// yesVotes approves every consensus poll.
type yesVotes struct{}

func (yesVotes) Vote(_ context.Context, agent domain.Agent, _ domain.Opportunity) (domain.AgentVote, error) {
	return domain.AgentVote{AgentID: agent.ID, Recommendation: domain.RecommendExecute, Confidence: 0.9}, nil
}

// recordingExecutor counts trade legs; scripted failures by side.
type recordingExecutor struct {
	mu       sync.Mutex
	calls    []domain.TradeSide
	failSide domain.TradeSide
}

func (e *recordingExecutor) Execute(_ context.Context, _, _, _ string, _ float64, side domain.TradeSide) (domain.TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, side)
	if side == e.failSide {
		return domain.TradeResult{}, errors.New("venue rejected order")
	}
	return domain.TradeResult{Success: true, TxHash: "0xtrade"}, nil
}

func (e *recordingExecutor) count(side domain.TradeSide) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, s := range e.calls {
		if s == side {
			n++
		}
	}
	return n
}

// instantBridge always quotes cheaply and settles synchronously.
type instantBridge struct{}

func (instantBridge) Name() string { return "hop" }

func (instantBridge) Quote(context.Context, domain.TransferRequest) (domain.ProviderQuote, error) {
	return domain.ProviderQuote{GasFees: 0.5, BridgeFees: 0.5, Speed: time.Minute, Reliability: 0.99}, nil
}

func (instantBridge) Execute(context.Context, domain.TransferRequest) (domain.ExecuteResult, error) {
	return domain.ExecuteResult{Status: domain.TransferCompleted, TxHash: "0xbridge"}, nil
}

func (instantBridge) Status(context.Context, string) (domain.TransferStatus, error) {
	return domain.TransferCompleted, nil
}

func newTestOrchestrator(t *testing.T, source domain.SnapshotSource, provider domain.RiskAnalysisProvider, trades *recordingExecutor) *Orchestrator {
	t.Helper()
	pool := swarm.NewPool(swarm.DefaultPoolConfig(), discard())
	deps := Deps{
		Source: source,
		Buckets: []domain.Bucket{
			{Venue: "uniswap", Chain: "ethereum"},
			{Venue: "quickswap", Chain: "polygon"},
		},
		Detector: detector.Config{MinProfitThresholdPct: 0.5},
		Scorer:   risk.NewScorer(provider, risk.Config{Timeout: time.Second}, discard()),
		Pool:     pool,
		Consensus: swarm.NewCoordinator(pool, yesVotes{}, swarm.CoordinatorConfig{
			ConsensusThreshold: 0.66,
			VoteTimeout:        time.Second,
		}, discard()),
		Router: bridge.NewRouter([]domain.BridgeProvider{instantBridge{}}, bridge.DefaultConfig(), nil, discard()),
		Trades: trades,
	}
	cfg := DefaultConfig()
	cfg.BridgeRecipient = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	return NewOrchestrator(deps, cfg, discard())
}

func crossChainPrices() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"uniswap_ethereum":  {"WETH": 1.00},
		"quickswap_polygon": {"WETH": 1.05},
	}
}

func TestCycleExecutesApprovedCrossChainOpportunity(t *testing.T) {
	trades := &recordingExecutor{}
	o := newTestOrchestrator(t, &staticSource{prices: crossChainPrices()}, approveAll{}, trades)

	if err := o.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if got := trades.count(domain.TradeBuy); got != 1 {
		t.Errorf("buy legs = %d, want 1", got)
	}
	if got := trades.count(domain.TradeSell); got != 1 {
		t.Errorf("sell legs = %d, want 1", got)
	}

	m := o.Metrics().Snapshot()
	if m.TotalOpportunities != 1 {
		t.Errorf("opportunities = %d, want 1", m.TotalOpportunities)
	}
	if m.SuccessfulTrades != 1 || m.FailedTrades != 0 {
		t.Errorf("trades = %d success / %d failed, want 1/0", m.SuccessfulTrades, m.FailedTrades)
	}
	// spread 0.05 * amount 100 minus 1.0 bridge fees
	if got, want := m.TotalProfit, 4.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("profit = %v, want %v", got, want)
	}

	bm := o.deps.Router.Metrics().Snapshot()
	if bm.SuccessfulTransfers != 1 {
		t.Errorf("bridge transfers = %d, want 1", bm.SuccessfulTransfers)
	}
}

func TestCycleFiltersHighRiskOpportunity(t *testing.T) {
	trades := &recordingExecutor{}
	o := newTestOrchestrator(t, &staticSource{prices: crossChainPrices()}, rejectAll{}, trades)

	if err := o.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(trades.calls) != 0 {
		t.Errorf("trades executed despite risk filter: %v", trades.calls)
	}
	m := o.Metrics().Snapshot()
	if m.TotalOpportunities != 1 {
		t.Errorf("opportunities = %d, want 1 (counted even when filtered)", m.TotalOpportunities)
	}
	if m.SuccessfulTrades != 0 || m.FailedTrades != 0 {
		t.Errorf("filtered opportunity recorded a trade outcome: %+v", m)
	}
}

func TestCycleAllBucketsFailed(t *testing.T) {
	trades := &recordingExecutor{}
	o := newTestOrchestrator(t, &staticSource{err: errors.New("feed down")}, approveAll{}, trades)

	err := o.Cycle(context.Background())
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("error = %v, want ErrDataUnavailable", err)
	}
}

func TestCycleFailedSellLegRecordsFailure(t *testing.T) {
	trades := &recordingExecutor{failSide: domain.TradeSell}
	o := newTestOrchestrator(t, &staticSource{prices: crossChainPrices()}, approveAll{}, trades)

	if err := o.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	m := o.Metrics().Snapshot()
	if m.FailedTrades != 1 || m.SuccessfulTrades != 0 {
		t.Errorf("trades = %d success / %d failed, want 0/1", m.SuccessfulTrades, m.FailedTrades)
	}
	if m.TotalProfit != 0 {
		t.Errorf("profit accrued on failed execution: %v", m.TotalProfit)
	}
}

func TestCycleSameChainSkipsBridge(t *testing.T) {
	trades := &recordingExecutor{}
	prices := map[string]map[string]float64{
		"uniswap_ethereum":   {"WETH": 1.00},
		"sushiswap_ethereum": {"WETH": 1.05},
	}
	o := newTestOrchestrator(t, &staticSource{prices: prices}, approveAll{}, trades)
	o.deps.Buckets = []domain.Bucket{
		{Venue: "uniswap", Chain: "ethereum"},
		{Venue: "sushiswap", Chain: "ethereum"},
	}

	if err := o.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if bm := o.deps.Router.Metrics().Snapshot(); bm.TotalTransfers != 0 {
		t.Errorf("bridge used for same-chain opportunity: %+v", bm)
	}
	m := o.Metrics().Snapshot()
	if m.SuccessfulTrades != 1 {
		t.Errorf("successful trades = %d, want 1", m.SuccessfulTrades)
	}
	// No bridge fees on a same-chain pair.
	if got, want := m.TotalProfit, 5.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("profit = %v, want %v", got, want)
	}
}

func TestCycleDetectOnlySkipsConsensusAndExecution(t *testing.T) {
	trades := &recordingExecutor{}
	o := newTestOrchestrator(t, &staticSource{prices: crossChainPrices()}, approveAll{}, trades)
	o.cfg.DetectOnly = true

	if err := o.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(trades.calls) != 0 {
		t.Errorf("trades executed in detect-only mode: %v", trades.calls)
	}
	if bm := o.deps.Router.Metrics().Snapshot(); bm.TotalTransfers != 0 {
		t.Errorf("bridge used in detect-only mode: %+v", bm)
	}
	m := o.Metrics().Snapshot()
	if m.TotalOpportunities != 1 {
		t.Errorf("opportunities = %d, want 1", m.TotalOpportunities)
	}
}

func TestCycleRunsPoolMaintenance(t *testing.T) {
	trades := &recordingExecutor{}
	o := newTestOrchestrator(t, &staticSource{prices: crossChainPrices()}, approveAll{}, trades)

	before := len(o.deps.Pool.Snapshot())
	if err := o.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	// All agents active: the cycle's AutoScale pass grows the pool.
	if after := len(o.deps.Pool.Snapshot()); after <= before {
		t.Errorf("pool size %d -> %d, want growth from auto-scale", before, after)
	}
}
