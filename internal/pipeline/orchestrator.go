// Package pipeline runs the coordination loop: snapshot collection, spread
// detection, risk scoring, consensus, and execution, plus the cold-storage
// archival schedule.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/swarmarb/swarmarb/internal/bridge"
	"github.com/swarmarb/swarmarb/internal/detector"
	"github.com/swarmarb/swarmarb/internal/domain"
	"github.com/swarmarb/swarmarb/internal/notify"
	"github.com/swarmarb/swarmarb/internal/risk"
	"github.com/swarmarb/swarmarb/internal/swarm"
)

// Pub/sub channels for coordinator events.
const (
	ChannelOpportunities = "swarm:opportunities"
	ChannelConsensus     = "swarm:consensus"
	ChannelTransfers     = "swarm:transfers"
)

// StreamExecutions is the durable stream of executed opportunities.
const StreamExecutions = "swarm:executions"

// StreamBus is implemented by buses that also keep durable event streams;
// the orchestrator appends executed opportunities when the wired bus
// supports it.
type StreamBus interface {
	domain.SignalBus
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Notification event types.
const (
	EventOpportunityExecuted = "opportunity_executed"
	EventTransferFailed      = "transfer_failed"
)

// Config holds the coordination loop parameters.
type Config struct {
	// CycleInterval is the pause between successful coordination cycles.
	CycleInterval time.Duration

	// MaxInFlight bounds how many opportunities are scored and executed
	// concurrently within one cycle.
	MaxInFlight int64

	// MaxRiskScore filters out opportunities whose assessed risk exceeds it.
	MaxRiskScore float64

	// TradeAmount is the token amount used for each paired execution.
	TradeAmount float64

	// BridgeRecipient receives cross-chain transfers.
	BridgeRecipient string

	// DetectOnly stops processing after risk scoring: no consensus rounds,
	// no execution. Used by the detection-only operating mode.
	DetectOnly bool

	// InitialBackoff / MaxBackoff bound the retry delay after a failed
	// cycle. The delay doubles per consecutive failure and resets on the
	// first success.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the loop parameters used when config leaves them
// unset.
func DefaultConfig() Config {
	return Config{
		CycleInterval:  30 * time.Second,
		MaxInFlight:    4,
		MaxRiskScore:   70,
		TradeAmount:    100,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     2 * time.Minute,
	}
}

// Deps bundles the collaborators the orchestrator coordinates. Source,
// Buckets, Scorer, Pool, Consensus, Router, and Trades are required; the
// stores, cache, bus, and notifier degrade to no-ops when nil.
type Deps struct {
	Source    domain.SnapshotSource
	Buckets   []domain.Bucket
	Detector  detector.Config
	Scorer    *risk.Scorer
	Pool      *swarm.Pool
	Consensus *swarm.Coordinator
	Router    *bridge.Router
	Trades    domain.TradeExecutor

	Opportunities domain.OpportunityStore
	Cache         domain.SnapshotCache
	Bus           domain.SignalBus
	Notifier      *notify.Notifier
}

// Orchestrator drives the detect-vote-execute loop.
type Orchestrator struct {
	deps    Deps
	cfg     Config
	sem     *semaphore.Weighted
	metrics *domain.SwarmMetrics
	logger  *slog.Logger
}

// NewOrchestrator creates the coordination loop over the given dependencies.
func NewOrchestrator(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 30 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		metrics: &domain.SwarmMetrics{},
		logger:  logger.With(slog.String("component", "orchestrator")),
	}
}

// Metrics returns the loop's cumulative counters.
func (o *Orchestrator) Metrics() *domain.SwarmMetrics { return o.metrics }

// Run executes coordination cycles until ctx is canceled. A failed cycle
// backs off exponentially up to MaxBackoff; the first successful cycle
// resets the delay.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("coordination loop starting",
		slog.Duration("cycle_interval", o.cfg.CycleInterval),
		slog.Int64("max_in_flight", o.cfg.MaxInFlight),
		slog.Int("buckets", len(o.deps.Buckets)),
	)

	backoff := o.cfg.InitialBackoff
	for {
		wait := o.cfg.CycleInterval
		if err := o.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("cycle failed",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)
			wait = backoff
			backoff *= 2
			if backoff > o.cfg.MaxBackoff {
				backoff = o.cfg.MaxBackoff
			}
		} else {
			backoff = o.cfg.InitialBackoff
		}

		select {
		case <-ctx.Done():
			o.logger.Info("coordination loop stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Cycle runs one full coordination pass. Per-opportunity failures are
// isolated; only cycle-level problems (no market data at all) are returned
// as errors.
func (o *Orchestrator) Cycle(ctx context.Context) error {
	started := time.Now()

	snap, err := o.collectSnapshot(ctx)
	if err != nil {
		return err
	}

	opps := detector.Detect(snap, o.deps.Detector)
	for _, opp := range opps {
		o.metrics.RecordOpportunity()
		if o.deps.Opportunities != nil {
			if err := o.deps.Opportunities.Create(ctx, opp); err != nil {
				o.logger.WarnContext(ctx, "opportunity persist failed",
					slog.String("opportunity_id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		o.publish(ctx, ChannelOpportunities, opp)
	}

	var wg sync.WaitGroup
	for _, opp := range opps {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(opp domain.Opportunity) {
			defer wg.Done()
			defer o.sem.Release(1)
			if err := o.processOpportunity(ctx, opp); err != nil {
				o.logger.WarnContext(ctx, "opportunity processing failed",
					slog.String("opportunity_id", opp.ID),
					slog.String("token", opp.Token),
					slog.String("error", err.Error()),
				)
			}
		}(opp)
	}
	wg.Wait()

	// Scaling and rebalancing run once per cycle, after the workload.
	o.deps.Pool.AutoScale()
	o.deps.Pool.BalanceLoad()

	o.logger.InfoContext(ctx, "cycle complete",
		slog.Int("opportunities", len(opps)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// collectSnapshot fetches every configured bucket. Failed buckets are logged
// and skipped; when no bucket yields prices the cycle cannot proceed and
// ErrDataUnavailable is returned.
func (o *Orchestrator) collectSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{
		Prices:  make(map[domain.Bucket]map[string]float64, len(o.deps.Buckets)),
		TakenAt: time.Now().UTC(),
	}

	for _, b := range o.deps.Buckets {
		prices, err := o.deps.Source.Fetch(ctx, b.Venue, b.Chain)
		if err != nil {
			o.logger.WarnContext(ctx, "bucket fetch failed",
				slog.String("bucket", b.Key()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(prices) == 0 {
			continue
		}
		snap.Prices[b] = prices

		if o.deps.Cache != nil {
			if err := o.deps.Cache.SetPrices(ctx, b.Key(), prices, snap.TakenAt); err != nil {
				o.logger.WarnContext(ctx, "price cache write failed",
					slog.String("bucket", b.Key()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if len(snap.Prices) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("pipeline: no bucket returned prices: %w", domain.ErrDataUnavailable)
	}
	return snap, nil
}

// processOpportunity takes one opportunity through risk scoring, the
// consensus round, and execution.
func (o *Orchestrator) processOpportunity(ctx context.Context, opp domain.Opportunity) error {
	scored, assessment := o.deps.Scorer.Score(ctx, o.riskContext(opp))

	if assessment.Recommendation != domain.RecommendExecute || scored.RiskScore > o.cfg.MaxRiskScore {
		o.logger.InfoContext(ctx, "opportunity filtered by risk",
			slog.String("opportunity_id", opp.ID),
			slog.String("token", opp.Token),
			slog.Float64("risk_score", scored.RiskScore),
			slog.String("recommendation", string(assessment.Recommendation)),
		)
		return nil
	}

	if o.cfg.DetectOnly {
		o.logger.InfoContext(ctx, "opportunity passed risk screen",
			slog.String("opportunity_id", scored.ID),
			slog.String("token", scored.Token),
			slog.Float64("risk_score", scored.RiskScore),
		)
		return nil
	}

	result := o.deps.Consensus.Decide(ctx, scored)
	if o.deps.Opportunities != nil {
		if err := o.deps.Opportunities.RecordConsensus(ctx, scored.ID, result); err != nil {
			o.logger.WarnContext(ctx, "consensus persist failed",
				slog.String("opportunity_id", scored.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	o.publish(ctx, ChannelConsensus, struct {
		OpportunityID string                 `json:"opportunity_id"`
		Result        domain.ConsensusResult `json:"result"`
	}{scored.ID, result})

	if !result.Approved {
		return nil
	}
	return o.execute(ctx, scored)
}

// riskContext derives the contextual features handed to the risk provider.
// Spread width stands in for volatility until a proper feed exists;
// gas/bridge estimates come from the detector fee table.
func (o *Orchestrator) riskContext(opp domain.Opportunity) domain.RiskContext {
	rc := domain.RiskContext{
		Opportunity: opp,
		Volatility:  opp.ProfitPct / 100,
	}
	if fee, ok := o.deps.Detector.FeeEstimates[opp.Token]; ok {
		rc.GasFeeUSD = fee
	}
	if opp.CrossChain() {
		rc.BridgeFeeUSD = rc.GasFeeUSD
	}
	return rc
}

// execute realizes an approved opportunity: a bridge transfer when the legs
// sit on different chains, then the paired buy and sell.
func (o *Orchestrator) execute(ctx context.Context, opp domain.Opportunity) error {
	var bridgeFees float64
	if opp.CrossChain() {
		transfer, err := o.deps.Router.Transfer(ctx, domain.TransferRequest{
			SourceChain: opp.SourceChain,
			TargetChain: opp.TargetChain,
			Token:       opp.Token,
			Amount:      o.cfg.TradeAmount,
			Recipient:   o.cfg.BridgeRecipient,
		})
		if err != nil || transfer.Status == domain.TransferFailed {
			o.metrics.RecordTradeFailure()
			o.notify(ctx, EventTransferFailed, "Bridge transfer failed",
				fmt.Sprintf("%s %s -> %s: %v", opp.Token, opp.SourceChain, opp.TargetChain, err))
			if err == nil {
				err = domain.ErrExecutionFailed
			}
			return fmt.Errorf("pipeline: bridge leg: %w", err)
		}
		bridgeFees = transfer.TotalFees()
		o.publish(ctx, ChannelTransfers, transfer)
	}

	buy, err := o.deps.Trades.Execute(ctx, opp.SourceVenue, opp.SourceChain, opp.Token, o.cfg.TradeAmount, domain.TradeBuy)
	if err != nil || !buy.Success {
		o.metrics.RecordTradeFailure()
		return fmt.Errorf("pipeline: buy leg on %s: %w", opp.SourceVenue, tradeErr(err))
	}
	sell, err := o.deps.Trades.Execute(ctx, opp.TargetVenue, opp.TargetChain, opp.Token, o.cfg.TradeAmount, domain.TradeSell)
	if err != nil || !sell.Success {
		o.metrics.RecordTradeFailure()
		return fmt.Errorf("pipeline: sell leg on %s: %w", opp.TargetVenue, tradeErr(err))
	}

	profit := (opp.TargetPrice-opp.SourcePrice)*o.cfg.TradeAmount - bridgeFees
	o.metrics.RecordTradeSuccess(profit)

	if o.deps.Opportunities != nil {
		if err := o.deps.Opportunities.MarkExecuted(ctx, opp.ID, profit); err != nil {
			o.logger.WarnContext(ctx, "execution persist failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	o.notify(ctx, EventOpportunityExecuted, "Arbitrage executed",
		fmt.Sprintf("%s %s->%s profit %.4f", opp.Token, opp.Source().Key(), opp.Target().Key(), profit))
	o.appendExecution(ctx, opp, profit)

	o.logger.InfoContext(ctx, "opportunity executed",
		slog.String("opportunity_id", opp.ID),
		slog.String("token", opp.Token),
		slog.Float64("profit", profit),
	)
	return nil
}

func tradeErr(err error) error {
	if err != nil {
		return err
	}
	return domain.ErrExecutionFailed
}

// appendExecution records the executed opportunity on the durable stream
// when the bus supports streams. Best effort, like publish.
func (o *Orchestrator) appendExecution(ctx context.Context, opp domain.Opportunity, profit float64) {
	sb, ok := o.deps.Bus.(StreamBus)
	if !ok {
		return
	}
	payload, err := json.Marshal(struct {
		OpportunityID string  `json:"opportunity_id"`
		Token         string  `json:"token"`
		Source        string  `json:"source"`
		Target        string  `json:"target"`
		Profit        float64 `json:"profit"`
	}{opp.ID, opp.Token, opp.Source().Key(), opp.Target().Key(), profit})
	if err != nil {
		return
	}
	if err := sb.StreamAppend(ctx, StreamExecutions, payload); err != nil {
		o.logger.WarnContext(ctx, "execution stream append failed",
			slog.String("opportunity_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}

// publish serializes v and sends it on the bus. Publication is best effort.
func (o *Orchestrator) publish(ctx context.Context, channel string, v any) {
	if o.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		o.logger.WarnContext(ctx, "event marshal failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := o.deps.Bus.Publish(ctx, channel, payload); err != nil {
		o.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) notify(ctx context.Context, event, title, message string) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.Notify(ctx, event, title, message); err != nil {
		o.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
