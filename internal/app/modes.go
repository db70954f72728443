package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swarmarb/swarmarb/internal/bridge"
	"github.com/swarmarb/swarmarb/internal/detector"
	"github.com/swarmarb/swarmarb/internal/domain"
	"github.com/swarmarb/swarmarb/internal/feed"
	"github.com/swarmarb/swarmarb/internal/pipeline"
	"github.com/swarmarb/swarmarb/internal/risk"
	"github.com/swarmarb/swarmarb/internal/sim"
	"github.com/swarmarb/swarmarb/internal/swarm"
)

// coordinatorLockKey is the distributed lock guarding the coordination loop
// so only one replica executes cycles at a time.
const coordinatorLockKey = "coordinator"

// core bundles the domain components one operating mode runs. Built fresh
// per mode from config plus the wired infrastructure.
type core struct {
	buckets      []domain.Bucket
	source       domain.SnapshotSource
	wsFeed       *feed.WSFeed // non-nil only for the ws source
	pool         *swarm.Pool
	consensus    *swarm.Coordinator
	router       *bridge.Router
	executor     *sim.PaperExecutor
	orchestrator *pipeline.Orchestrator
}

// buildCore constructs the agent pool, consensus coordinator, bridge router,
// and orchestrator from configuration. The risk provider, vote endpoint,
// bridge providers, and trade executor are the deterministic in-process
// implementations; production integrations replace them behind the same
// interfaces.
func (a *App) buildCore(deps *Dependencies, detectOnly bool) *core {
	logger := a.logger

	buckets := make([]domain.Bucket, 0, len(a.cfg.Feed.Buckets))
	for _, b := range a.cfg.Feed.Buckets {
		buckets = append(buckets, domain.Bucket{Venue: b.Venue, Chain: b.Chain})
	}

	c := &core{buckets: buckets}

	switch a.cfg.Feed.Source {
	case "ws":
		c.wsFeed = feed.NewWSFeed(a.cfg.Feed.WsURL, buckets, a.cfg.Feed.MaxAge.Duration, logger)
		c.source = c.wsFeed
	default:
		prices := make(map[domain.Bucket]map[string]float64, len(buckets))
		for _, b := range buckets {
			if p, ok := a.cfg.Feed.Prices[b.Key()]; ok {
				prices[b] = p
			}
		}
		c.source = feed.NewStaticSource(prices)
	}

	initial := make(map[domain.AgentRole]int, len(a.cfg.Swarm.InitialAgents))
	for role, n := range a.cfg.Swarm.InitialAgents {
		initial[domain.AgentRole(role)] = n
	}
	c.pool = swarm.NewPool(swarm.PoolConfig{
		MaxAgents:          a.cfg.Swarm.MaxAgents,
		InitialAgents:      initial,
		ScaleUpThreshold:   a.cfg.Swarm.ScaleUpThreshold,
		ScaleDownThreshold: a.cfg.Swarm.ScaleDownThreshold,
		ScaleUpCount:       a.cfg.Swarm.ScaleUpCount,
		ScaleUpRole:        domain.AgentRole(a.cfg.Swarm.ScaleUpRole),
		HighLoadThreshold:  a.cfg.Swarm.HighLoadThreshold,
		LowLoadThreshold:   a.cfg.Swarm.LowLoadThreshold,
	}, logger)

	votes := sim.NewVoteCaster(sim.VoteConfig{
		MinProfitPct: a.cfg.Detector.MinProfitThresholdPct,
		MaxRiskScore: a.cfg.Risk.MaxRiskScore,
	})
	c.consensus = swarm.NewCoordinator(c.pool, votes, swarm.CoordinatorConfig{
		ConsensusThreshold: a.cfg.Consensus.Threshold,
		VoteTimeout:        a.cfg.Consensus.VoteTimeout.Duration,
	}, logger)

	c.router = bridge.NewRouter(sim.DefaultProviders(), bridge.Config{
		SupportedChains: a.cfg.Bridge.SupportedChains,
		MonitorInterval: a.cfg.Bridge.MonitorInterval.Duration,
		RetentionWindow: a.cfg.Bridge.RetentionWindow.Duration,
	}, deps.Transfers, logger)

	scorer := risk.NewScorer(
		sim.NewRiskProvider(a.cfg.Risk.MaxRiskScore),
		risk.Config{Timeout: a.cfg.Risk.AnalysisTimeout.Duration},
		logger,
	)

	c.executor = sim.NewPaperExecutor()

	c.orchestrator = pipeline.NewOrchestrator(pipeline.Deps{
		Source:    c.source,
		Buckets:   buckets,
		Detector:  detector.Config{MinProfitThresholdPct: a.cfg.Detector.MinProfitThresholdPct, FeeEstimates: a.cfg.Detector.FeeEstimates},
		Scorer:    scorer,
		Pool:      c.pool,
		Consensus: c.consensus,
		Router:    c.router,
		Trades:    c.executor,

		Opportunities: deps.Opportunities,
		Cache:         deps.Cache,
		Bus:           deps.Bus,
		Notifier:      deps.Notifier,
	}, pipeline.Config{
		CycleInterval:   a.cfg.Pipeline.CycleInterval.Duration,
		MaxInFlight:     int64(a.cfg.Pipeline.MaxInFlight),
		MaxRiskScore:    a.cfg.Risk.MaxRiskScore,
		TradeAmount:     a.cfg.Pipeline.TradeAmount,
		BridgeRecipient: a.cfg.Pipeline.BridgeRecipient,
		DetectOnly:      detectOnly,
		InitialBackoff:  a.cfg.Pipeline.InitialBackoff.Duration,
		MaxBackoff:      a.cfg.Pipeline.MaxBackoff.Duration,
	}, logger)

	return c
}

// RunMode starts the full coordination loop: snapshot feed, detect-vote-
// execute cycles, transfer monitoring, archival, and status reporting. When
// a lock manager is wired, only one replica at a time holds the coordinator
// lock.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")

	if deps.Locks != nil {
		unlock, err := deps.Locks.Acquire(ctx, coordinatorLockKey, a.cfg.Redis.LockTTL.Duration)
		if err != nil {
			return err
		}
		defer unlock()
	}

	c := a.buildCore(deps, false)

	g, ctx := errgroup.WithContext(ctx)

	if c.wsFeed != nil {
		g.Go(func() error {
			defer c.wsFeed.Close()
			return c.wsFeed.Run(ctx)
		})
	}

	g.Go(func() error {
		return c.orchestrator.Run(ctx)
	})

	g.Go(func() error {
		return c.router.Monitor(ctx)
	})

	if deps.Archiver != nil && a.cfg.Pipeline.ArchiveCron != "" {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger)
		g.Go(func() error {
			return archiver.RunCron(ctx, a.cfg.Pipeline.ArchiveCron)
		})
	}

	g.Go(func() error {
		return a.statusLoop(ctx, c)
	})

	return g.Wait()
}

// DetectMode runs detection and risk scoring only: opportunities are
// detected, scored, persisted, and published, but never voted on or
// executed.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode")

	c := a.buildCore(deps, true)

	g, ctx := errgroup.WithContext(ctx)

	if c.wsFeed != nil {
		g.Go(func() error {
			defer c.wsFeed.Close()
			return c.wsFeed.Run(ctx)
		})
	}

	g.Go(func() error {
		return c.orchestrator.Run(ctx)
	})

	g.Go(func() error {
		return a.statusLoop(ctx, c)
	})

	return g.Wait()
}

// executionStream is implemented by buses that keep the durable executions
// stream; monitor mode tails it when available.
type executionStream interface {
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error)
}

// MonitorMode runs transfer monitoring only: pending bridge transfers are
// polled for settlement, the executions stream is tailed, and aged records
// are archived, without starting the coordination loop.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	c := a.buildCore(deps, false)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.router.Monitor(ctx)
	})

	if es, ok := deps.Bus.(executionStream); ok {
		g.Go(func() error {
			return a.tailExecutions(ctx, es)
		})
	}

	if deps.Archiver != nil && a.cfg.Pipeline.ArchiveCron != "" {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger)
		g.Go(func() error {
			return archiver.RunCron(ctx, a.cfg.Pipeline.ArchiveCron)
		})
	}

	g.Go(func() error {
		return a.statusLoop(ctx, c)
	})

	return g.Wait()
}

// tailExecutions polls the durable executions stream and logs every entry,
// resuming from the last seen ID.
func (a *App) tailExecutions(ctx context.Context, es executionStream) error {
	interval := a.cfg.Bridge.MonitorInterval.Duration
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastID := "0"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			msgs, err := es.StreamRead(ctx, pipeline.StreamExecutions, lastID, 100)
			if err != nil {
				a.logger.WarnContext(ctx, "execution stream read failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			for _, msg := range msgs {
				a.logger.InfoContext(ctx, "execution recorded",
					slog.String("stream_id", msg.ID),
					slog.String("payload", string(msg.Payload)),
				)
				lastID = msg.ID
			}
		}
	}
}

// statusLoop periodically logs the swarm status, loop metrics, and bridge
// metrics.
func (a *App) statusLoop(ctx context.Context, c *core) error {
	interval := a.cfg.Pipeline.StatusInterval.Duration
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.logStatus(ctx, c)
		}
	}
}

func (a *App) logStatus(ctx context.Context, c *core) {
	st := c.pool.Status()
	sm := c.orchestrator.Metrics().Snapshot()
	bm := c.router.Metrics().Snapshot()

	a.logger.InfoContext(ctx, "swarm status",
		slog.Int("agents_total", st.TotalAgents),
		slog.Int("agents_active", st.ActiveAgents),
		slog.Float64("pool_load", st.Load),
		slog.Int64("opportunities", sm.TotalOpportunities),
		slog.Int64("trades_ok", sm.SuccessfulTrades),
		slog.Int64("trades_failed", sm.FailedTrades),
		slog.Float64("total_profit", sm.TotalProfit),
		slog.Int64("transfers_total", bm.TotalTransfers),
		slog.Int64("transfers_ok", bm.SuccessfulTransfers),
		slog.Float64("bridge_fees_paid", bm.TotalFeesPaid),
	)
}
