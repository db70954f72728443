package domain

import (
	"context"
	"io"
	"time"
)

// SnapshotSource supplies per-venue, per-chain token prices on demand. It is
// the boundary to the market-data integrations; implementations live in
// internal/feed or in tests.
type SnapshotSource interface {
	// Fetch returns the token->price table for one bucket. It must respect
	// ctx deadlines; a failed or timed-out fetch returns an error and the
	// bucket is skipped for that cycle.
	Fetch(ctx context.Context, venue, chain string) (map[string]float64, error)
}

// RiskContext bundles the opportunity and the contextual features handed to
// the risk analysis provider.
type RiskContext struct {
	Opportunity  Opportunity
	Volatility   float64
	Liquidity    float64
	GasFeeUSD    float64
	BridgeFeeUSD float64
}

// RiskAnalysisProvider is the external analysis backend (an LLM or model
// service in production). Calls are bounded by the caller's context.
type RiskAnalysisProvider interface {
	Analyze(ctx context.Context, rc RiskContext) (RiskAssessment, error)
}

// VoteEndpoint is the per-agent vote capability. The pool owns the Agent
// records; casting a vote is delegated so tests and production can swap the
// transport.
type VoteEndpoint interface {
	Vote(ctx context.Context, agent Agent, opp Opportunity) (AgentVote, error)
}

// BridgeProvider is one external bridge service capable of moving a token
// between chains.
type BridgeProvider interface {
	Name() string
	Quote(ctx context.Context, req TransferRequest) (ProviderQuote, error)
	Execute(ctx context.Context, req TransferRequest) (ExecuteResult, error)
	Status(ctx context.Context, txHash string) (TransferStatus, error)
}

// TradeExecutor places the paired buy/sell trades on a venue. Real exchange
// connectivity sits behind this interface.
type TradeExecutor interface {
	Execute(ctx context.Context, venue, chain, token string, amount float64, side TradeSide) (TradeResult, error)
}

// OpportunityStore persists detected opportunities and their consensus
// outcome.
type OpportunityStore interface {
	Create(ctx context.Context, opp Opportunity) error
	RecordConsensus(ctx context.Context, oppID string, res ConsensusResult) error
	MarkExecuted(ctx context.Context, oppID string, profit float64) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}

// TransferStore persists bridge transfer lifecycle rows.
type TransferStore interface {
	Create(ctx context.Context, t BridgeTransfer) error
	UpdateStatus(ctx context.Context, id string, status TransferStatus, txHash string, resolvedAt *time.Time) error
	ListRecent(ctx context.Context, limit int) ([]BridgeTransfer, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotCache caches the latest per-bucket prices for the dashboard and for
// warm restarts.
type SnapshotCache interface {
	SetPrices(ctx context.Context, bucket string, prices map[string]float64, ts time.Time) error
	GetPrices(ctx context.Context, bucket string) (map[string]float64, time.Time, error)
}

// SignalBus publishes coordinator events (detected opportunities, consensus
// decisions, transfer transitions) to out-of-process consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// StreamMessage is one durable bus entry read back from an event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// LockManager provides distributed locks so only one orchestrator replica
// runs the coordination cycle at a time.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned unlock
	// function is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter uploads archive objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged records out of the primary store into cold storage.
// Each method returns the number of records archived.
type Archiver interface {
	ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error)
	ArchiveTransfers(ctx context.Context, before time.Time) (int64, error)
}
