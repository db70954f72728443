// Package bridge routes cross-chain transfers: it quotes the registered
// providers concurrently, picks the cheapest acceptable one, submits the
// transfer, and tracks its lifecycle through resolution.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// Config holds the router parameters.
type Config struct {
	// SupportedChains is the set of chains transfers may use on either side.
	SupportedChains []string

	// MonitorInterval is the polling period for pending transfers.
	MonitorInterval time.Duration

	// RetentionWindow bounds how long resolved transfers stay in memory
	// before eviction.
	RetentionWindow time.Duration
}

// DefaultConfig returns the router parameters used when config leaves them
// unset.
func DefaultConfig() Config {
	return Config{
		SupportedChains: []string{"ethereum", "polygon", "arbitrum", "optimism", "bsc"},
		MonitorInterval: 10 * time.Second,
		RetentionWindow: 24 * time.Hour,
	}
}

// Router selects among bridge providers and owns the in-flight transfer
// registry. All state mutations go through the mutex; transfer status is
// monotonic, pending resolves at most once.
type Router struct {
	providers map[string]domain.BridgeProvider
	supported map[string]bool
	cfg       Config
	store     domain.TransferStore // optional
	metrics   *domain.BridgeMetrics
	logger    *slog.Logger

	mu        sync.Mutex
	transfers map[string]domain.BridgeTransfer
}

// NewRouter creates a Router over the given providers. store may be nil when
// persistence is disabled.
func NewRouter(providers []domain.BridgeProvider, cfg Config, store domain.TransferStore, logger *slog.Logger) *Router {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 10 * time.Second
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = 24 * time.Hour
	}

	byName := make(map[string]domain.BridgeProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	supported := make(map[string]bool, len(cfg.SupportedChains))
	for _, c := range cfg.SupportedChains {
		supported[strings.ToLower(c)] = true
	}

	return &Router{
		providers: byName,
		supported: supported,
		cfg:       cfg,
		store:     store,
		metrics:   &domain.BridgeMetrics{},
		logger:    logger.With(slog.String("component", "bridge_router")),
		transfers: make(map[string]domain.BridgeTransfer),
	}
}

// Metrics returns the router's cumulative counters.
func (r *Router) Metrics() *domain.BridgeMetrics { return r.metrics }

// ValidateRequest checks the transfer parameters. All violations wrap
// domain.ErrInvalidTransferParams.
func (r *Router) ValidateRequest(req domain.TransferRequest) error {
	switch {
	case req.SourceChain == "":
		return fmt.Errorf("bridge: source chain required: %w", domain.ErrInvalidTransferParams)
	case req.TargetChain == "":
		return fmt.Errorf("bridge: target chain required: %w", domain.ErrInvalidTransferParams)
	case req.Token == "":
		return fmt.Errorf("bridge: token required: %w", domain.ErrInvalidTransferParams)
	case req.Amount <= 0:
		return fmt.Errorf("bridge: amount must be positive, got %v: %w", req.Amount, domain.ErrInvalidTransferParams)
	}
	if !r.supported[strings.ToLower(req.SourceChain)] {
		return fmt.Errorf("bridge: unsupported source chain %q: %w", req.SourceChain, domain.ErrInvalidTransferParams)
	}
	if !r.supported[strings.ToLower(req.TargetChain)] {
		return fmt.Errorf("bridge: unsupported target chain %q: %w", req.TargetChain, domain.ErrInvalidTransferParams)
	}
	if n := len(req.Recipient); n < 26 || n > 42 {
		return fmt.Errorf("bridge: recipient length %d outside 26-42: %w", n, domain.ErrInvalidTransferParams)
	}
	if strings.HasPrefix(req.Recipient, "0x") && !common.IsHexAddress(req.Recipient) {
		return fmt.Errorf("bridge: recipient is not a valid hex address: %w", domain.ErrInvalidTransferParams)
	}
	return nil
}

// SelectProvider quotes every provider concurrently and returns the one with
// the lowest score: totalFees*0.4 + minutes*0.3 + (1-reliability)*0.3.
// Providers that error are scored +Inf; ties resolve to the lexicographically
// smaller name so selection is deterministic. When every provider errors it
// returns ErrNoProviderAvailable.
func (r *Router) SelectProvider(ctx context.Context, req domain.TransferRequest) (domain.BridgeProvider, domain.ProviderQuote, error) {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	type scored struct {
		quote domain.ProviderQuote
		score float64
	}
	results := make([]scored, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, p domain.BridgeProvider) {
			defer wg.Done()
			quote, err := p.Quote(ctx, req)
			if err != nil {
				r.logger.WarnContext(ctx, "provider quote failed",
					slog.String("provider", p.Name()),
					slog.String("error", err.Error()),
				)
				results[i] = scored{score: math.Inf(1)}
				return
			}
			results[i] = scored{quote: quote, score: scoreQuote(quote)}
		}(i, r.providers[name])
	}
	wg.Wait()

	best := -1
	for i := range results {
		if math.IsInf(results[i].score, 1) {
			continue
		}
		// names is sorted, so strict less-than keeps the first (smallest
		// name) among equal scores.
		if best < 0 || results[i].score < results[best].score {
			best = i
		}
	}
	if best < 0 {
		return nil, domain.ProviderQuote{}, fmt.Errorf("bridge: all %d providers failed to quote: %w", len(names), domain.ErrNoProviderAvailable)
	}

	r.logger.DebugContext(ctx, "provider selected",
		slog.String("provider", names[best]),
		slog.Float64("score", results[best].score),
		slog.Float64("total_fees", results[best].quote.TotalFees()),
	)
	return r.providers[names[best]], results[best].quote, nil
}

func scoreQuote(q domain.ProviderQuote) float64 {
	return q.TotalFees()*0.4 + q.Speed.Minutes()*0.3 + (1-q.Reliability)*0.3
}

// Transfer validates the request, selects a provider, and submits the
// transfer. The returned record is pending when the provider settles
// asynchronously; monitoring resolves it later. No record is created when
// validation or provider selection fails.
func (r *Router) Transfer(ctx context.Context, req domain.TransferRequest) (domain.BridgeTransfer, error) {
	if err := r.ValidateRequest(req); err != nil {
		return domain.BridgeTransfer{}, err
	}

	provider, quote, err := r.SelectProvider(ctx, req)
	if err != nil {
		return domain.BridgeTransfer{}, err
	}

	t := domain.BridgeTransfer{
		ID:            uuid.New().String(),
		SourceChain:   strings.ToLower(req.SourceChain),
		TargetChain:   strings.ToLower(req.TargetChain),
		Token:         req.Token,
		Amount:        req.Amount,
		Recipient:     req.Recipient,
		Provider:      provider.Name(),
		Status:        domain.TransferPending,
		GasFees:       quote.GasFees,
		BridgeFees:    quote.BridgeFees,
		EstimatedTime: quote.Speed,
		CreatedAt:     time.Now().UTC(),
	}

	r.mu.Lock()
	r.transfers[t.ID] = t
	r.mu.Unlock()
	r.metrics.RecordInitiated()

	if r.store != nil {
		if err := r.store.Create(ctx, t); err != nil {
			r.logger.WarnContext(ctx, "transfer persist failed",
				slog.String("transfer_id", t.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "transfer initiated",
		slog.String("transfer_id", t.ID),
		slog.String("provider", t.Provider),
		slog.String("source_chain", t.SourceChain),
		slog.String("target_chain", t.TargetChain),
		slog.String("token", t.Token),
		slog.Float64("amount", t.Amount),
		slog.Float64("total_fees", t.TotalFees()),
	)

	res, err := provider.Execute(ctx, req)
	if err != nil {
		return r.resolve(ctx, t.ID, domain.TransferFailed, ""), fmt.Errorf("bridge: execute via %s: %w", provider.Name(), err)
	}

	switch res.Status {
	case domain.TransferCompleted, domain.TransferFailed:
		return r.resolve(ctx, t.ID, res.Status, res.TxHash), nil
	default:
		// Provider accepted; settlement is asynchronous.
		r.mu.Lock()
		t = r.transfers[t.ID]
		t.TxHash = res.TxHash
		r.transfers[t.ID] = t
		r.mu.Unlock()
		return t, nil
	}
}

// resolve transitions a transfer out of pending. Already-resolved transfers
// are returned unchanged, so metrics accrue exactly once per transfer.
func (r *Router) resolve(ctx context.Context, id string, status domain.TransferStatus, txHash string) domain.BridgeTransfer {
	r.mu.Lock()
	t, ok := r.transfers[id]
	if !ok || t.Status.Resolved() {
		r.mu.Unlock()
		return t
	}
	now := time.Now().UTC()
	t.Status = status
	t.ResolvedAt = &now
	if txHash != "" {
		t.TxHash = txHash
	}
	r.transfers[id] = t
	r.mu.Unlock()

	elapsed := now.Sub(t.CreatedAt)
	if status == domain.TransferCompleted {
		r.metrics.RecordCompleted(t.TotalFees(), elapsed)
	} else {
		r.metrics.RecordFailed()
	}

	if r.store != nil {
		if err := r.store.UpdateStatus(ctx, t.ID, status, t.TxHash, t.ResolvedAt); err != nil {
			r.logger.WarnContext(ctx, "transfer status persist failed",
				slog.String("transfer_id", t.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "transfer resolved",
		slog.String("transfer_id", t.ID),
		slog.String("status", string(status)),
		slog.Duration("elapsed", elapsed),
	)
	return t
}

// Get returns the tracked transfer for id.
func (r *Router) Get(id string) (domain.BridgeTransfer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	return t, ok
}

// Pending returns a copy of all transfers still awaiting settlement.
func (r *Router) Pending() []domain.BridgeTransfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BridgeTransfer
	for _, t := range r.transfers {
		if !t.Status.Resolved() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
