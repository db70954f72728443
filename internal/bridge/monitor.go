package bridge

import (
	"context"
	"log/slog"
	"time"
)

// Monitor runs the transfer monitoring loop until ctx is canceled: it polls
// every pending transfer's provider for settlement and evicts resolved
// transfers past the retention window.
func (r *Router) Monitor(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.MonitorOnce(ctx)
		}
	}
}

// MonitorOnce performs one monitoring pass.
func (r *Router) MonitorOnce(ctx context.Context) {
	for _, t := range r.Pending() {
		if t.TxHash == "" {
			// Submission never returned a hash; nothing to poll.
			continue
		}
		provider, ok := r.providers[t.Provider]
		if !ok {
			r.logger.WarnContext(ctx, "pending transfer references unknown provider",
				slog.String("transfer_id", t.ID),
				slog.String("provider", t.Provider),
			)
			continue
		}
		status, err := provider.Status(ctx, t.TxHash)
		if err != nil {
			r.logger.WarnContext(ctx, "transfer status poll failed",
				slog.String("transfer_id", t.ID),
				slog.String("provider", t.Provider),
				slog.String("error", err.Error()),
			)
			continue
		}
		if status.Resolved() {
			r.resolve(ctx, t.ID, status, t.TxHash)
		}
	}

	r.evict(ctx)
}

// evict drops transfers created before the retention window, whatever their
// status, from the in-memory registry and the store. Pending transfers that
// never settle are aged out too, so the registry stays bounded.
func (r *Router) evict(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.cfg.RetentionWindow)

	r.mu.Lock()
	evicted := 0
	for id, t := range r.transfers {
		if t.CreatedAt.Before(cutoff) {
			delete(r.transfers, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted == 0 {
		return
	}
	r.logger.InfoContext(ctx, "evicted aged transfers",
		slog.Int("count", evicted),
		slog.Time("cutoff", cutoff),
	)
	if r.store != nil {
		if _, err := r.store.DeleteOlderThan(ctx, cutoff); err != nil {
			r.logger.WarnContext(ctx, "transfer retention sweep failed",
				slog.String("error", err.Error()),
			)
		}
	}
}
