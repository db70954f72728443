// Package feed supplies market snapshots: a static in-memory source for
// fixtures and dry runs, and a WebSocket feed that aggregates pushed venue
// prices.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// StaticSource serves a fixed price table. It backs the detect mode's dry
// runs and tests; Update makes it usable as a manually-driven source.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[domain.Bucket]map[string]float64
}

// NewStaticSource creates a StaticSource over the given table. The table is
// copied, so the caller may reuse its maps.
func NewStaticSource(prices map[domain.Bucket]map[string]float64) *StaticSource {
	s := &StaticSource{prices: make(map[domain.Bucket]map[string]float64, len(prices))}
	for b, tokens := range prices {
		s.prices[b] = copyPrices(tokens)
	}
	return s
}

// Fetch returns the token price table for one bucket.
func (s *StaticSource) Fetch(_ context.Context, venue, chain string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices, ok := s.prices[domain.Bucket{Venue: venue, Chain: chain}]
	if !ok {
		return nil, fmt.Errorf("feed: no data for %s_%s: %w", venue, chain, domain.ErrDataUnavailable)
	}
	return copyPrices(prices), nil
}

// Update replaces one token's price in a bucket, creating the bucket if
// needed.
func (s *StaticSource) Update(venue, chain, token string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := domain.Bucket{Venue: venue, Chain: chain}
	if s.prices[b] == nil {
		s.prices[b] = make(map[string]float64)
	}
	s.prices[b][token] = price
}

func copyPrices(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
