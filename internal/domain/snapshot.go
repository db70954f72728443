package domain

import (
	"sort"
	"time"
)

// Bucket identifies one price source: a trading venue on a specific chain.
type Bucket struct {
	Venue string
	Chain string
}

// Key returns the canonical "venue_chain" identifier used for caching,
// logging, and deterministic ordering.
func (b Bucket) Key() string {
	return b.Venue + "_" + b.Chain
}

// MarketSnapshot holds per-bucket token prices captured for one detection
// cycle. A snapshot is immutable once captured; detection never mutates it.
type MarketSnapshot struct {
	Prices  map[Bucket]map[string]float64
	TakenAt time.Time
}

// Buckets returns the snapshot's buckets sorted by key so iteration order is
// deterministic.
func (s MarketSnapshot) Buckets() []Bucket {
	out := make([]Bucket, 0, len(s.Prices))
	for b := range s.Prices {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Tokens returns the distinct token symbols present in the snapshot, sorted.
func (s MarketSnapshot) Tokens() []string {
	seen := make(map[string]bool)
	for _, prices := range s.Prices {
		for token := range prices {
			seen[token] = true
		}
	}
	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
