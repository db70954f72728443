// Package detector computes cross-venue arbitrage opportunities from a market
// snapshot. Detection is a pure function of the snapshot and config; it has no
// side effects and no external calls.
package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// Config holds the detection parameters.
type Config struct {
	// MinProfitThresholdPct is the minimum spread, in percent, for a token
	// to be emitted as an opportunity.
	MinProfitThresholdPct float64

	// FeeEstimates maps token symbol to a flat per-trade fee estimate in
	// quote units, subtracted from the raw spread when computing
	// EstimatedProfit. Tokens not present are treated as zero-fee.
	FeeEstimates map[string]float64
}

// Detect scans the snapshot for tokens whose price differs across at least
// two buckets by MinProfitThresholdPct or more, and returns one opportunity
// per such token, ordered by token symbol.
//
// When several buckets share the minimum (or maximum) price, the
// lexicographically first bucket key ("venue_chain") wins; detection is fully
// deterministic for a given snapshot.
func Detect(snap domain.MarketSnapshot, cfg Config) []domain.Opportunity {
	buckets := snap.Buckets()

	var out []domain.Opportunity
	for _, token := range snap.Tokens() {
		var (
			minBucket, maxBucket domain.Bucket
			minPrice, maxPrice   float64
			count                int
		)
		for _, b := range buckets {
			price, ok := snap.Prices[b][token]
			if !ok || price <= 0 {
				continue
			}
			count++
			if count == 1 {
				minBucket, maxBucket = b, b
				minPrice, maxPrice = price, price
				continue
			}
			// Strict comparisons keep the lexicographically first bucket on
			// ties, since buckets arrive in sorted key order.
			if price < minPrice {
				minBucket, minPrice = b, price
			}
			if price > maxPrice {
				maxBucket, maxPrice = b, price
			}
		}
		if count < 2 || maxPrice <= minPrice {
			continue
		}

		profitPct := (maxPrice - minPrice) / minPrice * 100
		if profitPct < cfg.MinProfitThresholdPct {
			continue
		}

		estimated := (maxPrice - minPrice) - cfg.FeeEstimates[token]
		if estimated < 0 {
			estimated = 0
		}

		out = append(out, domain.Opportunity{
			ID:              uuid.New().String(),
			Token:           token,
			SourceVenue:     minBucket.Venue,
			SourceChain:     minBucket.Chain,
			TargetVenue:     maxBucket.Venue,
			TargetChain:     maxBucket.Chain,
			SourcePrice:     minPrice,
			TargetPrice:     maxPrice,
			ProfitPct:       profitPct,
			EstimatedProfit: estimated,
			CreatedAt:       snapshotTime(snap),
		})
	}
	return out
}

func snapshotTime(snap domain.MarketSnapshot) time.Time {
	if snap.TakenAt.IsZero() {
		return time.Now().UTC()
	}
	return snap.TakenAt
}
