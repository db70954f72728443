package detector

import (
	"testing"
	"time"

	"github.com/swarmarb/swarmarb/internal/domain"
)

func snapshot(prices map[domain.Bucket]map[string]float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Prices:  prices,
		TakenAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDetectTwoVenueSpread(t *testing.T) {
	snap := snapshot(map[domain.Bucket]map[string]float64{
		{Venue: "uniswap", Chain: "ethereum"}:   {"USDC": 1.00},
		{Venue: "sushiswap", Chain: "ethereum"}: {"USDC": 1.02},
	})

	opps := Detect(snap, Config{MinProfitThresholdPct: 0.5})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}

	opp := opps[0]
	if opp.Token != "USDC" {
		t.Errorf("token = %q, want USDC", opp.Token)
	}
	if opp.SourceVenue != "uniswap" || opp.SourceChain != "ethereum" {
		t.Errorf("source = %s_%s, want uniswap_ethereum", opp.SourceVenue, opp.SourceChain)
	}
	if opp.TargetVenue != "sushiswap" {
		t.Errorf("target venue = %q, want sushiswap", opp.TargetVenue)
	}
	if got, want := opp.ProfitPct, 2.0; !closeTo(got, want) {
		t.Errorf("profit pct = %v, want %v", got, want)
	}
	if opp.SourcePrice >= opp.TargetPrice {
		t.Errorf("source price %v not below target price %v", opp.SourcePrice, opp.TargetPrice)
	}
	if opp.ID == "" {
		t.Error("opportunity has no correlation id")
	}
}

func TestDetectSingleBucketToken(t *testing.T) {
	snap := snapshot(map[domain.Bucket]map[string]float64{
		{Venue: "uniswap", Chain: "ethereum"}:   {"USDC": 1.00, "WETH": 2000},
		{Venue: "sushiswap", Chain: "ethereum"}: {"USDC": 1.00},
	})

	opps := Detect(snap, Config{MinProfitThresholdPct: 0.1})
	if len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d: %+v", len(opps), opps)
	}
}

func TestDetectBelowThreshold(t *testing.T) {
	snap := snapshot(map[domain.Bucket]map[string]float64{
		{Venue: "uniswap", Chain: "ethereum"}:   {"USDC": 1.000},
		{Venue: "sushiswap", Chain: "ethereum"}: {"USDC": 1.003},
	})

	if opps := Detect(snap, Config{MinProfitThresholdPct: 0.5}); len(opps) != 0 {
		t.Fatalf("expected no opportunities below threshold, got %d", len(opps))
	}
}

func TestDetectLexicographicTieBreak(t *testing.T) {
	// Three buckets share the min price and two the max; the bucket with the
	// lexicographically first key must win on each side.
	snap := snapshot(map[domain.Bucket]map[string]float64{
		{Venue: "uniswap", Chain: "polygon"}:    {"USDC": 1.00},
		{Venue: "pancakeswap", Chain: "bsc"}:    {"USDC": 1.00},
		{Venue: "quickswap", Chain: "polygon"}:  {"USDC": 1.00},
		{Venue: "sushiswap", Chain: "ethereum"}: {"USDC": 1.05},
		{Venue: "uniswap", Chain: "ethereum"}:   {"USDC": 1.05},
	})

	opps := Detect(snap, Config{MinProfitThresholdPct: 1.0})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if got := opps[0].Source().Key(); got != "pancakeswap_bsc" {
		t.Errorf("source bucket = %q, want pancakeswap_bsc", got)
	}
	if got := opps[0].Target().Key(); got != "sushiswap_ethereum" {
		t.Errorf("target bucket = %q, want sushiswap_ethereum", got)
	}
}

func TestDetectMultipleTokensSortedOutput(t *testing.T) {
	snap := snapshot(map[domain.Bucket]map[string]float64{
		{Venue: "uniswap", Chain: "ethereum"}:   {"USDC": 1.00, "WETH": 2000, "WBTC": 60000},
		{Venue: "pancakeswap", Chain: "bsc"}:    {"USDC": 1.03, "WETH": 2000, "WBTC": 61000},
		{Venue: "sushiswap", Chain: "ethereum"}: {"WETH": 2050},
	})

	opps := Detect(snap, Config{MinProfitThresholdPct: 1.0})
	if len(opps) != 3 {
		t.Fatalf("expected 3 opportunities, got %d", len(opps))
	}
	want := []string{"USDC", "WBTC", "WETH"}
	for i, token := range want {
		if opps[i].Token != token {
			t.Errorf("opps[%d].Token = %q, want %q", i, opps[i].Token, token)
		}
	}
}

func TestDetectEstimatedProfitFloor(t *testing.T) {
	snap := snapshot(map[domain.Bucket]map[string]float64{
		{Venue: "uniswap", Chain: "ethereum"}:   {"USDC": 1.00},
		{Venue: "sushiswap", Chain: "ethereum"}: {"USDC": 1.02},
	})

	cfg := Config{
		MinProfitThresholdPct: 0.5,
		FeeEstimates:          map[string]float64{"USDC": 0.50},
	}
	opps := Detect(snap, cfg)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if opps[0].EstimatedProfit != 0 {
		t.Errorf("estimated profit = %v, want 0 (floored)", opps[0].EstimatedProfit)
	}
}

func TestDetectIgnoresNonPositivePrices(t *testing.T) {
	snap := snapshot(map[domain.Bucket]map[string]float64{
		{Venue: "uniswap", Chain: "ethereum"}:   {"USDC": 0},
		{Venue: "sushiswap", Chain: "ethereum"}: {"USDC": 1.02},
	})

	if opps := Detect(snap, Config{MinProfitThresholdPct: 0.5}); len(opps) != 0 {
		t.Fatalf("expected zero-price bucket to be skipped, got %d opportunities", len(opps))
	}
}

func closeTo(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
