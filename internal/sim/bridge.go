package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// ProviderProfile parameterizes one simulated bridge provider.
type ProviderProfile struct {
	Name        string
	FeeBps      float64       // bridge fee in basis points of the amount
	BaseGasUSD  float64       // flat gas cost per transfer
	Speed       time.Duration // quoted transfer time
	Reliability float64       // 0..1
	SettleDelay time.Duration // wall-clock delay before Status reports completed
}

// BridgeProvider is a simulated bridge. Execute accepts every valid request
// and settlement completes after the profile's SettleDelay, so the router's
// monitoring loop gets exercised the same way it would against a real
// provider.
type BridgeProvider struct {
	profile ProviderProfile

	mu        sync.Mutex
	submitted map[string]time.Time // tx hash -> submission time
}

// NewBridgeProvider creates a simulated provider from the profile.
func NewBridgeProvider(profile ProviderProfile) *BridgeProvider {
	return &BridgeProvider{
		profile:   profile,
		submitted: make(map[string]time.Time),
	}
}

// DefaultProviders returns the standard simulated provider set.
func DefaultProviders() []domain.BridgeProvider {
	return []domain.BridgeProvider{
		NewBridgeProvider(ProviderProfile{
			Name:        "multichain",
			FeeBps:      30,
			BaseGasUSD:  5,
			Speed:       12 * time.Minute,
			Reliability: 0.93,
			SettleDelay: 3 * time.Second,
		}),
		NewBridgeProvider(ProviderProfile{
			Name:        "stargate",
			FeeBps:      25,
			BaseGasUSD:  8,
			Speed:       6 * time.Minute,
			Reliability: 0.97,
			SettleDelay: 2 * time.Second,
		}),
		NewBridgeProvider(ProviderProfile{
			Name:        "across",
			FeeBps:      12,
			BaseGasUSD:  4,
			Speed:       4 * time.Minute,
			Reliability: 0.95,
			SettleDelay: 1 * time.Second,
		}),
	}
}

// Name returns the provider name.
func (p *BridgeProvider) Name() string { return p.profile.Name }

// Quote prices the transfer from the profile.
func (p *BridgeProvider) Quote(ctx context.Context, req domain.TransferRequest) (domain.ProviderQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProviderQuote{}, err
	}
	return domain.ProviderQuote{
		GasFees:     p.profile.BaseGasUSD,
		BridgeFees:  req.Amount * p.profile.FeeBps / 10_000,
		Speed:       p.profile.Speed,
		Reliability: p.profile.Reliability,
	}, nil
}

// Execute accepts the transfer and returns a pending result with a fresh tx
// hash; settlement is asynchronous via Status.
func (p *BridgeProvider) Execute(ctx context.Context, req domain.TransferRequest) (domain.ExecuteResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecuteResult{}, err
	}

	txHash := "0x" + uuid.NewString()

	p.mu.Lock()
	p.submitted[txHash] = time.Now()
	p.mu.Unlock()

	return domain.ExecuteResult{
		Status: domain.TransferPending,
		TxHash: txHash,
	}, nil
}

// Status reports completed once the settle delay has elapsed since
// submission.
func (p *BridgeProvider) Status(ctx context.Context, txHash string) (domain.TransferStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	submittedAt, ok := p.submitted[txHash]
	p.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("sim: unknown tx hash %s", txHash)
	}
	if time.Since(submittedAt) >= p.profile.SettleDelay {
		return domain.TransferCompleted, nil
	}
	return domain.TransferPending, nil
}

// Compile-time interface check.
var _ domain.BridgeProvider = (*BridgeProvider)(nil)
