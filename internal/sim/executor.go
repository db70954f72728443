package sim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// PaperTrade is one fill recorded by the paper executor.
type PaperTrade struct {
	Venue     string
	Chain     string
	Token     string
	Amount    float64
	Side      domain.TradeSide
	TxHash    string
	CreatedAt time.Time
}

// PaperExecutor implements domain.TradeExecutor by recording fills in memory
// instead of routing them to a venue. Every trade succeeds.
type PaperExecutor struct {
	mu     sync.Mutex
	trades []PaperTrade
}

// NewPaperExecutor creates an empty paper executor.
func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{}
}

// Execute records the trade and returns success with a fresh tx hash.
func (e *PaperExecutor) Execute(ctx context.Context, venue, chain, token string, amount float64, side domain.TradeSide) (domain.TradeResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.TradeResult{}, err
	}

	trade := PaperTrade{
		Venue:     venue,
		Chain:     chain,
		Token:     token,
		Amount:    amount,
		Side:      side,
		TxHash:    "0x" + uuid.NewString(),
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	e.trades = append(e.trades, trade)
	e.mu.Unlock()

	return domain.TradeResult{Success: true, TxHash: trade.TxHash}, nil
}

// Trades returns a copy of every recorded fill in execution order.
func (e *PaperExecutor) Trades() []PaperTrade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PaperTrade, len(e.trades))
	copy(out, e.trades)
	return out
}

// Compile-time interface check.
var _ domain.TradeExecutor = (*PaperExecutor)(nil)
