package domain

import "time"

// TransferStatus is the lifecycle state of a bridge transfer. The status is
// monotonic: pending may move to completed or failed, resolved transfers
// never change again.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// Resolved reports whether the status is terminal.
func (s TransferStatus) Resolved() bool {
	return s == TransferCompleted || s == TransferFailed
}

// TransferRequest carries the parameters for one cross-chain asset move.
type TransferRequest struct {
	SourceChain string
	TargetChain string
	Token       string
	Amount      float64
	Recipient   string
}

// BridgeTransfer records one cross-chain transfer from initiation through
// resolution. Created by the router; retained for a bounded window after
// resolution, then evicted.
type BridgeTransfer struct {
	ID            string
	SourceChain   string
	TargetChain   string
	Token         string
	Amount        float64
	Recipient     string
	Provider      string
	Status        TransferStatus
	TxHash        string
	GasFees       float64
	BridgeFees    float64
	EstimatedTime time.Duration
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// TotalFees returns gas plus bridge fees.
func (t BridgeTransfer) TotalFees() float64 {
	return t.GasFees + t.BridgeFees
}

// ProviderQuote is one bridge provider's answer to a quote request.
type ProviderQuote struct {
	GasFees     float64
	BridgeFees  float64
	Speed       time.Duration // estimated transfer time
	Reliability float64       // 0..1, historical success ratio
}

// TotalFees returns gas plus bridge fees for the quoted transfer.
func (q ProviderQuote) TotalFees() float64 {
	return q.GasFees + q.BridgeFees
}

// ExecuteResult is the outcome of submitting a transfer to a provider.
// Pending means the provider accepted the transfer but settlement is
// asynchronous; the router resolves it by polling Status.
type ExecuteResult struct {
	Status TransferStatus
	TxHash string
}

// TradeSide is the direction of a venue trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// TradeResult is the outcome of one venue trade execution.
type TradeResult struct {
	Success bool
	TxHash  string
}
