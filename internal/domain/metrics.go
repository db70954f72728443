package domain

import (
	"sync"
	"time"
)

// SwarmMetrics holds the coordinator's cumulative counters. Counters are
// monotonic and updated only after an execution resolves; all access goes
// through the methods so read-modify-write is atomic.
type SwarmMetrics struct {
	mu                 sync.Mutex
	totalOpportunities int64
	successfulTrades   int64
	failedTrades       int64
	totalProfit        float64
}

// SwarmMetricsSnapshot is a consistent point-in-time copy with derived ratios.
type SwarmMetricsSnapshot struct {
	TotalOpportunities int64
	SuccessfulTrades   int64
	FailedTrades       int64
	TotalProfit        float64
	SuccessRate        float64
}

// RecordOpportunity counts one detected opportunity. Every detected
// opportunity is counted exactly once, whether or not it executes.
func (m *SwarmMetrics) RecordOpportunity() {
	m.mu.Lock()
	m.totalOpportunities++
	m.mu.Unlock()
}

// RecordTradeSuccess counts one successful paired execution and accrues its
// profit.
func (m *SwarmMetrics) RecordTradeSuccess(profit float64) {
	m.mu.Lock()
	m.successfulTrades++
	m.totalProfit += profit
	m.mu.Unlock()
}

// RecordTradeFailure counts one failed execution attempt.
func (m *SwarmMetrics) RecordTradeFailure() {
	m.mu.Lock()
	m.failedTrades++
	m.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters.
func (m *SwarmMetrics) Snapshot() SwarmMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := SwarmMetricsSnapshot{
		TotalOpportunities: m.totalOpportunities,
		SuccessfulTrades:   m.successfulTrades,
		FailedTrades:       m.failedTrades,
		TotalProfit:        m.totalProfit,
	}
	if attempts := m.successfulTrades + m.failedTrades; attempts > 0 {
		snap.SuccessRate = float64(m.successfulTrades) / float64(attempts)
	}
	return snap
}

// BridgeMetrics holds the router's cumulative transfer counters. Fees and
// transfer time accrue only on the transition into completed, never on
// re-polls of an already-resolved transfer.
type BridgeMetrics struct {
	mu                  sync.Mutex
	totalTransfers      int64
	successfulTransfers int64
	failedTransfers     int64
	totalFeesPaid       float64
	totalTransferTime   time.Duration
}

// BridgeMetricsSnapshot is a consistent point-in-time copy with derived
// ratios.
type BridgeMetricsSnapshot struct {
	TotalTransfers      int64
	SuccessfulTransfers int64
	FailedTransfers     int64
	TotalFeesPaid       float64
	SuccessRate         float64
	AverageTransferTime time.Duration
}

// RecordInitiated counts one transfer initiation.
func (m *BridgeMetrics) RecordInitiated() {
	m.mu.Lock()
	m.totalTransfers++
	m.mu.Unlock()
}

// RecordCompleted accrues the fees and wall-clock duration of a transfer that
// just transitioned into completed.
func (m *BridgeMetrics) RecordCompleted(fees float64, elapsed time.Duration) {
	m.mu.Lock()
	m.successfulTransfers++
	m.totalFeesPaid += fees
	m.totalTransferTime += elapsed
	m.mu.Unlock()
}

// RecordFailed counts one transfer that transitioned into failed.
func (m *BridgeMetrics) RecordFailed() {
	m.mu.Lock()
	m.failedTransfers++
	m.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters.
func (m *BridgeMetrics) Snapshot() BridgeMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := BridgeMetricsSnapshot{
		TotalTransfers:      m.totalTransfers,
		SuccessfulTransfers: m.successfulTransfers,
		FailedTransfers:     m.failedTransfers,
		TotalFeesPaid:       m.totalFeesPaid,
	}
	if m.totalTransfers > 0 {
		snap.SuccessRate = float64(m.successfulTransfers) / float64(m.totalTransfers)
	}
	if m.successfulTransfers > 0 {
		snap.AverageTransferTime = m.totalTransferTime / time.Duration(m.successfulTransfers)
	}
	return snap
}
