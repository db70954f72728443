package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, token, source_venue, source_chain,
	target_venue, target_chain, source_price, target_price, profit_pct,
	estimated_profit, risk_score, created_at`

func scanOpportunityRows(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		if err := rows.Scan(
			&o.ID, &o.Token, &o.SourceVenue, &o.SourceChain,
			&o.TargetVenue, &o.TargetChain, &o.SourcePrice, &o.TargetPrice,
			&o.ProfitPct, &o.EstimatedProfit, &o.RiskScore, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// Create inserts a detected opportunity. Re-detections of the same id are
// silently skipped.
func (s *OpportunityStore) Create(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, token, source_venue, source_chain,
			target_venue, target_chain, source_price, target_price,
			profit_pct, estimated_profit, risk_score, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Token, opp.SourceVenue, opp.SourceChain,
		opp.TargetVenue, opp.TargetChain, opp.SourcePrice, opp.TargetPrice,
		opp.ProfitPct, opp.EstimatedProfit, opp.RiskScore, opp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// RecordConsensus stores the consensus round outcome for an opportunity.
func (s *OpportunityStore) RecordConsensus(ctx context.Context, oppID string, res domain.ConsensusResult) error {
	const query = `
		UPDATE opportunities
		SET approved = $2, consensus_score = $3, approved_votes = $4,
			total_votes = $5, reasoning = $6
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		oppID, res.Approved, res.Score, res.ApprovedVotes, res.TotalVotes, res.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("postgres: record consensus for %s: %w", oppID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: record consensus for %s: %w", oppID, domain.ErrNotFound)
	}
	return nil
}

// MarkExecuted flags an opportunity as executed with its realized profit.
func (s *OpportunityStore) MarkExecuted(ctx context.Context, oppID string, profit float64) error {
	const query = `
		UPDATE opportunities
		SET executed = TRUE, realized_profit = $2, executed_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, oppID, profit)
	if err != nil {
		return fmt.Errorf("postgres: mark executed %s: %w", oppID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark executed %s: %w", oppID, domain.ErrNotFound)
	}
	return nil
}

// ListRecent returns the newest opportunities, most recent first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM opportunities
		ORDER BY created_at DESC
		LIMIT $1`, opportunitySelectCols)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	opps, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities: %w", err)
	}
	return opps, nil
}

// ListBefore returns all opportunities created strictly before the cutoff,
// oldest first. The archiver uses it to build cold-storage batches.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM opportunities
		WHERE created_at < $1
		ORDER BY created_at ASC`, opportunitySelectCols)

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %v: %w", before, err)
	}
	defer rows.Close()

	opps, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities: %w", err)
	}
	return opps, nil
}

// DeleteOlderThan removes opportunities created before the cutoff and
// returns the number deleted.
func (s *OpportunityStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM opportunities WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %v: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
