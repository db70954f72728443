package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given
// connection pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

const transferSelectCols = `id, source_chain, target_chain, token, amount,
	recipient, provider, status, tx_hash, gas_fees, bridge_fees,
	estimated_time, created_at, resolved_at`

func scanTransferRows(rows pgx.Rows) ([]domain.BridgeTransfer, error) {
	var transfers []domain.BridgeTransfer
	for rows.Next() {
		var (
			t       domain.BridgeTransfer
			estNano int64
		)
		if err := rows.Scan(
			&t.ID, &t.SourceChain, &t.TargetChain, &t.Token, &t.Amount,
			&t.Recipient, &t.Provider, &t.Status, &t.TxHash, &t.GasFees,
			&t.BridgeFees, &estNano, &t.CreatedAt, &t.ResolvedAt,
		); err != nil {
			return nil, err
		}
		t.EstimatedTime = time.Duration(estNano)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// Create inserts a newly initiated transfer.
func (s *TransferStore) Create(ctx context.Context, t domain.BridgeTransfer) error {
	const query = `
		INSERT INTO transfers (
			id, source_chain, target_chain, token, amount,
			recipient, provider, status, tx_hash, gas_fees,
			bridge_fees, estimated_time, created_at, resolved_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.SourceChain, t.TargetChain, t.Token, t.Amount,
		t.Recipient, t.Provider, t.Status, t.TxHash, t.GasFees,
		t.BridgeFees, int64(t.EstimatedTime), t.CreatedAt, t.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert transfer %s: %w", t.ID, err)
	}
	return nil
}

// UpdateStatus records a transfer's lifecycle transition. Transfers already
// resolved are left untouched, keeping the status monotonic even when the
// monitor and a synchronous resolution race.
func (s *TransferStore) UpdateStatus(ctx context.Context, id string, status domain.TransferStatus, txHash string, resolvedAt *time.Time) error {
	const query = `
		UPDATE transfers
		SET status = $2, tx_hash = $3, resolved_at = $4
		WHERE id = $1 AND status = 'pending'`

	if _, err := s.pool.Exec(ctx, query, id, status, txHash, resolvedAt); err != nil {
		return fmt.Errorf("postgres: update transfer %s status: %w", id, err)
	}
	return nil
}

// ListRecent returns the newest transfers, most recent first.
func (s *TransferStore) ListRecent(ctx context.Context, limit int) ([]domain.BridgeTransfer, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transfers
		ORDER BY created_at DESC
		LIMIT $1`, transferSelectCols)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent transfers: %w", err)
	}
	defer rows.Close()

	transfers, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transfers: %w", err)
	}
	return transfers, nil
}

// ListBefore returns resolved transfers created strictly before the cutoff,
// oldest first. The archiver uses it to build cold-storage batches.
func (s *TransferStore) ListBefore(ctx context.Context, before time.Time) ([]domain.BridgeTransfer, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transfers
		WHERE created_at < $1 AND status <> 'pending'
		ORDER BY created_at ASC`, transferSelectCols)

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers before %v: %w", before, err)
	}
	defer rows.Close()

	transfers, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transfers: %w", err)
	}
	return transfers, nil
}

// DeleteOlderThan removes transfers created before the cutoff, whatever
// their status, and returns the number deleted.
func (s *TransferStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM transfers WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete transfers before %v: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TransferStore = (*TransferStore)(nil)
