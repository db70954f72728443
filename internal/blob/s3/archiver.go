package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// Narrow store interfaces required by the archiver. The Postgres stores
// satisfy them through their ListBefore methods; the archiver never needs
// the full store surface.

// OpportunityArchiveStore provides read access to opportunity history for
// archival.
type OpportunityArchiveStore interface {
	// ListBefore returns all opportunities detected strictly before the
	// cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
}

// TransferArchiveStore provides read access to resolved transfers for
// archival.
type TransferArchiveStore interface {
	// ListBefore returns all resolved transfers created strictly before the
	// cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.BridgeTransfer, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for aged
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here; the retention sweeps run separately, after the archive has
// landed.
type ArchiveImpl struct {
	writer        domain.BlobWriter
	opportunities OpportunityArchiveStore
	transfers     TransferArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, opportunities OpportunityArchiveStore, transfers TransferArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:        writer,
		opportunities: opportunities,
		transfers:     transfers,
	}
}

// ArchiveOpportunities uploads all opportunities before the cutoff to
// archive/opportunities/YYYY-MM.jsonl and returns the count.
func (a *ArchiveImpl) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opportunities.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}
	return int64(len(opps)), nil
}

// ArchiveTransfers uploads all resolved transfers before the cutoff to
// archive/transfers/YYYY-MM.jsonl and returns the count.
func (a *ArchiveImpl) ArchiveTransfers(ctx context.Context, before time.Time) (int64, error) {
	transfers, err := a.transfers.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers query: %w", err)
	}
	if len(transfers) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(transfers)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers marshal: %w", err)
	}

	path := archivePath("transfers", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers upload: %w", err)
	}
	return int64(len(transfers)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff:
//
//	archive/opportunities/2025-01.jsonl
//	archive/transfers/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
