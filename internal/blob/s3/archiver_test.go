package s3blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/swarmarb/swarmarb/internal/domain"
)

type memWriter struct {
	objects map[string]string
	types   map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string]string), types: make(map[string]string)}
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = string(b)
	w.types[path] = contentType
	return nil
}

type memOppStore struct{ opps []domain.Opportunity }

func (s *memOppStore) ListBefore(context.Context, time.Time) ([]domain.Opportunity, error) {
	return s.opps, nil
}

type memTransferStore struct{ transfers []domain.BridgeTransfer }

func (s *memTransferStore) ListBefore(context.Context, time.Time) ([]domain.BridgeTransfer, error) {
	return s.transfers, nil
}

func TestArchiveOpportunitiesWritesJSONL(t *testing.T) {
	writer := newMemWriter()
	opps := &memOppStore{opps: []domain.Opportunity{
		{ID: "opp-1", Token: "WETH", ProfitPct: 2.0},
		{ID: "opp-2", Token: "USDC", ProfitPct: 1.1},
	}}
	a := NewArchiver(writer, opps, &memTransferStore{})

	cutoff := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	count, err := a.ArchiveOpportunities(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	body, ok := writer.objects["archive/opportunities/2025-02.jsonl"]
	if !ok {
		t.Fatalf("expected archive object, got keys %v", writer.objects)
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 2 {
		t.Fatalf("jsonl lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"opp-1"`) || !strings.Contains(lines[1], `"opp-2"`) {
		t.Errorf("unexpected jsonl content: %q", body)
	}
	if ct := writer.types["archive/opportunities/2025-02.jsonl"]; ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}
}

func TestArchiveTransfersEmptySkipsUpload(t *testing.T) {
	writer := newMemWriter()
	a := NewArchiver(writer, &memOppStore{}, &memTransferStore{})

	count, err := a.ArchiveTransfers(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if len(writer.objects) != 0 {
		t.Errorf("upload happened for empty batch: %v", writer.objects)
	}
}
