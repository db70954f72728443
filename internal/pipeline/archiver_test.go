package pipeline

import (
	"context"
	"testing"
	"time"
)

type fakeArchiveBackend struct {
	oppCalls      int
	transferCalls int
	lastCutoff    time.Time
}

func (f *fakeArchiveBackend) ArchiveOpportunities(_ context.Context, before time.Time) (int64, error) {
	f.oppCalls++
	f.lastCutoff = before
	return 3, nil
}

func (f *fakeArchiveBackend) ArchiveTransfers(_ context.Context, before time.Time) (int64, error) {
	f.transferCalls++
	return 2, nil
}

func TestArchiverRunUsesRetentionCutoff(t *testing.T) {
	backend := &fakeArchiveBackend{}
	a := NewArchiver(backend, 7, discard())

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if backend.oppCalls != 1 || backend.transferCalls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", backend.oppCalls, backend.transferCalls)
	}

	wantCutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if diff := backend.lastCutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want ~%v", backend.lastCutoff, wantCutoff)
	}
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2025, time.March, 10, 14, 30, 45, 0, time.UTC)

	cases := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2025, time.March, 10, 14, 31, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2025, time.March, 11, 3, 0, 0, 0, time.UTC)},
		{"0 15 10 3 *", time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)},
		{"0,30 * * * *", time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := nextCronTime(tc.expr, after)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.expr, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("%q: next = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestParseCronRejectsMalformedExpressions(t *testing.T) {
	for _, expr := range []string{"", "* * *", "a b c d e", "* * * * * *"} {
		if _, err := parseCron(expr); err == nil {
			t.Errorf("parseCron(%q) accepted malformed expression", expr)
		}
	}
}
