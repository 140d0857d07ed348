package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		run := MergeRun{ID: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := h.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := h.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("kept %d runs, want cap of 3", len(runs))
	}
	if runs[0].ID != "e" || runs[2].ID != "c" {
		t.Errorf("order = %s..%s, want newest first e..c", runs[0].ID, runs[2].ID)
	}

	limited, _ := h.RecentRuns(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("RecentRuns(2) returned %d", len(limited))
	}

	purged, err := h.PurgeRuns(ctx, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("PurgeRuns: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d, want 1", purged)
	}
	runs, _ = h.RecentRuns(ctx, 0)
	if len(runs) != 2 {
		t.Errorf("%d runs left, want 2", len(runs))
	}
}
