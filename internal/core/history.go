package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MergeRun records one completed merge.
type MergeRun struct {
	ID             string    `json:"id"`
	Mode           MergeMode `json:"mode"`
	FromFile       string    `json:"fromFile"`
	FromSheet      string    `json:"fromSheet"`
	ToFile         string    `json:"toFile"`
	ToSheet        string    `json:"toSheet"`
	FromKey        string    `json:"fromKey"`
	ToKey          string    `json:"toKey"`
	ReturnCol      string    `json:"returnCol,omitempty"`
	MatchedCount   int       `json:"matchedCount"`
	UnmatchedCount int       `json:"unmatchedCount"`
	DurationMS     int64     `json:"durationMs"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HistoryRecorder persists merge runs.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, run MergeRun) error
	// RecentRuns returns at most limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]MergeRun, error)
	// PurgeRuns deletes runs created before cutoff and returns how many.
	PurgeRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultMemoryHistoryCap bounds MemoryHistory when no cap is given.
const DefaultMemoryHistoryCap = 1000

// MemoryHistory keeps merge runs in process memory, dropping the oldest
// beyond its cap. It is used when no database is configured.
type MemoryHistory struct {
	mu   sync.Mutex
	runs []MergeRun
	cap  int
}

// NewMemoryHistory creates a history holding at most capacity runs.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = DefaultMemoryHistoryCap
	}
	return &MemoryHistory{cap: capacity}
}

func (h *MemoryHistory) RecordRun(_ context.Context, run MergeRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append(h.runs, run)
	if over := len(h.runs) - h.cap; over > 0 {
		h.runs = append(h.runs[:0:0], h.runs[over:]...)
	}
	return nil
}

func (h *MemoryHistory) RecentRuns(_ context.Context, limit int) ([]MergeRun, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]MergeRun, len(h.runs))
	copy(out, h.runs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *MemoryHistory) PurgeRuns(_ context.Context, cutoff time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.runs[:0]
	var purged int64
	for _, run := range h.runs {
		if run.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, run)
	}
	h.runs = kept
	return purged, nil
}
