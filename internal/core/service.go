package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabrecon/internal/logging"
)

// ServiceOptions configures a Service. Zero values select defaults.
type ServiceOptions struct {
	MaxConcurrentLoads int
	MaxLoadWait        time.Duration
	Normalize          NormalizeOptions
	History            HistoryRecorder // nil means an in-memory history
}

// Service loads datasets, keeps them for the session and runs merges
// between them.
type Service struct {
	store     *Store
	limiter   *LoadLimiter
	history   HistoryRecorder
	normalize NormalizeOptions
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	history := opts.History
	if history == nil {
		history = NewMemoryHistory(0)
	}
	return &Service{
		store:     NewStore(),
		limiter:   NewLoadLimiter(opts.MaxConcurrentLoads, opts.MaxLoadWait),
		history:   history,
		normalize: opts.Normalize,
	}
}

// LoadWorkbook reads one sheet of src, normalizes it and stores the result.
// An empty or unknown sheet name selects the first sheet.
func (s *Service) LoadWorkbook(ctx context.Context, fileName string, src WorkbookSource, sheet string) (*StoredDataset, error) {
	if err := CheckFileType(fileName); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	log := logging.FromContext(ctx)
	start := time.Now()
	names := src.SheetNames()
	chosen, fellBack, err := ResolveSheet(names, sheet)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", fileName, err)
	}
	if fellBack && sheet != "" {
		log.Warn("sheet not found, using first sheet",
			"file", fileName, "wanted", sheet, "using", chosen)
	}

	header, rows, err := src.ReadSheet(chosen)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", chosen, fileName, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := NormalizeDataset(header, rows, s.normalize)
	if err != nil {
		return nil, fmt.Errorf("sheet %q of %s: %w", chosen, fileName, err)
	}

	entry := s.store.Put(fileName, chosen, names, ds)
	log.Info("dataset loaded",
		"dataset_id", entry.ID,
		"file", fileName,
		"sheet", chosen,
		"columns", ds.Width(),
		"rows", len(ds.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return entry, nil
}

// Dataset returns a loaded dataset by id.
func (s *Service) Dataset(id string) (*StoredDataset, error) {
	entry, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return entry, nil
}

// Datasets lists every loaded dataset.
func (s *Service) Datasets() []DatasetSummary {
	return s.store.All()
}

// DeleteDataset drops a loaded dataset.
func (s *Service) DeleteDataset(id string) error {
	if !s.store.Delete(id) {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return nil
}

// Merge joins two loaded datasets and records the run in the history.
// A history failure is logged and does not fail the merge.
func (s *Service) Merge(ctx context.Context, fromID, toID string, req MergeRequest) (*MergeResult, *MergeRun, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	from, err := s.Dataset(fromID)
	if err != nil {
		return nil, nil, err
	}
	to, err := s.Dataset(toID)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	result, err := Merge(from.Dataset, to.Dataset, req)
	if err != nil {
		return nil, nil, err
	}

	meta := RequestMetaFrom(ctx)
	run := &MergeRun{
		ID:             uuid.NewString(),
		Mode:           req.Mode,
		FromFile:       from.FileName,
		FromSheet:      from.Sheet,
		ToFile:         to.FileName,
		ToSheet:        to.Sheet,
		FromKey:        columnLabel(from.Dataset, *req.FromKey),
		ToKey:          columnLabel(to.Dataset, *req.ToKey),
		MatchedCount:   len(result.Matched),
		UnmatchedCount: len(result.Unmatched),
		DurationMS:     time.Since(start).Milliseconds(),
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      time.Now().UTC(),
	}
	if req.ReturnCol != nil {
		run.ReturnCol = columnLabel(to.Dataset, *req.ReturnCol)
	}

	log := logging.FromContext(ctx)
	if err := s.history.RecordRun(ctx, *run); err != nil {
		log.Error("failed to record merge run", "run_id", run.ID, "error", err)
	}
	log.Info("merge completed",
		"run_id", run.ID,
		"mode", req.Mode,
		"matched", run.MatchedCount,
		"unmatched", run.UnmatchedCount,
	)
	return result, run, nil
}

// History returns the most recent merge runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]MergeRun, error) {
	runs, err := s.history.RecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list merge history: %w", err)
	}
	return runs, nil
}

// LoadStatus reports load slot usage.
func (s *Service) LoadStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForLoads blocks until in-flight loads finish or ctx ends.
func (s *Service) WaitForLoads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func columnLabel(d *Dataset, idx int) string {
	if idx >= 0 && idx < d.Width() && d.Header[idx] != "" {
		return d.Header[idx]
	}
	return "#" + strconv.Itoa(idx)
}
