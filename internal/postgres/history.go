package postgres

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// DefaultRecentLimit caps RecentRuns when no limit is given.
const DefaultRecentLimit = 100

const schemaSQL = `
CREATE TABLE IF NOT EXISTS merge_runs (
	id              UUID PRIMARY KEY,
	mode            TEXT NOT NULL,
	from_file       TEXT NOT NULL,
	from_sheet      TEXT NOT NULL,
	to_file         TEXT NOT NULL,
	to_sheet        TEXT NOT NULL,
	from_key        TEXT NOT NULL,
	to_key          TEXT NOT NULL,
	return_col      TEXT,
	matched_count   INTEGER NOT NULL,
	unmatched_count INTEGER NOT NULL,
	duration_ms     BIGINT NOT NULL,
	ip_address      INET,
	user_agent      TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS merge_runs_created_at_idx ON merge_runs (created_at DESC);
`

const insertRunSQL = `INSERT INTO merge_runs (
	id, mode, from_file, from_sheet, to_file, to_sheet, from_key, to_key,
	return_col, matched_count, unmatched_count, duration_ms, ip_address, user_agent, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

const selectRunsSQL = `SELECT id, mode, from_file, from_sheet, to_file, to_sheet, from_key, to_key,
	return_col, matched_count, unmatched_count, duration_ms, ip_address, user_agent, created_at
	FROM merge_runs ORDER BY created_at DESC LIMIT $1`

const purgeRunsSQL = `DELETE FROM merge_runs WHERE created_at < $1`

// HistoryStore implements core.HistoryRecorder on a merge_runs table.
type HistoryStore struct {
	db DB
}

var _ core.HistoryRecorder = (*HistoryStore)(nil)

// NewHistoryStore wraps db. Call Migrate once before use.
func NewHistoryStore(db DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Migrate creates the merge_runs table and its index if missing.
func (h *HistoryStore) Migrate(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create merge_runs: %w", err)
	}
	return nil
}

func (h *HistoryStore) RecordRun(ctx context.Context, run core.MergeRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("merge run id %q: %w", run.ID, err)
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = h.db.Exec(ctx, insertRunSQL,
		pgtype.UUID{Bytes: id, Valid: true}, string(run.Mode),
		run.FromFile, run.FromSheet, run.ToFile, run.ToSheet,
		run.FromKey, run.ToKey, optionalText(run.ReturnCol),
		run.MatchedCount, run.UnmatchedCount, run.DurationMS,
		parseAddr(run.IPAddress), optionalText(run.UserAgent),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert merge run %s: %w", run.ID, err)
	}
	return nil
}

func (h *HistoryStore) RecentRuns(ctx context.Context, limit int) ([]core.MergeRun, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := h.db.Query(ctx, selectRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query merge runs: %w", err)
	}
	defer rows.Close()

	runs := make([]core.MergeRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read merge runs: %w", err)
	}
	return runs, nil
}

func (h *HistoryStore) PurgeRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := h.db.Exec(ctx, purgeRunsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge merge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(rows pgx.Rows) (core.MergeRun, error) {
	var (
		id        pgtype.UUID
		mode      string
		returnCol pgtype.Text
		ipAddress *netip.Addr
		userAgent pgtype.Text
		createdAt pgtype.Timestamptz
		run       core.MergeRun
	)

	err := rows.Scan(
		&id, &mode,
		&run.FromFile, &run.FromSheet, &run.ToFile, &run.ToSheet,
		&run.FromKey, &run.ToKey, &returnCol,
		&run.MatchedCount, &run.UnmatchedCount, &run.DurationMS,
		&ipAddress, &userAgent, &createdAt,
	)
	if err != nil {
		return core.MergeRun{}, fmt.Errorf("scan merge run: %w", err)
	}

	run.ID = uuidString(id)
	run.Mode = core.MergeMode(mode)
	run.CreatedAt = createdAt.Time
	if returnCol.Valid {
		run.ReturnCol = returnCol.String
	}
	if ipAddress != nil {
		run.IPAddress = ipAddress.String()
	}
	if userAgent.Valid {
		run.UserAgent = userAgent.String
	}
	return run, nil
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// parseAddr returns nil for empty or unparseable addresses so they are
// stored as NULL.
func parseAddr(s string) *netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	return &addr
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
