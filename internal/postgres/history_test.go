package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tabrecon/internal/config"
	"github.com/JonMunkholm/tabrecon/internal/core"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []execCall
	execTag pgconn.CommandTag
	execErr error
	rows    [][]any
	queries []execCall
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql, args})
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, execCall{sql, args})
	return &fakeRows{data: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not used")
}

// fakeRows serves canned rows to scanRun. Each value is copied into the
// destination pointer of the matching type.
type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int:
			*p = row[i].(int)
		case *int64:
			*p = row[i].(int64)
		case *pgtype.UUID:
			*p = row[i].(pgtype.UUID)
		case *pgtype.Text:
			*p = row[i].(pgtype.Text)
		case *pgtype.Timestamptz:
			*p = row[i].(pgtype.Timestamptz)
		case **netip.Addr:
			*p = row[i].(*netip.Addr)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func sampleRun() core.MergeRun {
	return core.MergeRun{
		ID:             uuid.NewString(),
		Mode:           core.ModeXLookup,
		FromFile:       "invoices.xlsx",
		FromSheet:      "Invoices",
		ToFile:         "payments.csv",
		ToSheet:        "payments",
		FromKey:        "Invoice",
		ToKey:          "Ref",
		ReturnCol:      "Paid",
		MatchedCount:   3,
		UnmatchedCount: 1,
		DurationMS:     12,
		IPAddress:      "10.0.0.1",
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestHistoryStore_RecordRun(t *testing.T) {
	db := &fakeDB{}
	store := NewHistoryStore(db)
	run := sampleRun()

	require.NoError(t, store.RecordRun(context.Background(), run))
	require.Len(t, db.execs, 1)

	args := db.execs[0].args
	require.Len(t, args, 15)
	assert.Equal(t, pgtype.UUID{Bytes: uuid.MustParse(run.ID), Valid: true}, args[0])
	assert.Equal(t, "xlookup", args[1])
	assert.Equal(t, pgtype.Text{String: "Paid", Valid: true}, args[8])
	addr := args[12].(*netip.Addr)
	require.NotNil(t, addr)
	assert.Equal(t, "10.0.0.1", addr.String())
	assert.Equal(t, pgtype.Text{}, args[13], "empty user agent is stored as NULL")
	assert.Equal(t, run.CreatedAt, args[14])
}

func TestHistoryStore_RecordRunErrors(t *testing.T) {
	store := NewHistoryStore(&fakeDB{})
	run := sampleRun()
	run.ID = "not-a-uuid"
	assert.Error(t, store.RecordRun(context.Background(), run))

	failing := &fakeDB{execErr: errors.New("connection refused")}
	err := NewHistoryStore(failing).RecordRun(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Equal(t, "DB001", core.MapError(err).Code)
}

func TestHistoryStore_RecentRuns(t *testing.T) {
	id := uuid.New()
	addr := netip.MustParseAddr("192.168.1.5")
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	db := &fakeDB{rows: [][]any{{
		pgtype.UUID{Bytes: id, Valid: true}, "vlookup",
		"a.xlsx", "A", "b.csv", "b",
		"Key", "Key", pgtype.Text{},
		5, 0, int64(7),
		&addr, pgtype.Text{String: "curl", Valid: true},
		pgtype.Timestamptz{Time: created, Valid: true},
	}}}

	runs, err := NewHistoryStore(db).RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []any{DefaultRecentLimit}, db.queries[0].args)

	got := runs[0]
	assert.Equal(t, id.String(), got.ID)
	assert.Equal(t, core.ModeVLookup, got.Mode)
	assert.Empty(t, got.ReturnCol)
	assert.Equal(t, "192.168.1.5", got.IPAddress)
	assert.Equal(t, "curl", got.UserAgent)
	assert.Equal(t, 5, got.MatchedCount)
	assert.Equal(t, created, got.CreatedAt)
}

func TestHistoryStore_PurgeRuns(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 4")}
	cutoff := time.Now().Add(-time.Hour)

	n, err := NewHistoryStore(db).PurgeRuns(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.True(t, strings.HasPrefix(db.execs[0].sql, "DELETE FROM merge_runs"))
	assert.Equal(t, []any{cutoff}, db.execs[0].args)
}

func TestParseAddr(t *testing.T) {
	assert.Nil(t, parseAddr(""))
	assert.Nil(t, parseAddr("unknown"))
	require.NotNil(t, parseAddr("::1"))
}

// TestHistoryStore_Postgres runs against a real database when
// TABRECON_TEST_DATABASE_URL is set.
func TestHistoryStore_Postgres(t *testing.T) {
	dsn := os.Getenv("TABRECON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TABRECON_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, config.DatabaseConfig{
		URL: dsn, MaxConns: 2, MinConns: 0,
		MaxConnLifetime: time.Minute, MaxConnIdleTime: time.Minute,
	})
	require.NoError(t, err)
	defer pool.Close()

	store := NewHistoryStore(pool)
	require.NoError(t, store.Migrate(ctx))

	old := sampleRun()
	old.CreatedAt = time.Now().Add(-48 * time.Hour).UTC()
	recent := sampleRun()
	recent.CreatedAt = time.Now().UTC()
	require.NoError(t, store.RecordRun(ctx, old))
	require.NoError(t, store.RecordRun(ctx, recent))

	runs, err := store.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recent.ID, runs[0].ID)

	purged, err := store.PurgeRuns(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))

	_, err = pool.Exec(ctx, "DELETE FROM merge_runs WHERE id::text = ANY($1)",
		[]string{old.ID, recent.ID})
	require.NoError(t, err)
}
