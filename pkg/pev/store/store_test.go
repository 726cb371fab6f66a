package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

func TestNopSink(t *testing.T) {
	assert.NoError(t, NopSink{}.Save(context.Background(), types.Run{ID: "not-a-uuid"}))
}

func TestPostgresSink_RejectsBadRunID(t *testing.T) {
	err := PostgresSink{}.Save(context.Background(), types.Run{ID: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `run id "nope"`)
}

// memDB keeps upserted rows keyed by the conflict target of upsertRecord.
type memDB struct {
	rows      map[string]string
	committed bool
}

func (m *memDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (m *memDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (m *memDB) Begin(context.Context) (pgx.Tx, error) {
	return &memTx{db: m, rows: map[string]string{}}, nil
}

type memTx struct {
	pgx.Tx
	db   *memDB
	rows map[string]string
}

func (tx *memTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if sql != upsertRecord {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected statement %q", sql)
	}
	// run_id, industry, ticker
	key := fmt.Sprintf("%v|%v|%v", args[0], args[1], args[2])
	tx.rows[key] = fmt.Sprint(args[1])
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *memTx) Commit(context.Context) error {
	tx.db.rows = tx.rows
	tx.db.committed = true
	return nil
}

func (tx *memTx) Rollback(context.Context) error { return nil }

func TestPostgresSink_SameTickerInTwoIndustries(t *testing.T) {
	db := &memDB{}
	s := PostgresSink{DB: db}
	run := types.Run{
		ID: uuid.NewString(),
		At: time.Now().UTC(),
		Reports: []types.Report{
			{Industry: "SaaS", Records: []types.ValuationRecord{{Ticker: "TTD", Industry: "SaaS"}}},
			{Industry: "Software", Records: []types.ValuationRecord{{Ticker: "TTD", Industry: "Software"}, {Ticker: "NET", Industry: "Software"}}},
		},
	}
	require.NoError(t, s.Save(context.Background(), run))
	require.True(t, db.committed)
	assert.Len(t, db.rows, 3)
	assert.Equal(t, "SaaS", db.rows[run.ID+"|SaaS|TTD"])
	assert.Equal(t, "Software", db.rows[run.ID+"|Software|TTD"])

	assert.Contains(t, recordsSchema, "PRIMARY KEY (run_id, industry, ticker)")
	assert.Contains(t, upsertRecord, "ON CONFLICT (run_id, industry, ticker)")
}

func TestPostgresSink_RoundTrip(t *testing.T) {
	dsn := os.Getenv("PEV_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PEV_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	s := PostgresSink{DB: pool}
	require.NoError(t, s.EnsureSchema(ctx))

	run := types.Run{
		ID:         uuid.NewString(),
		At:         time.Now().UTC(),
		FiscalYear: 2026,
		Reports: []types.Report{{Industry: "Semis", Records: []types.ValuationRecord{
			{Ticker: "NVDA", Industry: "Semis", FiscalYear: 2026, CurrentPrice: types.Float(40), VerdictCurrent: types.Overvalued, GapCurrent: types.Float(-8)},
			{Ticker: "AMD", Industry: "Semis", FiscalYear: 2026, VerdictCurrent: types.NotAvailable},
		}}, {Industry: "AI", Records: []types.ValuationRecord{
			{Ticker: "NVDA", Industry: "AI", FiscalYear: 2026, VerdictCurrent: types.NotAvailable},
		}}},
	}
	require.NoError(t, s.Save(ctx, run))
	// saving again upserts
	require.NoError(t, s.Save(ctx, run))

	got, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "NVDA", got[0].Ticker)
	assert.Equal(t, "AI", got[0].Industry)
	assert.Equal(t, "AMD", got[1].Ticker)
	assert.Nil(t, got[1].CurrentPrice)
	assert.Equal(t, "NVDA", got[2].Ticker)
	assert.Equal(t, "Semis", got[2].Industry)
	assert.Equal(t, "-8%", got[2].GapCurrentText())
}
