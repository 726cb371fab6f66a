// Package store persists valuation runs.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Sink receives every finished run.
type Sink interface {
	Save(ctx context.Context, run types.Run) error
}

// NopSink discards runs.
type NopSink struct{}

func (NopSink) Save(context.Context, types.Run) error { return nil }

// DB is the subset of *pgxpool.Pool the sink needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const recordsSchema = `
CREATE TABLE IF NOT EXISTS valuation_records (
	run_id      uuid        NOT NULL,
	ticker      text        NOT NULL,
	industry    text        NOT NULL,
	fiscal_year int         NOT NULL,
	record      jsonb       NOT NULL,
	created_at  timestamptz NOT NULL,
	PRIMARY KEY (run_id, industry, ticker)
)`

const upsertRecord = `
INSERT INTO valuation_records (run_id, industry, ticker, fiscal_year, record, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id, industry, ticker) DO UPDATE
SET fiscal_year = EXCLUDED.fiscal_year,
    record = EXCLUDED.record,
    created_at = EXCLUDED.created_at`

// PostgresSink writes each record of a run as a jsonb row. A ticker listed
// under several industries is stored once per industry.
type PostgresSink struct {
	DB DB
}

// EnsureSchema creates the records table when missing.
func (s PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, recordsSchema); err != nil {
		return fmt.Errorf("create valuation_records: %w", err)
	}
	return nil
}

// Save upserts every record of run in one transaction.
func (s PostgresSink) Save(ctx context.Context, run types.Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", run.ID, err)
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, rep := range run.Reports {
		for _, rec := range rep.Records {
			body, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode %s: %w", rec.Ticker, err)
			}
			if _, err := tx.Exec(ctx, upsertRecord, id.String(), rep.Industry, rec.Ticker, rec.FiscalYear, body, run.At); err != nil {
				return fmt.Errorf("save %s/%s: %w", rep.Industry, rec.Ticker, err)
			}
		}
	}
	return tx.Commit(ctx)
}

// Records returns the records stored for a run, ordered by industry and
// ticker.
func (s PostgresSink) Records(ctx context.Context, runID string) ([]types.ValuationRecord, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", runID, err)
	}
	rows, err := s.DB.Query(ctx, `SELECT record FROM valuation_records WHERE run_id = $1 ORDER BY industry, ticker`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []types.ValuationRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec types.ValuationRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}
