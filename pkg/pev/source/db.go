package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Querier is the subset of *pgxpool.Pool the catalog needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS catalog_tickers (
	industry text NOT NULL,
	sym      text NOT NULL,
	slug     text NOT NULL DEFAULT '',
	position int  NOT NULL DEFAULT 0,
	PRIMARY KEY (industry, sym)
)`

// DBCatalog loads the catalog from a catalog_tickers table. Industries keep
// the order of their lowest position.
type DBCatalog struct {
	DB Querier
}

// EnsureSchema creates the catalog table when missing.
func (c DBCatalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.Exec(ctx, catalogSchema); err != nil {
		return fmt.Errorf("create catalog_tickers: %w", err)
	}
	return nil
}

// Load ignores spec; the table is the whole catalog.
func (c DBCatalog) Load(ctx context.Context, spec any) ([]types.Industry, error) { //nolint:revive
	rows, err := c.DB.Query(ctx, `
SELECT industry, sym, slug
FROM catalog_tickers
ORDER BY min(position) OVER (PARTITION BY industry), industry, position, sym`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var out []types.Industry
	index := map[string]int{}
	for rows.Next() {
		var ind string
		var t types.Ticker
		if err := rows.Scan(&ind, &t.Sym, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		i, ok := index[ind]
		if !ok {
			i = len(out)
			index[ind] = i
			out = append(out, types.Industry{Name: ind})
		}
		out[i].Tickers = append(out[i].Tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return out, nil
}

// Put replaces the stored catalog with inds in one transaction.
func (c DBCatalog) Put(ctx context.Context, inds []types.Industry) error {
	tx, err := c.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM catalog_tickers`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	pos := 0
	for _, ind := range inds {
		for _, t := range ind.Tickers {
			if _, err := tx.Exec(ctx,
				`INSERT INTO catalog_tickers (industry, sym, slug, position) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (industry, sym) DO UPDATE SET slug = EXCLUDED.slug, position = EXCLUDED.position`,
				ind.Name, t.Sym, t.Slug, pos); err != nil {
				return fmt.Errorf("insert %s/%s: %w", ind.Name, t.Sym, err)
			}
			pos++
		}
	}
	return tx.Commit(ctx)
}
