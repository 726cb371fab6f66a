// Package pipeline runs a valuation pass over a ticker catalog.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yankesswang/PE-valuation/pkg/pev/columns"
	"github.com/yankesswang/PE-valuation/pkg/pev/dispersion"
	"github.com/yankesswang/PE-valuation/pkg/pev/filter"
	"github.com/yankesswang/PE-valuation/pkg/pev/render"
	"github.com/yankesswang/PE-valuation/pkg/pev/source"
	"github.com/yankesswang/PE-valuation/pkg/pev/store"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
	"github.com/yankesswang/PE-valuation/pkg/pev/valuation"
)

// Collector gathers everything known about one ticker.
type Collector interface {
	Collect(ctx context.Context, industry string, t types.Ticker) (types.Bundle, error)
}

type Runner struct {
	Catalog   source.Catalog
	Collector Collector
	Renderer  render.Renderer
	Writer    io.Writer
	Sink      store.Sink
	Logger    zerolog.Logger

	now func() time.Time
}

type ExecuteOptions struct {
	Industry    filter.Filter
	Ticker      filter.Filter
	Columns     []string
	Color       bool
	PrettyJSON  bool
	MaxColWidth int
	Workers     int
	FiscalYear  int
	MaxPECount  int
}

// Execute loads the catalog, values every selected ticker and renders one
// report per industry in catalog order. The run is handed to the sink
// after rendering.
func (r *Runner) Execute(ctx context.Context, spec any, opts ExecuteOptions) (types.Run, error) {
	if unknown := columns.Unknown(opts.Columns); len(unknown) > 0 {
		return types.Run{}, fmt.Errorf("unknown columns: %v", unknown)
	}
	inds, err := r.Catalog.Load(ctx, spec)
	if err != nil {
		return types.Run{}, err
	}
	inds = Select(inds, opts.Industry, opts.Ticker)

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	run := types.Run{ID: uuid.NewString(), At: now().UTC(), FiscalYear: opts.FiscalYear}
	log := r.Logger.With().Str("run_id", run.ID).Logger()

	reports, err := r.value(ctx, log, inds, opts)
	if err != nil {
		return run, err
	}
	run.Reports = reports

	if r.Renderer != nil && r.Writer != nil {
		if err := r.Renderer.Render(r.Writer, reports, render.RenderOptions{
			Columns:     opts.Columns,
			FiscalYear:  opts.FiscalYear,
			Color:       opts.Color,
			PrettyJSON:  opts.PrettyJSON,
			MaxColWidth: opts.MaxColWidth,
		}); err != nil {
			return run, fmt.Errorf("render: %w", err)
		}
	}

	if r.Sink != nil {
		if err := r.Sink.Save(ctx, run); err != nil {
			return run, fmt.Errorf("save run %s: %w", run.ID, err)
		}
	}
	log.Info().Int("industries", len(reports)).Msg("run complete")
	return run, nil
}

func (r *Runner) value(ctx context.Context, log zerolog.Logger, inds []types.Industry, opts ExecuteOptions) ([]types.Report, error) {
	reports := make([]types.Report, len(inds))
	for i, ind := range inds {
		reports[i] = types.Report{Industry: ind.Name, Records: make([]types.ValuationRecord, len(ind.Tickers))}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ind := range inds {
		for j, t := range ind.Tickers {
			g.Go(func() error {
				rec, err := Evaluate(gctx, r.Collector, ind.Name, t, opts.FiscalYear, opts.MaxPECount)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					// the ticker stays in the report with every field unavailable
					log.Error().Err(err).Str("ticker", t.Sym).Str("industry", ind.Name).Msg("collect failed")
				}
				reports[i].Records[j] = rec
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Evaluate collects and values a single ticker. On a collector error the
// returned record is the valuation of an empty bundle.
func Evaluate(ctx context.Context, c Collector, industry string, t types.Ticker, fiscalYear, maxPECount int) (types.ValuationRecord, error) {
	if maxPECount <= 0 {
		maxPECount = dispersion.DefaultMaxCount
	}
	b, err := c.Collect(ctx, industry, t)
	if err != nil {
		b = types.Bundle{}
	}
	b.Ticker, b.Industry = t.Sym, industry
	return valuation.Evaluate(b, fiscalYear, maxPECount), err
}

// Select applies the industry and ticker filters. Industries left without
// tickers are dropped.
func Select(inds []types.Industry, industry, ticker filter.Filter) []types.Industry {
	if industry == nil {
		industry = filter.Always(true)
	}
	if ticker == nil {
		ticker = filter.Always(true)
	}
	out := make([]types.Industry, 0, len(inds))
	for _, ind := range inds {
		if !industry.Match(ind.Name) {
			continue
		}
		kept := make([]types.Ticker, 0, len(ind.Tickers))
		for _, t := range ind.Tickers {
			if ticker.Match(t.Sym) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, types.Industry{Name: ind.Name, Tickers: kept})
	}
	return out
}
