package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yankesswang/PE-valuation/pkg/pev/assemble"
	"github.com/yankesswang/PE-valuation/pkg/pev/enrich"
	"github.com/yankesswang/PE-valuation/pkg/pev/normalize"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Snapshot holds the three per-day JSON files a scrape run leaves behind,
// each keyed by ticker:
//
//	ratio:    {"NVDA": {"marketcap": 3.2e12, "beta": 1.7, "eps_growth_5y": 35.2}}
//	forecast: {"NVDA": {"annual": {"current_eps": 2.9, ...}, "quarterly": {"eps_growth": [...]}}}
//	pe:       {"NVDA": 52.4} or {"NVDA": [55.1, 48.9, ...]}
//
// A pe entry that is a number is the central multiple itself; an array is
// a sample of prints, most recent first.
type Snapshot struct {
	Ratio    map[string]any
	Forecast map[string]any
	PE       map[string]any
}

// LoadSnapshot reads the files at the given paths. An empty path leaves
// that part of the snapshot empty.
func LoadSnapshot(ratio, forecast, pe string) (*Snapshot, error) {
	var s Snapshot
	for _, f := range []struct {
		path string
		dst  *map[string]any
	}{
		{ratio, &s.Ratio},
		{forecast, &s.Forecast},
		{pe, &s.PE},
	} {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, f.dst); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.path, err)
		}
	}
	return &s, nil
}

// Empty reports whether no file was loaded.
func (s *Snapshot) Empty() bool {
	return s == nil || (s.Ratio == nil && s.Forecast == nil && s.PE == nil)
}

// RatioPaths maps metric keys to fields of a ratio entry.
func RatioPaths() map[string]assemble.Path {
	return map[string]assemble.Path{
		types.KeyMarketCap:       assemble.P("marketcap"),
		types.KeyBeta:            assemble.P("beta"),
		types.KeyPrice:           assemble.P("price"),
		types.KeyEPSGrowth5Y:     assemble.P("eps_growth_5y"),
		types.KeyRevenueGrowth5Y: assemble.P("revenue_growth_5y"),
	}
}

// ForecastPaths maps metric keys to fields of a forecast entry.
func ForecastPaths() map[string]assemble.Path {
	return map[string]assemble.Path{
		types.KeyEPSCurrentYear:           assemble.P("annual", "current_eps"),
		types.KeyEPSNextYear:              assemble.P("annual", "next_year_eps"),
		types.KeyEPSGrowthCurrentYear:     assemble.P("annual", "current_growth"),
		types.KeyEPSGrowthNextYear:        assemble.P("annual", "next_year_growth"),
		types.KeyRevenueCurrentYear:       assemble.P("annual", "current_revenue"),
		types.KeyRevenueNextYear:          assemble.P("annual", "next_year_revenue"),
		types.KeyRevenueGrowthCurrentYear: assemble.P("annual", "current_revenue_growth"),
		types.KeyRevenueGrowthNextYear:    assemble.P("annual", "next_year_revenue_growth"),
		types.KeyPastEPSGrowth:            assemble.P("quarterly", "eps_growth").With(assemble.MeanOfFirst(5)),
	}
}

// SnapshotCollector builds bundles from a Snapshot. When Quotes is set it
// fills in the current price for tickers whose ratio entry has none.
type SnapshotCollector struct {
	Snapshot *Snapshot
	Quotes   enrich.QuoteService
	Logger   zerolog.Logger
}

func (c *SnapshotCollector) Collect(ctx context.Context, industry string, t types.Ticker) (types.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return types.Bundle{}, err
	}
	log := c.Logger.With().Str("ticker", t.Sym).Str("industry", industry).Logger()
	b := types.Bundle{Ticker: t.Sym, Industry: industry}

	ratio := record(c.Snapshot.Ratio, t.Sym, industry, types.CategoryRatio, RatioPaths())
	forecast := record(c.Snapshot.Forecast, t.Sym, industry, types.CategoryForecast, ForecastPaths())
	b.Records = append(b.Records, ratio, forecast)

	switch pe := lookup(c.Snapshot.PE, t.Sym).(type) {
	case nil:
		log.Debug().Msg("no pe entry")
	case []any:
		for _, v := range pe {
			if f := normalize.FromAny(v); f != nil {
				b.Sample = append(b.Sample, *f)
			}
		}
	default:
		b.Central = normalize.FromAny(pe)
	}

	if c.Quotes != nil && ratio.Get(types.KeyPrice) == nil {
		q, err := c.Quotes.Get(ctx, t.Sym)
		if err != nil {
			log.Warn().Err(err).Msg("quote unavailable")
		} else {
			b.Records = append(b.Records, types.MetricRecord{
				Ticker:   t.Sym,
				Industry: industry,
				Category: types.CategoryQuote,
				Values:   map[string]types.Value{types.KeyPrice: q.Price},
			})
		}
	}
	return b, nil
}

func record(file map[string]any, sym, industry string, cat types.Category, paths map[string]assemble.Path) types.MetricRecord {
	entry := lookup(file, sym)
	if entry == nil {
		return assemble.Empty(sym, industry, cat, assemble.PathKeys(paths))
	}
	return assemble.FromJSON(sym, industry, cat, entry, paths)
}

// lookup finds a ticker entry, falling back to a case-insensitive match.
func lookup(file map[string]any, sym string) any {
	if v, ok := file[sym]; ok {
		return v
	}
	for k, v := range file {
		if strings.EqualFold(k, sym) {
			return v
		}
	}
	return nil
}
