package scrape

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yankesswang/PE-valuation/pkg/pev/assemble"
	"github.com/yankesswang/PE-valuation/pkg/pev/enrich"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Collector gathers a bundle per ticker from the live sources. A category
// that fails is logged and contributes an all-nil record, so one bad page
// never drops the ticker.
type Collector struct {
	StockAnalysis *StockAnalysis
	Macrotrends   *Macrotrends
	Quotes        enrich.QuoteService
	FiscalYear    int
	Logger        zerolog.Logger
}

func (c *Collector) Collect(ctx context.Context, industry string, t types.Ticker) (types.Bundle, error) {
	log := c.Logger.With().Str("ticker", t.Sym).Str("industry", industry).Logger()
	b := types.Bundle{Ticker: t.Sym, Industry: industry}

	ratio, err := c.StockAnalysis.Statistics(ctx, t.Sym, industry)
	if err != nil {
		if ctx.Err() != nil {
			return b, ctx.Err()
		}
		log.Error().Err(err).Str("category", string(types.CategoryRatio)).Msg("collect failed")
		ratio = assemble.Empty(t.Sym, industry, types.CategoryRatio, assemble.LabelKeys(c.StockAnalysis.StatisticsLabels()))
	}

	forecast, err := c.StockAnalysis.Forecast(ctx, t.Sym, industry, c.FiscalYear)
	if err != nil {
		if ctx.Err() != nil {
			return b, ctx.Err()
		}
		log.Error().Err(err).Str("category", string(types.CategoryForecast)).Msg("collect failed")
		forecast = assemble.Empty(t.Sym, industry, types.CategoryForecast, ForecastKeys)
	}
	b.Records = append(b.Records, ratio, forecast)

	if c.Macrotrends != nil {
		sample, err := c.Macrotrends.Sample(ctx, t.Sym, t.Slug)
		if err != nil {
			if ctx.Err() != nil {
				return b, ctx.Err()
			}
			log.Error().Err(err).Str("category", string(types.CategoryPE)).Msg("pe history failed")
		}
		b.Sample = sample
	}

	if c.Quotes != nil {
		quote := assemble.Empty(t.Sym, industry, types.CategoryQuote, []string{types.KeyPrice})
		q, err := c.Quotes.Get(ctx, t.Sym)
		if err != nil {
			if ctx.Err() != nil {
				return b, ctx.Err()
			}
			log.Warn().Err(err).Str("category", string(types.CategoryQuote)).Msg("quote unavailable")
		} else {
			quote.Values[types.KeyPrice] = q.Price
		}
		b.Records = append(b.Records, quote)
	}

	log.Debug().
		Int("ratio", ratio.Found()).
		Int("forecast", forecast.Found()).
		Int("pe_prints", len(b.Sample)).
		Msg("collected")
	return b, nil
}
