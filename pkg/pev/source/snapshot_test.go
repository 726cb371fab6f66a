package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
	"github.com/yankesswang/PE-valuation/pkg/pev/valuation"
)

const (
	ratioJSON = `{
  "ACME": {"marketcap": 5000000000, "beta": "1.1", "eps_growth_5y": 12, "revenue_growth_5y": "7.5%"},
  "NOPX": {"marketcap": "2.1B", "price": 90}
}`
	forecastJSON = `{
  "ACME": {
    "annual": {"current_eps": 2.001, "next_year_eps": 2.5, "current_growth": 9.1, "next_year_growth": null},
    "quarterly": {"eps_growth": [10, null, 20, 30, 40, 500]}
  }
}`
	peJSON = `{"ACME": 18.3, "nopx": [20.5, 0, 19.5, "n/a", 21]}`
)

type stubQuotes struct {
	price types.Value
	err   error
	calls int
}

func (s *stubQuotes) Get(context.Context, string) (types.Quote, error) {
	s.calls++
	return types.Quote{Price: s.price}, s.err
}

func loadTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ratio.json"), ratioJSON)
	writeFile(t, filepath.Join(dir, "forecast.json"), forecastJSON)
	writeFile(t, filepath.Join(dir, "pe.json"), peJSON)
	s, err := LoadSnapshot(
		filepath.Join(dir, "ratio.json"),
		filepath.Join(dir, "forecast.json"),
		filepath.Join(dir, "pe.json"),
	)
	require.NoError(t, err)
	return s
}

func TestLoadSnapshot(t *testing.T) {
	s := loadTestSnapshot(t)
	assert.False(t, s.Empty())
	assert.Len(t, s.Ratio, 2)

	empty, err := LoadSnapshot("", "", "")
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	bad := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, bad, "{nope")
	_, err = LoadSnapshot(bad, "", "")
	assert.ErrorContains(t, err, "parse")
}

func TestSnapshotCollector_CentralAndQuote(t *testing.T) {
	quotes := &stubQuotes{price: types.Float(40)}
	c := &SnapshotCollector{Snapshot: loadTestSnapshot(t), Quotes: quotes, Logger: zerolog.Nop()}

	b, err := c.Collect(context.Background(), "Widgets", types.Ticker{Sym: "ACME"})
	require.NoError(t, err)

	assert.Equal(t, "ACME", b.Ticker)
	require.Len(t, b.Records, 3)
	ratio, forecast, quote := b.Records[0], b.Records[1], b.Records[2]

	assert.Equal(t, types.CategoryRatio, ratio.Category)
	assert.Len(t, ratio.Values, len(RatioPaths()))
	assert.Equal(t, 1.1, *ratio.Get(types.KeyBeta))
	assert.Equal(t, 7.5, *ratio.Get(types.KeyRevenueGrowth5Y))

	assert.Len(t, forecast.Values, len(ForecastPaths()))
	assert.Equal(t, 2.001, *forecast.Get(types.KeyEPSCurrentYear))
	assert.Nil(t, forecast.Get(types.KeyEPSGrowthNextYear))
	assert.Equal(t, 25.0, *forecast.Get(types.KeyPastEPSGrowth))

	assert.Equal(t, types.CategoryQuote, quote.Category)
	assert.Equal(t, 1, quotes.calls)
	require.NotNil(t, b.Central)
	assert.Equal(t, 18.3, *b.Central)
	assert.Empty(t, b.Sample)

	rec := valuation.Evaluate(b, 2026, 0)
	assert.Equal(t, types.Overvalued, rec.VerdictCurrent)
	assert.Equal(t, "-8%", rec.GapCurrentText())
}

func TestSnapshotCollector_SampleAndPriceFromFile(t *testing.T) {
	quotes := &stubQuotes{price: types.Float(1)}
	c := &SnapshotCollector{Snapshot: loadTestSnapshot(t), Quotes: quotes, Logger: zerolog.Nop()}

	b, err := c.Collect(context.Background(), "Other", types.Ticker{Sym: "NOPX"})
	require.NoError(t, err)

	assert.Equal(t, 0, quotes.calls)
	assert.Len(t, b.Records, 2)
	assert.Equal(t, 2.1e9, *b.Records[0].Get(types.KeyMarketCap))
	// forecast entry missing: all keys present, all nil
	assert.Len(t, b.Records[1].Values, len(ForecastPaths()))
	assert.Equal(t, 0, b.Records[1].Found())

	assert.Nil(t, b.Central)
	// zeros are kept here and dropped by the dispersion filter
	assert.Equal(t, types.HistoricalSample{20.5, 0, 19.5, 21}, b.Sample)
}

func TestSnapshotCollector_QuoteFailureIsLogged(t *testing.T) {
	quotes := &stubQuotes{err: errors.New("down")}
	c := &SnapshotCollector{Snapshot: loadTestSnapshot(t), Quotes: quotes, Logger: zerolog.Nop()}

	b, err := c.Collect(context.Background(), "Widgets", types.Ticker{Sym: "ACME"})
	require.NoError(t, err)
	assert.Len(t, b.Records, 2)
}

func TestSnapshotCollector_UnknownTicker(t *testing.T) {
	c := &SnapshotCollector{Snapshot: loadTestSnapshot(t), Logger: zerolog.Nop()}
	b, err := c.Collect(context.Background(), "X", types.Ticker{Sym: "ZZZZ"})
	require.NoError(t, err)
	rec := valuation.Evaluate(b, 2026, 0)
	assert.Equal(t, types.NotAvailable, rec.VerdictCurrent)
	assert.Nil(t, rec.CentralMultiple)
}

func TestSnapshotCollector_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &SnapshotCollector{Snapshot: &Snapshot{}, Logger: zerolog.Nop()}
	_, err := c.Collect(ctx, "X", types.Ticker{Sym: "A"})
	assert.ErrorIs(t, err, context.Canceled)
}
