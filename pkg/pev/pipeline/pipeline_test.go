package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yankesswang/PE-valuation/pkg/pev/filter"
	"github.com/yankesswang/PE-valuation/pkg/pev/render"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

type staticCatalog []types.Industry

func (c staticCatalog) Load(context.Context, any) ([]types.Industry, error) { return c, nil }

type fakeCollector struct {
	mu      sync.Mutex
	calls   []string
	bundles map[string]types.Bundle
	fail    map[string]error
	delay   time.Duration
}

func (f *fakeCollector) Collect(ctx context.Context, industry string, t types.Ticker) (types.Bundle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, t.Sym)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.Bundle{}, ctx.Err()
		}
	}
	if err := f.fail[t.Sym]; err != nil {
		return types.Bundle{}, err
	}
	return f.bundles[t.Sym], nil
}

type recordingSink struct{ runs []types.Run }

func (s *recordingSink) Save(_ context.Context, run types.Run) error {
	s.runs = append(s.runs, run)
	return nil
}

func bundle(sym string, eps, price float64, sample ...float64) types.Bundle {
	return types.Bundle{
		Records: []types.MetricRecord{{Values: map[string]types.Value{
			types.KeyEPSCurrentYear: types.Float(eps),
			types.KeyEPSNextYear:    types.Float(eps),
			types.KeyEPSGrowth5Y:    types.Float(10),
			types.KeyPrice:          types.Float(price),
		}}},
		Sample: sample,
	}
}

func testCatalog() staticCatalog {
	return staticCatalog{
		{Name: "Semis", Tickers: []types.Ticker{{Sym: "NVDA"}, {Sym: "AMD"}, {Sym: "INTC"}}},
		{Name: "Banks", Tickers: []types.Ticker{{Sym: "JPM"}}},
	}
}

func testCollector() *fakeCollector {
	return &fakeCollector{bundles: map[string]types.Bundle{
		"NVDA": bundle("NVDA", 2, 40, 20, 20, 20),
		"AMD":  bundle("AMD", 3, 30, 15, 15),
		"INTC": bundle("INTC", 1, 25, 10),
		"JPM":  bundle("JPM", 10, 150, 12, 12),
	}}
}

func TestExecute(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	r := &Runner{
		Catalog:   testCatalog(),
		Collector: testCollector(),
		Renderer:  render.NewSymsRenderer(),
		Writer:    &buf,
		Sink:      sink,
		Logger:    zerolog.Nop(),
		now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	run, err := r.Execute(context.Background(), "catalog.yaml", ExecuteOptions{Workers: 3, FiscalYear: 2026})
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2026, run.FiscalYear)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), run.At)

	require.Len(t, run.Reports, 2)
	assert.Equal(t, "Semis", run.Reports[0].Industry)
	require.Len(t, run.Reports[0].Records, 3)
	assert.Equal(t, "NVDA", run.Reports[0].Records[0].Ticker)
	assert.Equal(t, "AMD", run.Reports[0].Records[1].Ticker)
	assert.Equal(t, "INTC", run.Reports[0].Records[2].Ticker)

	nvda := run.Reports[0].Records[0]
	assert.Equal(t, "Semis", nvda.Industry)
	assert.Equal(t, 20.0, *nvda.CentralMultiple)
	assert.Equal(t, 40.0, nvda.CentralFairValueCurrent)
	assert.Equal(t, types.Undervalued, nvda.VerdictCurrent)
	assert.Equal(t, "0%", nvda.GapCurrentText())

	jpm := run.Reports[1].Records[0]
	assert.Equal(t, types.Overvalued, jpm.VerdictCurrent)
	assert.Equal(t, "-25%", jpm.GapCurrentText())

	assert.Equal(t, "NVDA,AMD,INTC,JPM\n", buf.String())
	require.Len(t, sink.runs, 1)
	assert.Equal(t, run.ID, sink.runs[0].ID)
}

func TestExecute_Filters(t *testing.T) {
	c := testCollector()
	r := &Runner{Catalog: testCatalog(), Collector: c, Logger: zerolog.Nop()}
	run, err := r.Execute(context.Background(), nil, ExecuteOptions{
		Industry: filter.MustParse("semi*"),
		Ticker:   filter.MustParse("!intc"),
	})
	require.NoError(t, err)
	require.Len(t, run.Reports, 1)
	require.Len(t, run.Reports[0].Records, 2)
	assert.ElementsMatch(t, []string{"NVDA", "AMD"}, c.calls)
}

func TestExecute_CollectorErrorKeepsTicker(t *testing.T) {
	c := testCollector()
	c.fail = map[string]error{"AMD": errors.New("boom")}
	r := &Runner{Catalog: testCatalog(), Collector: c, Logger: zerolog.Nop()}
	run, err := r.Execute(context.Background(), nil, ExecuteOptions{Workers: 2})
	require.NoError(t, err)

	amd := run.Reports[0].Records[1]
	assert.Equal(t, "AMD", amd.Ticker)
	assert.Equal(t, "Semis", amd.Industry)
	assert.Equal(t, types.NotAvailable, amd.VerdictCurrent)
	assert.Nil(t, amd.CentralMultiple)
}

func TestExecute_UnknownColumn(t *testing.T) {
	r := &Runner{Catalog: testCatalog(), Collector: testCollector(), Logger: zerolog.Nop()}
	_, err := r.Execute(context.Background(), nil, ExecuteOptions{Columns: []string{"ticker", "bogus"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestExecute_Canceled(t *testing.T) {
	c := testCollector()
	c.delay = time.Second
	sink := &recordingSink{}
	r := &Runner{Catalog: testCatalog(), Collector: c, Sink: sink, Logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := r.Execute(ctx, nil, ExecuteOptions{Workers: 1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.runs)
}

func TestEvaluate(t *testing.T) {
	rec, err := Evaluate(context.Background(), testCollector(), "Banks", types.Ticker{Sym: "JPM"}, 2026, 0)
	require.NoError(t, err)
	assert.Equal(t, "JPM", rec.Ticker)
	assert.Equal(t, "Banks", rec.Industry)
	assert.Equal(t, 2026, rec.FiscalYear)
	assert.Equal(t, 12.0, *rec.CentralMultiple)
}

func TestSelect(t *testing.T) {
	got := Select(testCatalog(), nil, filter.MustParse("JPM"))
	require.Len(t, got, 1)
	assert.Equal(t, "Banks", got[0].Name)
	assert.Len(t, Select(testCatalog(), nil, nil), 2)
}
