// Package valuation turns normalized per-ticker metrics into fair-value
// estimates and over/under-valuation verdicts.
package valuation

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/yankesswang/PE-valuation/pkg/pev/assemble"
	"github.com/yankesswang/PE-valuation/pkg/pev/dispersion"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Multiplier returns the growth tier factor. Brackets are half-open; zero,
// negative and very high growth all fall into the 2.0 tier.
func Multiplier(growth float64) float64 {
	switch {
	case growth > 0 && growth < 5:
		return 0.8
	case growth >= 5 && growth < 10:
		return 1.0
	case growth >= 10 && growth < 15:
		return 1.1
	case growth >= 15 && growth < 20:
		return 1.2
	case growth >= 20 && growth < 30:
		return 1.5
	default:
		return 2.0
	}
}

// EstimatedMultiple scales growth by its tier multiplier, rounded to two
// decimals.
func EstimatedMultiple(growth float64) float64 {
	m := scalar.RoundEven(growth*Multiplier(growth), 2)
	if m == 0 {
		return 0
	}
	return m
}

// Growth picks the growth rate a valuation uses: the five-year forecast,
// then past EPS growth, then 0.
func Growth(in types.ValuationInputs) float64 {
	switch {
	case in.FiveYearEPSGrowth != nil:
		return *in.FiveYearEPSGrowth
	case in.PastEPSGrowth != nil:
		return *in.PastEPSGrowth
	}
	return 0
}

// Compute values one ticker. central is the historical central P/E and may
// be nil; a zero central multiple is treated like a missing one.
func Compute(in types.ValuationInputs, central types.Value) types.ValuationRecord {
	g := Growth(in)
	est := EstimatedMultiple(g)

	rec := types.ValuationRecord{
		Growth:            g,
		EstimatedMultiple: est,
		EPSCurrentYear:    in.EPSCurrentYear,
		EPSNextYear:       in.EPSNextYear,
		FairValueCurrent:  product(in.EPSCurrentYear, est),
		FairValueNext:     product(in.EPSNextYear, est),
		CentralMultiple:   central,
		CurrentPrice:      in.CurrentPrice,
	}
	if central != nil {
		rec.CentralFairValueCurrent = product(in.EPSCurrentYear, *central)
		rec.CentralFairValueNext = product(in.EPSNextYear, *central)
	}

	rec.VerdictCurrent = verdict(in.CurrentPrice, rec.CentralFairValueCurrent)
	rec.VerdictNext = verdict(in.CurrentPrice, rec.CentralFairValueNext)
	rec.GapCurrent = gap(in.CurrentPrice, rec.CentralFairValueCurrent)
	rec.GapNext = gap(in.CurrentPrice, rec.CentralFairValueNext)
	return rec
}

func product(eps types.Value, multiple float64) float64 {
	if eps == nil {
		return 0
	}
	v := math.RoundToEven(*eps * multiple)
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func verdict(price types.Value, fair float64) types.Verdict {
	if price == nil || *price == 0 || fair == 0 {
		return types.NotAvailable
	}
	if *price > fair {
		return types.Overvalued
	}
	return types.Undervalued
}

func gap(price types.Value, fair float64) types.Value {
	if price == nil || *price == 0 || fair == 0 {
		return nil
	}
	v := math.RoundToEven(100 * (fair - *price) / fair)
	if v == 0 {
		v = 0 // drop negative zero
	}
	return types.Float(v)
}

// InputsFromValues reads valuation inputs out of merged metrics. EPS
// figures are rounded to two decimals before use.
func InputsFromValues(values map[string]types.Value) types.ValuationInputs {
	return types.ValuationInputs{
		EPSCurrentYear:    round2(values[types.KeyEPSCurrentYear]),
		EPSNextYear:       round2(values[types.KeyEPSNextYear]),
		FiveYearEPSGrowth: values[types.KeyEPSGrowth5Y],
		PastEPSGrowth:     values[types.KeyPastEPSGrowth],
		CurrentPrice:      values[types.KeyPrice],
	}
}

func round2(v types.Value) types.Value {
	if v == nil {
		return nil
	}
	return types.Float(scalar.RoundEven(*v, 2))
}

// Evaluate merges a bundle's records, derives the central multiple from the
// sample unless the bundle already carries one, and values the ticker.
func Evaluate(b types.Bundle, fiscalYear, maxCount int) types.ValuationRecord {
	values := assemble.Merge(b.Records...)

	central := b.Central
	if central == nil {
		central = dispersion.EstimateCentral(b.Sample, maxCount)
	}

	rec := Compute(InputsFromValues(values), central)
	rec.Ticker = b.Ticker
	rec.Industry = b.Industry
	rec.FiscalYear = fiscalYear
	rec.MarketCap = values[types.KeyMarketCap]
	rec.RevenueGrowth5Y = values[types.KeyRevenueGrowth5Y]
	rec.EPSGrowth5Y = values[types.KeyEPSGrowth5Y]
	rec.PastEPSGrowth = values[types.KeyPastEPSGrowth]
	return rec
}
