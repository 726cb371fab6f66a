// Package columns defines the report columns of a valuation run.
package columns

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Resolver converts a record into the cell text of one column.
type Resolver func(r types.ValuationRecord) string

// Def describes a column.
type Def struct {
	// Header may contain %d, replaced by the fiscal year (or the next one
	// for NextYear columns).
	Header   string
	// Field is the JSON name of the record field the column shows.
	Field    string
	NextYear bool
	Numeric  bool
	Value    Resolver
}

// Registry maps column keys to their definitions.
var Registry = map[string]Def{
	"ticker":   {Field: "ticker", Header: "TICKER", Value: func(r types.ValuationRecord) string { return r.Ticker }},
	"industry": {Field: "industry", Header: "INDUSTRY", Value: func(r types.ValuationRecord) string { return r.Industry }},
	"fy": {Field: "fiscal_year", Header: "FY", Numeric: true, Value: func(r types.ValuationRecord) string {
		return strconv.Itoa(r.FiscalYear)
	}},

	"growth": {Field: "growth", Header: "GROWTH%", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatFloat(r.Growth, 2)
	}},
	"est_pe": {Field: "estimated_multiple", Header: "EST PE", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatFloat(r.EstimatedMultiple, 2)
	}},
	"eps_cy": {Field: "eps_current_year", Header: "EPS %d", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatValue(r.EPSCurrentYear, 2)
	}},
	"eps_ny": {Field: "eps_next_year", Header: "EPS %d", NextYear: true, Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatValue(r.EPSNextYear, 2)
	}},
	"fv_cy": {Field: "fair_value_current", Header: "FAIR %d", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatFloat(r.FairValueCurrent, 0)
	}},
	"fv_ny": {Field: "fair_value_next", Header: "FAIR %d", NextYear: true, Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatFloat(r.FairValueNext, 0)
	}},

	"central_pe": {Field: "central_multiple", Header: "MEDIAN PE", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatValue(r.CentralMultiple, 1)
	}},
	"cfv_cy": {Field: "central_fair_value_current", Header: "MEDIAN FAIR %d", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatFloat(r.CentralFairValueCurrent, 0)
	}},
	"cfv_ny": {Field: "central_fair_value_next", Header: "MEDIAN FAIR %d", NextYear: true, Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatFloat(r.CentralFairValueNext, 0)
	}},

	"price": {Field: "current_price", Header: "PRICE", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatValue(r.CurrentPrice, 2)
	}},
	"verdict_cy": {Field: "verdict_current", Header: "VERDICT %d", Value: func(r types.ValuationRecord) string { return string(r.VerdictCurrent) }},
	"verdict_ny": {Field: "verdict_next", Header: "VERDICT %d", NextYear: true, Value: func(r types.ValuationRecord) string { return string(r.VerdictNext) }},
	"gap_cy":     {Field: "gap_current_pct", Header: "GAP %d", Numeric: true, Value: func(r types.ValuationRecord) string { return r.GapCurrentText() }},
	"gap_ny":     {Field: "gap_next_pct", Header: "GAP %d", NextYear: true, Numeric: true, Value: func(r types.ValuationRecord) string { return r.GapNextText() }},

	"marketcap": {Field: "marketcap", Header: "MKT CAP", Numeric: true, Value: func(r types.ValuationRecord) string {
		if r.MarketCap == nil {
			return ""
		}
		return FormatFloat(*r.MarketCap/1e9, 2) + "B"
	}},
	"rev_growth_5y": {Field: "revenue_growth_5y", Header: "REV GROWTH 5Y", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatPercent(r.RevenueGrowth5Y)
	}},
	"eps_growth_5y": {Field: "eps_growth_5y", Header: "EPS GROWTH 5Y", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatPercent(r.EPSGrowth5Y)
	}},
	"past_eps_growth": {Field: "past_eps_growth", Header: "PAST EPS GROWTH", Numeric: true, Value: func(r types.ValuationRecord) string {
		return FormatPercent(r.PastEPSGrowth)
	}},
}

// GetDef returns the definition of key.
func GetDef(key string) (Def, bool) {
	d, ok := Registry[key]
	return d, ok
}

// Header returns the display header of key for fiscal year fy.
func Header(key string, fy int) string {
	d, ok := Registry[key]
	if !ok {
		return strings.ToUpper(key)
	}
	if !strings.Contains(d.Header, "%d") {
		return d.Header
	}
	if d.NextYear {
		fy++
	}
	return fmt.Sprintf(d.Header, fy)
}

// RenderValue returns the cell text of column col for r. Unknown columns
// render empty.
func RenderValue(col string, r types.ValuationRecord) string {
	if d, ok := Registry[col]; ok {
		return d.Value(r)
	}
	return ""
}

// Compute determines the final column order. Explicit columns are honored
// in order without duplicates; without them the valuation set is used.
func Compute(explicit []string) []string {
	if len(explicit) == 0 {
		explicit = Sets[DefaultSet]
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(explicit))
	for _, k := range explicit {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Unknown returns the columns that have no definition.
func Unknown(cols []string) []string {
	var out []string
	for _, c := range cols {
		if _, ok := Registry[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// FormatValue formats v with decimals and comma separators; nil is empty.
func FormatValue(v types.Value, decimals int) string {
	if v == nil {
		return ""
	}
	return FormatFloat(*v, decimals)
}

// FormatPercent renders percentage points as "12.3%"; nil is empty.
func FormatPercent(v types.Value) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
}

// FormatFloat formats a float with a fixed number of decimals and comma separators.
func FormatFloat(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}
	n := len(intPart)
	if n <= 3 {
		return sign + intPart + fracPart
	}
	out := make([]byte, 0, n+n/3)
	rem := n % 3
	if rem == 0 {
		rem = 3
	}
	out = append(out, intPart[:rem]...)
	for i := rem; i < n; i += 3 {
		out = append(out, ',')
		out = append(out, intPart[i:i+3]...)
	}
	return sign + string(out) + fracPart
}
