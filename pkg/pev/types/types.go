package types

import (
	"fmt"
	"time"
)

// Value is a normalized numeric value; nil means the value is absent.
type Value = *float64

// Float returns a Value holding f.
func Float(f float64) Value { return &f }

// IsSet reports whether v holds a number.
func IsSet(v Value) bool { return v != nil }

// Or returns the held number or def when v is absent.
func Or(v Value, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Category names the page or file a MetricRecord was assembled from.
type Category string

const (
	CategoryRatio    Category = "ratio"
	CategoryForecast Category = "forecast"
	CategoryPE       Category = "pe"
	CategoryQuote    Category = "quote"
)

// Metric keys shared by collectors, the assembler and the valuation engine.
// Percentage-valued keys hold percentage points (12.0 means 12%).
const (
	KeyEPSCurrentYear           = "eps_current_year"
	KeyEPSNextYear              = "eps_next_year"
	KeyEPSGrowthCurrentYear     = "eps_growth_current_year"
	KeyEPSGrowthNextYear        = "eps_growth_next_year"
	KeyRevenueCurrentYear       = "revenue_current_year"
	KeyRevenueNextYear          = "revenue_next_year"
	KeyRevenueGrowthCurrentYear = "revenue_growth_current_year"
	KeyRevenueGrowthNextYear    = "revenue_growth_next_year"
	KeyEPSGrowth5Y              = "eps_growth_5y"
	KeyRevenueGrowth5Y          = "revenue_growth_5y"
	KeyPastEPSGrowth            = "past_eps_growth"
	KeyPrice                    = "price"
	KeyMarketCap                = "marketcap"
	KeyBeta                     = "beta"
)

// MetricRecord holds the metrics one source delivered for one ticker.
// Values always carries exactly the requested key set; missing metrics are nil.
type MetricRecord struct {
	Ticker   string
	Industry string
	Category Category
	Values   map[string]Value
}

// Get returns the value stored under key, or nil.
func (r MetricRecord) Get(key string) Value {
	if r.Values == nil {
		return nil
	}
	return r.Values[key]
}

// Found counts the keys that hold a number.
func (r MetricRecord) Found() int {
	n := 0
	for _, v := range r.Values {
		if v != nil {
			n++
		}
	}
	return n
}

// HistoricalSample is a sequence of P/E prints, most recent first.
type HistoricalSample []float64

// Bundle is everything collected for one ticker before valuation.
type Bundle struct {
	Ticker   string
	Industry string
	// Records are merged in order; later records win for keys they provide.
	Records []MetricRecord
	Sample  HistoricalSample
	// Central is set when a source already supplies the central multiple.
	Central Value
}

// ValuationInputs are the normalized fields the valuation engine consumes.
type ValuationInputs struct {
	EPSCurrentYear    Value
	EPSNextYear       Value
	FiveYearEPSGrowth Value
	PastEPSGrowth     Value
	CurrentPrice      Value
}

// Verdict compares the current price with a fair-value benchmark.
type Verdict string

const (
	Overvalued   Verdict = "overvalued"
	Undervalued  Verdict = "undervalued"
	NotAvailable Verdict = "not available"
)

// ValuationRecord is the per-ticker result of one run.
type ValuationRecord struct {
	Ticker     string  `json:"ticker"`
	Industry   string  `json:"industry"`
	FiscalYear int     `json:"fiscal_year"`
	Growth     float64 `json:"growth"`

	EstimatedMultiple float64 `json:"estimated_multiple"`
	EPSCurrentYear    Value   `json:"eps_current_year"`
	EPSNextYear       Value   `json:"eps_next_year"`
	FairValueCurrent  float64 `json:"fair_value_current"`
	FairValueNext     float64 `json:"fair_value_next"`

	CentralMultiple         Value   `json:"central_multiple"`
	CentralFairValueCurrent float64 `json:"central_fair_value_current"`
	CentralFairValueNext    float64 `json:"central_fair_value_next"`

	CurrentPrice   Value   `json:"current_price"`
	VerdictCurrent Verdict `json:"verdict_current"`
	VerdictNext    Verdict `json:"verdict_next"`
	GapCurrent     Value   `json:"gap_current_pct"`
	GapNext        Value   `json:"gap_next_pct"`

	MarketCap       Value `json:"marketcap"`
	RevenueGrowth5Y Value `json:"revenue_growth_5y"`
	EPSGrowth5Y     Value `json:"eps_growth_5y"`
	PastEPSGrowth   Value `json:"past_eps_growth"`
}

// GapCurrentText renders the current-year gap as "-8%" or "not available".
func (r ValuationRecord) GapCurrentText() string { return GapText(r.GapCurrent) }

// GapNextText renders the next-year gap as "13%" or "not available".
func (r ValuationRecord) GapNextText() string { return GapText(r.GapNext) }

// GapText formats a gap in percentage points.
func GapText(v Value) string {
	if v == nil {
		return string(NotAvailable)
	}
	return fmt.Sprintf("%.0f%%", *v)
}

// Quote is the market data a quote service returns for a symbol.
type Quote struct {
	Price     Value
	ChangePct Value // percentage points
	Name      string
}

// Ticker is one catalog entry. Slug is the company path segment some
// sources need in their URLs.
type Ticker struct {
	Sym  string
	Slug string
}

// Industry is a named group of tickers from the catalog.
type Industry struct {
	Name    string
	Tickers []Ticker
}

// Report is the valuation output of one industry.
type Report struct {
	Industry string            `json:"industry"`
	Records  []ValuationRecord `json:"records"`
}

// Run is one aggregation run across every selected industry.
type Run struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	FiscalYear int       `json:"fiscal_year"`
	Reports    []Report  `json:"reports"`
}
