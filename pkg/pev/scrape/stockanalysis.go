package scrape

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/yankesswang/PE-valuation/pkg/pev/assemble"
	"github.com/yankesswang/PE-valuation/pkg/pev/blob"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// DataMarker precedes the data literal embedded in stockanalysis pages.
const DataMarker = "const data = "

// GrowthLabels maps statistics-table labels to the five-year forecast keys.
var GrowthLabels = map[string]string{
	"Revenue Growth Forecast (5Y)": types.KeyRevenueGrowth5Y,
	"EPS Growth Forecast (5Y)":     types.KeyEPSGrowth5Y,
}

// ForecastKeys is the key set of every forecast record.
var ForecastKeys = []string{
	types.KeyEPSCurrentYear,
	types.KeyEPSNextYear,
	types.KeyEPSGrowthCurrentYear,
	types.KeyEPSGrowthNextYear,
	types.KeyRevenueCurrentYear,
	types.KeyRevenueNextYear,
	types.KeyRevenueGrowthCurrentYear,
	types.KeyRevenueGrowthNextYear,
	types.KeyPastEPSGrowth,
}

// forecastPaths address the annual and quarterly estimates inside the
// forecast page blob.
var forecastPaths = map[string]assemble.Path{
	types.KeyEPSCurrentYear:           assemble.P("annual", "epsThis", "last"),
	types.KeyEPSGrowthCurrentYear:     assemble.P("annual", "epsThis", "growth"),
	types.KeyEPSNextYear:              assemble.P("annual", "epsNext", "last"),
	types.KeyEPSGrowthNextYear:        assemble.P("annual", "epsNext", "growth"),
	types.KeyRevenueCurrentYear:       assemble.P("annual", "revenueThis", "last"),
	types.KeyRevenueGrowthCurrentYear: assemble.P("annual", "revenueThis", "growth"),
	types.KeyRevenueNextYear:          assemble.P("annual", "revenueNext", "last"),
	types.KeyRevenueGrowthNextYear:    assemble.P("annual", "revenueNext", "growth"),
	types.KeyPastEPSGrowth:            assemble.P("quarterly", "epsGrowth").With(assemble.MeanOfFirst(5)),
}

// StockAnalysis reads the statistics and forecast pages of stockanalysis.com.
type StockAnalysis struct {
	Fetcher  *Fetcher
	BaseURL  string
	Decoder  blob.Decoder
	RatioIDs []string
	Logger   zerolog.Logger
}

// RatioKey is the metric key a statistics entry id is stored under.
func RatioKey(id string) string { return strings.ToLower(id) }

// StatisticsLabels returns the label to key mapping used on the statistics
// page: one entry per ratio id plus the five-year growth labels.
func (s *StockAnalysis) StatisticsLabels() map[string]string {
	labels := make(map[string]string, len(s.RatioIDs)+len(GrowthLabels))
	for _, id := range s.RatioIDs {
		labels[id] = RatioKey(id)
	}
	for l, k := range GrowthLabels {
		labels[l] = k
	}
	return labels
}

func (s *StockAnalysis) pageURL(ticker, page string) string {
	return fmt.Sprintf("%s/stocks/%s/%s/", strings.TrimRight(s.BaseURL, "/"), strings.ToLower(ticker), page)
}

// Statistics collects the configured ratio ids and the five-year growth
// forecasts for ticker.
func (s *StockAnalysis) Statistics(ctx context.Context, ticker, industry string) (types.MetricRecord, error) {
	doc, page, err := s.Fetcher.Page(ctx, s.pageURL(ticker, "statistics"))
	if err != nil {
		return types.MetricRecord{}, err
	}

	var rows []assemble.Row
	data, err := s.Decoder.DecodePage(page, DataMarker)
	switch {
	case err == nil:
		rows = assemble.RowsFromEntries(data)
	case errors.Is(err, blob.ErrMarkerNotFound):
	default:
		s.Logger.Warn().Err(err).Str("ticker", ticker).Msg("statistics blob unreadable, using tables only")
	}
	rows = append(rows, assemble.RowsFromTable(doc.Selection)...)

	return assemble.FromRows(ticker, industry, types.CategoryRatio, rows, s.StatisticsLabels()), nil
}

// Forecast collects analyst estimates for fiscal year and the year after.
// The page blob is preferred; pages without one fall back to the estimate
// tables.
func (s *StockAnalysis) Forecast(ctx context.Context, ticker, industry string, year int) (types.MetricRecord, error) {
	doc, page, err := s.Fetcher.Page(ctx, s.pageURL(ticker, "forecast"))
	if err != nil {
		return types.MetricRecord{}, err
	}

	data, err := s.Decoder.DecodePage(page, DataMarker)
	if err != nil && !errors.Is(err, blob.ErrMarkerNotFound) {
		return types.MetricRecord{}, fmt.Errorf("forecast %s: %w", ticker, err)
	}
	if est := findObject(data, "annual"); est != nil {
		return assemble.FromJSON(ticker, industry, types.CategoryForecast, est, forecastPaths), nil
	}
	return ForecastFromTables(doc, ticker, industry, year), nil
}

// findObject returns the first object, depth first, that has key.
func findObject(v any, key string) map[string]any {
	switch n := v.(type) {
	case map[string]any:
		if _, ok := n[key]; ok {
			return n
		}
		for _, k := range sortedKeys(n) {
			if m := findObject(n[k], key); m != nil {
				return m
			}
		}
	case []any:
		for _, e := range n {
			if m := findObject(e, key); m != nil {
				return m
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ForecastFromTables reads the year-column estimate tables. Each table is
// typed by its first header cell; the "Avg" row (or the first body row)
// supplies the values. When no header names year, a first column that is
// at most two years ahead is taken as the current year.
func ForecastFromTables(doc *goquery.Document, ticker, industry string, year int) types.MetricRecord {
	var rows []assemble.Row
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var headers []string
		table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, assemble.CellText(th))
		})
		if len(headers) < 2 {
			return
		}
		cur, next := yearColumns(headers[1:], year)
		if cur < 0 {
			return
		}
		curKey, nextKey := forecastTableKeys(headers[0])
		if curKey == "" {
			return
		}

		body := table.Find("tbody tr")
		var cells *goquery.Selection
		body.EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			tds := tr.Find("td")
			if l := assemble.CellText(tds.First()); l == "Avg" || l == "Average" {
				cells = tds
				return false
			}
			return true
		})
		if cells == nil {
			cells = body.First().Find("td")
		}
		if cells.Length() < 2 {
			return
		}

		rows = append(rows, cellRow(curKey, cells, cur+1))
		if next >= 0 {
			rows = append(rows, cellRow(nextKey, cells, next+1))
		}
	})

	labels := make(map[string]string, len(ForecastKeys))
	for _, k := range ForecastKeys {
		labels[k] = k
	}
	return assemble.FromRows(ticker, industry, types.CategoryForecast, rows, labels)
}

func cellRow(key string, cells *goquery.Selection, i int) assemble.Row {
	if i >= cells.Length() {
		return assemble.Row{Label: key}
	}
	c := cells.Eq(i)
	title, ok := c.Attr("title")
	return assemble.Row{Label: key, Text: assemble.CellText(c), Title: strings.TrimSpace(title), HasTitle: ok}
}

// yearColumns finds the columns for year and year+1; -1 means not found.
func yearColumns(headers []string, year int) (cur, next int) {
	cur, next = -1, -1
	ys, ns := strconv.Itoa(year), strconv.Itoa(year+1)
	for i, h := range headers {
		if strings.Contains(h, ys) {
			cur = i
		}
		if strings.Contains(h, ns) {
			next = i
		}
	}
	if cur >= 0 {
		return cur, next
	}
	first, err := strconv.Atoi(strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, headers[0]))
	if err == nil && first >= year && first <= year+2 {
		cur = 0
		next = -1
		if len(headers) > 1 {
			next = 1
		}
	}
	return cur, next
}

func forecastTableKeys(kind string) (cur, next string) {
	growth := strings.Contains(kind, "Growth")
	switch {
	case strings.Contains(kind, "EPS Growth"):
		return types.KeyEPSGrowthCurrentYear, types.KeyEPSGrowthNextYear
	case strings.Contains(kind, "EPS") && !growth:
		return types.KeyEPSCurrentYear, types.KeyEPSNextYear
	case strings.Contains(kind, "Revenue Growth"):
		return types.KeyRevenueGrowthCurrentYear, types.KeyRevenueGrowthNextYear
	case strings.Contains(kind, "Revenue") && !growth:
		return types.KeyRevenueCurrentYear, types.KeyRevenueNextYear
	}
	return "", ""
}
