package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yankesswang/PE-valuation/pkg/pev/normalize"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// ErrNoPETable means the page has no P/E history table.
var ErrNoPETable = errors.New("pe ratio table not found")

// peColumn is the index of the P/E cell in each history row.
const peColumn = 3

// Macrotrends reads historical P/E prints from macrotrends.net.
type Macrotrends struct {
	Fetcher *Fetcher
	BaseURL string
}

// URL returns the P/E history page of ticker. slug is the company path
// segment; the lower-cased ticker is used when it is empty.
func (m *Macrotrends) URL(ticker, slug string) string {
	if slug == "" {
		slug = strings.ToLower(ticker)
	}
	return fmt.Sprintf("%s/stocks/charts/%s/%s/pe-ratio", strings.TrimRight(m.BaseURL, "/"), strings.ToUpper(ticker), slug)
}

// Sample fetches the P/E history of ticker, most recent first.
func (m *Macrotrends) Sample(ctx context.Context, ticker, slug string) (types.HistoricalSample, error) {
	doc, _, err := m.Fetcher.Page(ctx, m.URL(ticker, slug))
	if err != nil {
		return nil, err
	}
	return ParsePESample(doc)
}

// ParsePESample reads the fourth cell of every body row of the first
// table.table. Cells that do not normalize to a number are skipped.
func ParsePESample(doc *goquery.Document) (types.HistoricalSample, error) {
	table := doc.Find("table.table").First()
	if table.Length() == 0 {
		return nil, ErrNoPETable
	}
	var sample types.HistoricalSample
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() <= peColumn {
			return
		}
		if v := normalize.Normalize(cells.Eq(peColumn).Text()); v != nil {
			sample = append(sample, *v)
		}
	})
	return sample, nil
}
