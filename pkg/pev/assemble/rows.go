package assemble

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Row is one label/value pair read from a source.
type Row struct {
	Label string
	Text  string
	// Title holds the full-precision value some pages put in a title
	// attribute while the visible text is truncated.
	Title    string
	HasTitle bool
}

// Raw returns the title value when present, else the visible text.
func (r Row) Raw() string {
	if r.HasTitle && strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.Text
}

// RowsFromTable reads every tr under sel. The first cell is the label and
// the last cell the value. Rows with fewer than two cells are skipped.
func RowsFromTable(sel *goquery.Selection) []Row {
	var rows []Row
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		val := cells.Last()
		title, ok := val.Attr("title")
		rows = append(rows, Row{
			Label:    CellText(cells.First()),
			Text:     CellText(val),
			Title:    strings.TrimSpace(title),
			HasTitle: ok,
		})
	})
	return rows
}

// CellText returns the text of a cell with runs of whitespace collapsed.
func CellText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// RowsFromEntries walks a decoded document and returns a row for every
// object that has an "id" and a "value" member, labelled by the id.
func RowsFromEntries(doc any) []Row {
	var rows []Row
	var walk func(v any)
	walk = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			if id, ok := n["id"].(string); ok {
				if val, ok := n["value"]; ok {
					rows = append(rows, Row{Label: id, Text: entryText(val)})
				}
			}
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(n[k])
			}
		case []any:
			for _, e := range n {
				walk(e)
			}
		}
	}
	walk(doc)
	return rows
}

func entryText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
