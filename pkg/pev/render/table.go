package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/yankesswang/PE-valuation/pkg/pev/columns"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

const defaultMaxColWidth = 40

type TableRenderer struct{}

func NewTableRenderer() *TableRenderer { return &TableRenderer{} }

func (r *TableRenderer) Render(w io.Writer, reports []types.Report, opts RenderOptions) error {
	cols := columns.Compute(opts.Columns)
	multi := len(reports) > 1
	for ri, rep := range reports {
		// Print industry name as a standalone line spanning full width
		if multi && strings.TrimSpace(rep.Industry) != "" {
			title := strings.ToUpper(rep.Industry)
			if opts.Color {
				title = text.Bold.Sprint(title)
			}
			if _, err := fmt.Fprintln(w, title); err != nil {
				return err
			}
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		if opts.Color {
			tw.SetStyle(table.StyleColoredDark)
		} else {
			tw.SetStyle(table.StyleDefault)
		}
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateRows = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateHeader = opts.Color

		hdr := make(table.Row, len(cols))
		for i, c := range cols {
			hdr[i] = columns.Header(c, opts.FiscalYear)
		}
		tw.AppendHeader(hdr)

		// wrap text to MaxColWidth, no truncation
		maxWidth := opts.MaxColWidth
		if maxWidth <= 0 {
			maxWidth = defaultMaxColWidth
		}
		cfgs := make([]table.ColumnConfig, 0, len(cols))
		for i, c := range cols {
			cfg := table.ColumnConfig{Number: i + 1, WidthMax: maxWidth}
			if def, ok := columns.GetDef(c); ok && def.Numeric {
				cfg.Align = text.AlignRight
				cfg.AlignHeader = text.AlignRight
			}
			cfgs = append(cfgs, cfg)
		}
		if len(cfgs) > 0 {
			tw.SetColumnConfigs(cfgs)
		}

		for _, rec := range rep.Records {
			row := make(table.Row, len(cols))
			for i, c := range cols {
				v := columns.RenderValue(c, rec)
				if opts.Color {
					v = colorize(c, rec, v)
				}
				row[i] = v
			}
			tw.AppendRow(row)
		}

		tw.Render()
		if ri < len(reports)-1 {
			// blank line between tables
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// colorize paints verdict and gap cells: red when the price is above the
// fair value, green when below.
func colorize(col string, rec types.ValuationRecord, v string) string {
	var verdict types.Verdict
	switch col {
	case "verdict_cy", "gap_cy":
		verdict = rec.VerdictCurrent
	case "verdict_ny", "gap_ny":
		verdict = rec.VerdictNext
	default:
		return v
	}
	switch verdict {
	case types.Overvalued:
		return text.Colors{text.FgRed}.Sprint(v)
	case types.Undervalued:
		return text.Colors{text.FgGreen}.Sprint(v)
	}
	return text.Colors{text.Faint}.Sprint(v)
}
