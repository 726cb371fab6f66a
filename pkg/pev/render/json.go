package render

import (
	"encoding/json"
	"io"

	"github.com/yankesswang/PE-valuation/pkg/pev/columns"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// jsonModel is the output shape for JSONRenderer. Absent values encode as
// null. Without explicit columns Records holds whole ValuationRecords;
// with them, each record is an object keyed by column.
type jsonModel struct {
	Industry   string   `json:"industry"`
	FiscalYear int      `json:"fiscal_year"`
	Columns    []string `json:"columns,omitempty"`
	Records    any      `json:"records"`
}

type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer { return &JSONRenderer{} }

func (r *JSONRenderer) Render(w io.Writer, reports []types.Report, opts RenderOptions) error {
	var cols []string
	if len(opts.Columns) > 0 {
		cols = columns.Compute(opts.Columns)
	}
	out := make([]jsonModel, 0, len(reports))
	for _, rep := range reports {
		m := jsonModel{Industry: rep.Industry, FiscalYear: opts.FiscalYear, Columns: cols}
		if cols == nil {
			recs := rep.Records
			if recs == nil {
				recs = []types.ValuationRecord{}
			}
			m.Records = recs
		} else {
			projected, err := project(rep.Records, cols)
			if err != nil {
				return err
			}
			m.Records = projected
		}
		out = append(out, m)
	}
	enc := json.NewEncoder(w)
	if opts.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

// project keeps the record fields behind cols, keyed by column name.
func project(recs []types.ValuationRecord, cols []string) ([]map[string]json.RawMessage, error) {
	out := make([]map[string]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
		row := make(map[string]json.RawMessage, len(cols))
		for _, c := range cols {
			def, ok := columns.GetDef(c)
			if !ok {
				continue
			}
			row[c] = fields[def.Field]
		}
		out = append(out, row)
	}
	return out, nil
}
