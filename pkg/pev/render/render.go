// Package render writes valuation reports as tables, JSON or symbol lists.
package render

import (
	"fmt"
	"io"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Renderer renders industry reports to an output writer.
type Renderer interface {
	Render(w io.Writer, reports []types.Report, opts RenderOptions) error
}

type RenderOptions struct {
	Columns     []string
	FiscalYear  int
	Color       bool
	PrettyJSON  bool
	MaxColWidth int
}

// ForFormat returns the renderer registered for an output format.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "table":
		return NewTableRenderer(), nil
	case "json":
		return NewJSONRenderer(), nil
	case "syms":
		return NewSymsRenderer(), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
