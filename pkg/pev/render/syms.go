package render

import (
	"io"
	"strings"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// symsRenderer prints the distinct tickers of all reports on one
// comma-separated line, in report order. A ticker listed under several
// industries appears once.
type symsRenderer struct{}

func NewSymsRenderer() Renderer {
	return symsRenderer{}
}

func (symsRenderer) Render(w io.Writer, reports []types.Report, _ RenderOptions) error {
	var b strings.Builder
	seen := map[string]bool{}
	for _, rep := range reports {
		for _, rec := range rep.Records {
			sym := strings.TrimSpace(rec.Ticker)
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(sym)
		}
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
