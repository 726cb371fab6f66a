package columns

import (
	"sort"
	"strings"
)

// DefaultSet is used when no columns or sets are requested.
const DefaultSet = "valuation"

// Sets defines named column groups that expand into lists of columns.
var Sets = map[string][]string{
	"valuation": {"ticker", "price", "est_pe", "central_pe", "cfv_cy", "verdict_cy", "gap_cy", "cfv_ny", "verdict_ny", "gap_ny"},
	"inputs":    {"ticker", "eps_cy", "eps_ny", "growth", "eps_growth_5y", "past_eps_growth"},
	"growth":    {"ticker", "growth", "est_pe", "fv_cy", "fv_ny"},
	"verdicts":  {"ticker", "verdict_cy", "gap_cy", "verdict_ny", "gap_ny"},
	"extras":    {"marketcap", "rev_growth_5y", "eps_growth_5y", "past_eps_growth"},
}

// ExpandSets returns the union of columns for the given set names.
// It preserves the order of the sets and the order of columns within each set,
// and de-duplicates columns while keeping the first occurrence.
func ExpandSets(setNames []string) ([]string, error) {
	out := make([]string, 0, 16)
	seen := map[string]struct{}{}
	for _, name := range setNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cols, ok := Sets[name]
		if !ok {
			return nil, &UnknownSetError{Name: name, Available: availableSets()}
		}
		for _, c := range cols {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}

// UnknownSetError reports an unknown column set name.
type UnknownSetError struct {
	Name      string
	Available []string
}

func (e *UnknownSetError) Error() string {
	return "unknown column set: " + e.Name + "; available: " + strings.Join(e.Available, ", ")
}

func availableSets() []string {
	keys := make([]string, 0, len(Sets))
	for k := range Sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
