package assemble

import (
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"github.com/yankesswang/PE-valuation/pkg/pev/normalize"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// Reducer folds the normalized elements of an array leaf into one value.
type Reducer func(vals []types.Value) types.Value

// Path addresses a leaf inside a decoded document by object keys.
type Path struct {
	Keys []string
	// Reduce is required for array leaves; without it an array resolves to nil.
	Reduce Reducer
}

// P builds a Path from keys.
func P(keys ...string) Path { return Path{Keys: keys} }

// With returns a copy of p that reduces an array leaf with r.
func (p Path) With(r Reducer) Path {
	p.Reduce = r
	return p
}

// Resolve walks doc along the path and normalizes the leaf.
func (p Path) Resolve(doc any) types.Value {
	cur := doc
	for _, k := range p.Keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[k]; !ok {
			return nil
		}
	}
	arr, ok := cur.([]any)
	if !ok {
		return normalize.FromAny(cur)
	}
	if p.Reduce == nil {
		return nil
	}
	vals := make([]types.Value, len(arr))
	for i, e := range arr {
		vals[i] = normalize.FromAny(e)
	}
	return p.Reduce(vals)
}

// MeanOfFirst averages the non-nil values among the first n elements,
// rounded to two decimals. All-nil input yields nil.
func MeanOfFirst(n int) Reducer {
	return func(vals []types.Value) types.Value {
		if len(vals) > n {
			vals = vals[:n]
		}
		xs := make([]float64, 0, len(vals))
		for _, v := range vals {
			if v != nil {
				xs = append(xs, *v)
			}
		}
		if len(xs) == 0 {
			return nil
		}
		return types.Float(scalar.RoundEven(stat.Mean(xs, nil), 2))
	}
}
