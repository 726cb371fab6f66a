// Package dispersion derives a robust central P/E multiple from a sample of
// historical prints.
package dispersion

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// DefaultMaxCount bounds the estimate to the most recent prints.
const DefaultMaxCount = 20

// EstimateCentral drops zero prints, keeps the first maxCount of the rest,
// removes values outside the Tukey fences [Q1-1.5*IQR, Q3+1.5*IQR] and
// returns the median of what remains, rounded to one decimal.
//
// An empty sample yields nil. When every value lies outside the fences the
// result is 0, not nil.
func EstimateCentral(sample []float64, maxCount int) types.Value {
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}
	kept := make([]float64, 0, min(len(sample), maxCount))
	for _, v := range sample {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		kept = append(kept, v)
		if len(kept) == maxCount {
			break
		}
	}
	if len(kept) == 0 {
		return nil
	}

	sort.Float64s(kept)
	q1, q3 := Quartiles(kept)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	inside := kept[:0:0]
	for _, v := range kept {
		if v >= lo && v <= hi {
			inside = append(inside, v)
		}
	}
	if len(inside) == 0 {
		return types.Float(0)
	}
	return types.Float(scalar.RoundEven(Percentile(inside, 0.5), 1))
}

// Quartiles returns Q1 and Q3 of an ascending sample.
func Quartiles(sorted []float64) (q1, q3 float64) {
	return Percentile(sorted, 0.25), Percentile(sorted, 0.75)
}

// Percentile interpolates linearly between the closest ranks of an
// ascending sample, placing p at position p*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
