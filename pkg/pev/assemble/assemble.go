// Package assemble locates requested metrics in a source (table rows or a
// decoded blob) and stores their normalized values in a MetricRecord.
package assemble

import (
	"sort"

	"github.com/yankesswang/PE-valuation/pkg/pev/normalize"
	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// FromRows matches each row label against labels (label -> metric key) and
// normalizes the value of the first row that yields a number for a key.
// Unmapped labels are ignored. Every key named in labels is present in the
// result, nil when no row provided it.
func FromRows(ticker, industry string, cat types.Category, rows []Row, labels map[string]string) types.MetricRecord {
	rec := newRecord(ticker, industry, cat, len(labels))
	for _, key := range labels {
		rec.Values[key] = nil
	}
	for _, r := range rows {
		key, ok := labels[r.Label]
		if !ok || rec.Values[key] != nil {
			continue
		}
		rec.Values[key] = normalize.Normalize(r.Raw())
	}
	return rec
}

// FromJSON resolves a fixed path per metric key inside a decoded document.
// Keys whose path is missing or does not normalize are nil.
func FromJSON(ticker, industry string, cat types.Category, doc any, paths map[string]Path) types.MetricRecord {
	rec := newRecord(ticker, industry, cat, len(paths))
	for key, p := range paths {
		rec.Values[key] = p.Resolve(doc)
	}
	return rec
}

// Empty returns a record with every key set to nil. Collectors use it when a
// whole category failed so downstream code still sees the full key set.
func Empty(ticker, industry string, cat types.Category, keys []string) types.MetricRecord {
	rec := newRecord(ticker, industry, cat, len(keys))
	for _, k := range keys {
		rec.Values[k] = nil
	}
	return rec
}

// Merge combines records in order. A later record overwrites a key only
// with a number; nil never replaces a value set earlier.
func Merge(records ...types.MetricRecord) map[string]types.Value {
	out := map[string]types.Value{}
	for _, r := range records {
		for k, v := range r.Values {
			if v != nil {
				out[k] = v
				continue
			}
			if _, ok := out[k]; !ok {
				out[k] = nil
			}
		}
	}
	return out
}

// LabelKeys lists the distinct metric keys of a label mapping, sorted.
func LabelKeys(labels map[string]string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(labels))
	for _, k := range labels {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PathKeys lists the metric keys of a path mapping, sorted.
func PathKeys(paths map[string]Path) []string {
	out := make([]string, 0, len(paths))
	for k := range paths {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newRecord(ticker, industry string, cat types.Category, n int) types.MetricRecord {
	return types.MetricRecord{
		Ticker:   ticker,
		Industry: industry,
		Category: cat,
		Values:   make(map[string]types.Value, n),
	}
}
