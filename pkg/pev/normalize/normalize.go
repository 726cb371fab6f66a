// Package normalize turns scraped text tokens into numbers.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

// magnitude maps a trailing suffix to its power of ten.
var magnitude = map[byte]int32{
	'K': 3,
	'M': 6,
	'B': 9,
	'T': 12,
}

// Normalize converts a raw token such as "$1,234.5", "12.3%" or "2.5B" into a
// number. Percentages stay in percentage points. Empty input, "n/a" and "-"
// yield nil, as does anything that does not parse.
func Normalize(raw string) types.Value {
	s := strings.TrimSpace(raw)
	if isMissing(s) {
		return nil
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if strings.HasSuffix(s, "%") {
		return parseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")))
	}
	if exp, ok := magnitude[s[len(s)-1]]; ok {
		return scale(strings.TrimSpace(s[:len(s)-1]), exp)
	}
	return parseFloat(s)
}

// FromAny normalizes a value decoded from JSON or YAML.
func FromAny(v any) types.Value {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return Normalize(t)
	case bool:
		return nil
	case float64:
		return finite(t)
	case json.Number, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, err := cast.ToFloat64E(t)
		if err != nil {
			return nil
		}
		return finite(f)
	default:
		return nil
	}
}

func isMissing(s string) bool {
	return s == "" || s == "-" || strings.EqualFold(s, "n/a")
}

// isHex reports a 0x prefix, which ParseFloat would accept as a hex float.
func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func parseFloat(s string) types.Value {
	if s == "" || isHex(s) {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

// scale multiplies the decimal prefix by 10^exp without binary rounding
// error, so "1.1B" is exactly 1100000000.
func scale(prefix string, exp int32) types.Value {
	if prefix == "" || isHex(prefix) {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(prefix, "+"))
	if err != nil {
		return nil
	}
	f, _ := d.Shift(exp).Float64()
	return finite(f)
}

func finite(f float64) types.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return types.Float(f)
}
