package columns

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yankesswang/PE-valuation/pkg/pev/types"
)

func TestCompute(t *testing.T) {
	assert.Equal(t, Sets[DefaultSet], Compute(nil))
	assert.Equal(t, []string{"ticker", "price", "gap_cy"}, Compute([]string{"ticker", " price", "ticker", "", "gap_cy"}))
}

func TestExpandSets(t *testing.T) {
	cols, err := ExpandSets([]string{"verdicts", "valuation"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ticker", "verdict_cy", "gap_cy", "verdict_ny", "gap_ny", "price", "est_pe", "central_pe", "cfv_cy", "cfv_ny"}, cols)

	_, err = ExpandSets([]string{"nope"})
	var use *UnknownSetError
	require.True(t, errors.As(err, &use))
	assert.Equal(t, "nope", use.Name)
	assert.Equal(t, []string{"extras", "growth", "inputs", "valuation", "verdicts"}, use.Available)
}

func TestSetsOnlyReferenceKnownColumns(t *testing.T) {
	for name, cols := range Sets {
		assert.Empty(t, Unknown(cols), "set %s", name)
	}
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "TICKER", Header("ticker", 2026))
	assert.Equal(t, "EPS 2026", Header("eps_cy", 2026))
	assert.Equal(t, "EPS 2027", Header("eps_ny", 2026))
	assert.Equal(t, "MEDIAN FAIR 2027", Header("cfv_ny", 2026))
	assert.Equal(t, "WHATEVER", Header("whatever", 2026))
}

func TestRenderValue(t *testing.T) {
	r := types.ValuationRecord{
		Ticker:                  "NVDA",
		FiscalYear:              2026,
		Growth:                  32,
		EstimatedMultiple:       64,
		EPSCurrentYear:          types.Float(4.5),
		CentralMultiple:         types.Float(51.24),
		CentralFairValueCurrent: 231,
		CurrentPrice:            types.Float(1234.5),
		VerdictCurrent:          types.Overvalued,
		GapCurrent:              types.Float(-434),
		MarketCap:               types.Float(2_512_345_000_000),
		EPSGrowth5Y:             types.Float(32.5),
	}
	tests := []struct {
		col  string
		want string
	}{
		{"ticker", "NVDA"},
		{"fy", "2026"},
		{"growth", "32.00"},
		{"est_pe", "64.00"},
		{"eps_cy", "4.50"},
		{"eps_ny", ""},
		{"central_pe", "51.2"},
		{"cfv_cy", "231"},
		{"price", "1,234.50"},
		{"verdict_cy", "overvalued"},
		{"gap_cy", "-434%"},
		{"gap_ny", "not available"},
		{"marketcap", "2,512.35B"},
		{"eps_growth_5y", "32.5%"},
		{"past_eps_growth", ""},
		{"unknown", ""},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderValue(tt.col, r))
		})
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0", FormatFloat(0, 0))
	assert.Equal(t, "999", FormatFloat(999, 0))
	assert.Equal(t, "1,000", FormatFloat(1000, 0))
	assert.Equal(t, "-1,234,567.89", FormatFloat(-1234567.891, 2))
	assert.Equal(t, "-100", FormatFloat(-100, 0))
}

func TestRegistryFieldsMatchRecordJSON(t *testing.T) {
	tags := map[string]bool{}
	rt := reflect.TypeOf(types.ValuationRecord{})
	for i := 0; i < rt.NumField(); i++ {
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("json"), ",")
		tags[name] = true
	}
	for key, def := range Registry {
		assert.True(t, tags[def.Field], "column %s field %q", key, def.Field)
	}
}
