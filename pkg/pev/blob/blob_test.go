package blob

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare keys and leading-dot decimals", in: `{foo: .5, bar: -.3}`, want: `{"foo": 0.5, "bar": -0.3}`},
		{name: "placeholder marker", in: `{eps:[PRO],growth:"[PRO]"}`, want: `{"eps":null,"growth":null}`},
		{name: "undefined", in: `{a:undefined,b:[1,undefined]}`, want: `{"a":null,"b":[1,null]}`},
		{name: "void 0", in: `{a:void 0, b: void   0}`, want: `{"a":null, "b": null}`},
		{name: "single quotes", in: `{name:'Apple',note:'say "hi"',it:'it\'s'}`, want: `{"name":"Apple","note":"say \"hi\"","it":"it's"}`},
		{name: "digit before dot untouched", in: `{a:10.5,b:1e-5,c:0.25}`, want: `{"a":10.5,"b":1e-5,"c":0.25}`},
		{name: "identifier values untouched", in: `{ok:true,no:false,none:null}`, want: `{"ok":true,"no":false,"none":null}`},
		{name: "quoted content copied verbatim", in: `{"t":"a,b: .5 undefined"}`, want: `{"t":"a,b: .5 undefined"}`},
		{name: "keys with whitespace", in: "{\n  id : 1,\n  $ref: 2\n}", want: "{\n  \"id\" : 1,\n  \"$ref\": 2\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestClean_ParsesToNumbers(t *testing.T) {
	var got map[string]float64
	require.NoError(t, json.Unmarshal([]byte(Clean("{foo: .5, bar: -.3}")), &got))
	assert.Equal(t, map[string]float64{"foo": 0.5, "bar": -0.3}, got)
}

func TestClean_IdempotentOnValidJSON(t *testing.T) {
	inputs := []string{
		`{"a":1,"b":[1.5,-0.25,"x"],"c":{"d":null,"e":true}}`,
		`[{"id":"marketcap","title":"Market Cap","value":"2.5T"}]`,
		`{"quote":"McDonald's \"Big\" Mac"}`,
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, in, once)
		assert.Equal(t, once, Clean(once))
	}
}

func TestExtract(t *testing.T) {
	page := `<script>const other = 1; const data = [{type:"data",data:{s:"a};b",n:{x:1}}}];
		window.x = {};</script>`
	lit, err := Extract(page, "const data = ")
	require.NoError(t, err)
	assert.Equal(t, `[{type:"data",data:{s:"a};b",n:{x:1}}}]`, lit)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract("<html></html>", "const data = ")
	assert.ErrorIs(t, err, ErrMarkerNotFound)

	_, err = Extract("const data = {a:{b:1}", "const data = ")
	assert.ErrorIs(t, err, ErrUnbalanced)
}

func TestDecoder_Decode(t *testing.T) {
	v, err := Decoder{}.Decode(`{annual:{epsThis:{last:6.12,growth:.5}},quarterly:{epsGrowth:[-.1,[PRO],undefined]}}`)
	require.NoError(t, err)

	m := v.(map[string]any)
	eps := m["annual"].(map[string]any)["epsThis"].(map[string]any)
	assert.Equal(t, 6.12, eps["last"])
	assert.Equal(t, 0.5, eps["growth"])
	assert.Equal(t, []any{-0.1, nil, nil}, m["quarterly"].(map[string]any)["epsGrowth"])
}

func TestDecoder_MalformedBlob(t *testing.T) {
	_, err := Decoder{}.Decode(`{a: 1,, b: }`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedBlob)

	var mbe *MalformedBlobError
	require.True(t, errors.As(err, &mbe))
	assert.NotEmpty(t, mbe.Error())
}

func TestDecoder_Lenient(t *testing.T) {
	raw := `{a: 1, b: [1, 2,], }`
	_, err := Decoder{}.Decode(raw)
	require.ErrorIs(t, err, ErrMalformedBlob)

	v, err := Decoder{Lenient: true}.Decode(raw)
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, 1.0, m["a"])
	assert.Equal(t, []any{1.0, 2.0}, m["b"])
}

func TestDecoder_DecodePage(t *testing.T) {
	page := `<script>const data = {stats:[{id:'beta',title:'Beta (5Y)',value:'1.21'}]};</script>`
	v, err := Decoder{}.DecodePage(page, "const data = ")
	require.NoError(t, err)
	stats := v.(map[string]any)["stats"].([]any)
	require.Len(t, stats, 1)
	assert.Equal(t, "1.21", stats[0].(map[string]any)["value"])

	_, err = Decoder{}.DecodePage("<p>nothing</p>", "const data = ")
	assert.ErrorIs(t, err, ErrMarkerNotFound)
}
