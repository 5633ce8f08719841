package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridroute/internal/weights"
)

func TestCompileWeights(t *testing.T) {
	v := cuecontext.New().CompileString(`
		weights: w: {
			rows: [{dst: 0, terms: [{src: 3, factor: 0.75}, {src: 2, factor: 0.25}]}]
			triples: [[1, 0, 1], [0, 1, 0.5]]
		}
	`)
	require.NoError(t, v.Err())

	tbl, err := CompileWeights(v.LookupPath(cue.ParsePath("weights.w")))
	require.NoError(t, err)
	assert.Equal(t, []weights.Row{
		{Dst: 0, Terms: []weights.Term{{Src: 1, Factor: 0.5}, {Src: 2, Factor: 0.25}, {Src: 3, Factor: 0.75}}},
		{Dst: 1, Terms: []weights.Term{{Src: 0, Factor: 1}}},
	}, tbl.Rows)
}

func TestCompileWeightsErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"empty", `weights: w: {}`, "rows"},
		{"fractional dst", `weights: w: rows: [{dst: 0.5, terms: []}]`, "dst"},
		{"missing terms", `weights: w: rows: [{dst: 0}]`, "terms"},
		{"string factor", `weights: w: rows: [{dst: 0, terms: [{src: 1, factor: "x"}]}]`, "factor"},
		{"short triple", `weights: w: triples: [[0, 1]]`, "triples"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())
			_, err := CompileWeights(v.LookupPath(cue.ParsePath("weights.w")))
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
