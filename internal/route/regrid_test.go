package route

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/weights"
)

func regridLayouts(t *testing.T) (dst, src *ir.Decomposition) {
	t.Helper()
	src, err := ir.BlockDecompose("fine", []int{4}, []int{2}, nil, nil)
	require.NoError(t, err)
	dst, err = ir.BlockDecompose("coarse", []int{2}, []int{2}, nil, nil)
	require.NoError(t, err)
	return dst, src
}

func TestRegridWeightedSum(t *testing.T) {
	dst, src := regridLayouts(t)
	w := &weights.Table{Rows: []weights.Row{
		{Dst: 0, Terms: []weights.Term{{Src: 3, Factor: 0.75}, {Src: 2, Factor: 0.25}}},
	}}
	srcVals := [][]float64{{1.5, 2.5}, {10.25, 20.5}}

	for _, opts := range []Options{OptDefault, OptSync | OptPackPET, OptAsync | OptVector, OptSync | OptNoPack} {
		t.Run(opts.String(), func(t *testing.T) {
			out := [][]float64{{-1}, {7}}
			unmapped := make([][]int, 2)
			errs := runPETs(t, 2, opts, func(ctx context.Context, r *Route) error {
				if err := r.PrecomputeRegrid(ir.KindR8, dst, src, w); err != nil {
					return err
				}
				me := r.PET()
				unmapped[me] = r.Unmapped()
				in := append([]float64(nil), srcVals[me]...)
				buf := ir.BufferOf(out[me], ir.Borrowed)
				if err := r.Run(ctx, ir.BufferOf(in, ir.Borrowed), buf, ir.KindR8); err != nil {
					return err
				}
				// A second run must not accumulate onto the first.
				return r.Run(ctx, ir.BufferOf(in, ir.Borrowed), buf, ir.KindR8)
			})
			requireAll(t, errs)

			assert.Equal(t, 0.25*10.25+0.75*20.5, out[0][0])
			assert.Equal(t, 7.0, out[1][0], "unmapped cells keep their value")
			assert.Empty(t, unmapped[0])
			assert.Equal(t, []int{1}, unmapped[1])
		})
	}
}

func TestRegridFloat32(t *testing.T) {
	dst, src := regridLayouts(t)
	w := &weights.Table{Rows: []weights.Row{
		{Dst: 0, Terms: []weights.Term{{Src: 0, Factor: 0.5}, {Src: 3, Factor: 0.5}}},
		{Dst: 1, Terms: []weights.Term{{Src: 1, Factor: 1}}},
	}}
	in := [][]float32{{2, 4}, {6, 8}}
	out := [][]float32{{0}, {0}}
	errs := runPETs(t, 2, OptDefault, func(ctx context.Context, r *Route) error {
		if err := r.PrecomputeRegrid(ir.KindR4, dst, src, w); err != nil {
			return err
		}
		me := r.PET()
		return r.Run(ctx, ir.BufferOf(in[me], ir.Borrowed), ir.BufferOf(out[me], ir.Borrowed), ir.KindR4)
	})
	requireAll(t, errs)
	assert.Equal(t, [][]float32{{5}, {4}}, out)
}

func TestRegridRejectsIntegerKinds(t *testing.T) {
	dst, src := regridLayouts(t)
	w := &weights.Table{}
	_, errs := bindAll(t, 2, func(r *Route) error { return r.PrecomputeRegrid(ir.KindI4, dst, src, w) })
	for _, err := range errs {
		assert.Equal(t, CodeUnsupportedKind, CodeOf(err))
	}
}

func TestRegridErrors(t *testing.T) {
	dst, src := regridLayouts(t)
	gap, err := ir.BlockDecompose("gap", []int{4}, []int{2}, nil, nil)
	require.NoError(t, err)
	gap.Shards[1] = nil

	tests := []struct {
		name string
		src  *ir.Decomposition
		w    *weights.Table
		code ErrorCode
	}{
		{"source index out of range", src, &weights.Table{Rows: []weights.Row{{Dst: 0, Terms: []weights.Term{{Src: 4, Factor: 1}}}}}, CodeInvalidLayout},
		{"destination index out of range", src, &weights.Table{Rows: []weights.Row{{Dst: 2, Terms: []weights.Term{{Src: 0, Factor: 1}}}}}, CodeInvalidLayout},
		{"source cell owned by no pet", gap, &weights.Table{Rows: []weights.Row{{Dst: 0, Terms: []weights.Term{{Src: 3, Factor: 1}}}}}, CodeCoverage},
		{"missing table", src, nil, CodeInvalidLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes, errs := bindAll(t, 2, func(r *Route) error { return r.PrecomputeRegrid(ir.KindR8, dst, tt.src, tt.w) })
			for pet, err := range errs {
				require.Error(t, err, "pet %d", pet)
				assert.Equal(t, tt.code, CodeOf(err), "%v", err)
				assert.Equal(t, Unbound, routes[pet].State())
			}
		})
	}
}

func TestRegridKeyDependsOnWeights(t *testing.T) {
	dst, src := regridLayouts(t)
	a := &weights.Table{Rows: []weights.Row{{Dst: 0, Terms: []weights.Term{{Src: 0, Factor: 0.5}}}}}
	b := &weights.Table{Rows: []weights.Row{{Dst: 0, Terms: []weights.Term{{Src: 0, Factor: 0.25}}}}}
	ka, err := RegridKey(ir.KindR8, dst, src, a)
	require.NoError(t, err)
	kb, err := RegridKey(ir.KindR8, dst, src, b)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}
