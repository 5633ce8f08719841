package route

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridroute/internal/ir"
)

func TestHaloFourPETLine(t *testing.T) {
	d, err := ir.BlockDecompose("line", []int{16}, []int{4}, []int{1}, nil)
	require.NoError(t, err)

	routes, errs := bindAll(t, 4, func(r *Route) error { return r.PrecomputeHalo(ir.KindR8, d) })
	requireAll(t, errs)

	recv := routes[1].RecvTable().Entries()
	require.Len(t, recv, 2)
	assert.Equal(t, 0, recv[0].Peer)
	assert.Equal(t, ir.Region{{3, 3}}, recv[0].Region)
	assert.Equal(t, 2, recv[1].Peer)
	assert.Equal(t, ir.Region{{8, 8}}, recv[1].Region)

	for _, pet := range []int{0, 3} {
		recv := routes[pet].RecvTable().Entries()
		require.Len(t, recv, 1, "pet %d has one neighbour without wraparound", pet)
	}
	assert.Equal(t, 1, routes[0].RecvTable().Entries()[0].Peer)
	assert.Equal(t, ir.Region{{4, 4}}, routes[0].RecvTable().Entries()[0].Region)
	assert.Equal(t, 2, routes[3].RecvTable().Entries()[0].Peer)
	assert.Equal(t, ir.Region{{11, 11}}, routes[3].RecvTable().Entries()[0].Region)

	for pet, r := range routes {
		require.NoError(t, r.Validate(), "pet %d", pet)
		assert.Equal(t, Bound, r.State())
		assert.Equal(t, r.RecvTable().Items(), r.RecvItems())
	}
}

func TestHaloPartitionProperty(t *testing.T) {
	tests := []struct {
		name     string
		counts   []int
		grid     []int
		halo     []int
		periodic []bool
	}{
		{"rank1", []int{8}, []int{3}, []int{2}, nil},
		{"rank1 periodic", []int{8}, []int{3}, []int{2}, []bool{true}},
		{"rank1 periodic single pet", []int{5}, []int{1}, []int{1}, []bool{true}},
		{"rank2", []int{6, 5}, []int{2, 2}, []int{1, 1}, nil},
		{"rank2 periodic", []int{6, 5}, []int{2, 2}, []int{1, 2}, []bool{true, true}},
		{"rank3 mixed", []int{4, 4, 3}, []int{2, 1, 3}, []int{1, 1, 1}, []bool{true, false, true}},
		{"rank4", []int{3, 3, 2, 2}, []int{1, 3, 1, 2}, []int{1, 1, 1, 1}, nil},
		{"rank5", []int{2, 2, 2, 2, 3}, []int{2, 1, 1, 1, 1}, []int{1, 0, 1, 0, 1}, []bool{false, false, true, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ir.BlockDecompose(tt.name, tt.counts, tt.grid, tt.halo, tt.periodic)
			require.NoError(t, err)

			routes, errs := bindAll(t, d.PETs(), func(r *Route) error { return r.PrecomputeHalo(ir.KindR8, d) })
			requireAll(t, errs)

			for pet, r := range routes {
				got := make(map[string]int)
				for _, e := range r.RecvTable().Entries() {
					e.Region.Walk(nil, func(g []int) { got[fmt.Sprint(g)]++ })
				}
				want := make(map[string]int)
				ex := d.Exclusive(pet)
				d.Total(pet).Walk(nil, func(g []int) {
					if !ex.Contains(g) {
						want[fmt.Sprint(g)] = 1
					}
				})
				assert.Equal(t, want, got, "pet %d: recv regions must partition total minus exclusive", pet)
			}
		})
	}
}

func TestHaloRunAllOptions(t *testing.T) {
	d, err := ir.BlockDecompose("plane", []int{6, 5}, []int{2, 2}, []int{1, 1}, []bool{true, false})
	require.NoError(t, err)

	for _, opts := range allOptions {
		t.Run(opts.String(), func(t *testing.T) {
			data := make([][]float64, d.PETs())
			for pet := range data {
				data[pet] = fillLocal(t, d, pet, -1)
			}
			errs := runPETs(t, d.PETs(), opts, func(ctx context.Context, r *Route) error {
				if err := r.PrecomputeHalo(ir.KindR8, d); err != nil {
					return err
				}
				buf := ir.BufferOf(data[r.PET()], ir.Borrowed)
				return r.Run(ctx, buf, buf, ir.KindR8)
			})
			requireAll(t, errs)

			for pet := range data {
				d.Total(pet).Walk(nil, func(g []int) {
					assert.Equal(t, cellValue(g, d.GlobalCount), valueAt(t, d, pet, data[pet], g), "pet %d cell %v", pet, g)
				})
			}
		})
	}
}

func TestHaloRunIsIdempotent(t *testing.T) {
	d, err := ir.BlockDecompose("ring", []int{12}, []int{3}, []int{2}, []bool{true})
	require.NoError(t, err)

	first := make([][]float64, 3)
	second := make([][]float64, 3)
	for pet := range first {
		first[pet] = fillLocal(t, d, pet, 0)
	}
	errs := runPETs(t, 3, OptDefault, func(ctx context.Context, r *Route) error {
		if err := r.PrecomputeHalo(ir.KindR8, d); err != nil {
			return err
		}
		buf := ir.BufferOf(first[r.PET()], ir.Borrowed)
		if err := r.Run(ctx, buf, buf, ir.KindR8); err != nil {
			return err
		}
		second[r.PET()] = append([]float64(nil), first[r.PET()]...)
		if err := r.Run(ctx, buf, buf, ir.KindR8); err != nil {
			return err
		}
		if s := r.Stats(); s.Runs != 2 || s.Failures != 0 {
			return fmt.Errorf("stats %+v", s)
		}
		return nil
	})
	requireAll(t, errs)
	assert.Equal(t, second, first)
}

func TestHaloSelfWrapIsLocalCopy(t *testing.T) {
	d, err := ir.BlockDecompose("self", []int{4}, []int{1}, []int{1}, []bool{true})
	require.NoError(t, err)

	data := fillLocal(t, d, 0, -1)
	errs := runPETs(t, 1, OptDefault, func(ctx context.Context, r *Route) error {
		if err := r.PrecomputeHalo(ir.KindR8, d); err != nil {
			return err
		}
		sent, recvd := r.Schedule().Packets()
		if len(r.Schedule().Local) == 0 || sent+recvd != 0 {
			return fmt.Errorf("single pet halo must only copy locally:\n%s", r)
		}
		buf := ir.BufferOf(data, ir.Borrowed)
		return r.Run(ctx, buf, buf, ir.KindR8)
	})
	requireAll(t, errs)
	assert.Equal(t, []float64{4, 1, 2, 3, 4, 1}, data)
}

func TestHaloOverlappingExclusive(t *testing.T) {
	d, err := ir.BlockDecompose("bad", []int{8}, []int{2}, []int{1}, nil)
	require.NoError(t, err)
	// PET 1 claims global 3..6, overlapping PET 0's 0..3.
	d.Shards[1][0].GlobalOffset--

	routes, errs := bindAll(t, 2, func(r *Route) error { return r.PrecomputeHalo(ir.KindR8, d) })
	for pet, err := range errs {
		require.Error(t, err, "pet %d", pet)
		assert.True(t, IsConfigError(err), "pet %d: %v", pet, err)
		assert.Equal(t, Unbound, routes[pet].State())
		assert.Nil(t, routes[pet].SendTable())
	}
}

func TestHaloUncoveredCells(t *testing.T) {
	d, err := ir.BlockDecompose("gap", []int{8}, []int{2}, []int{1}, nil)
	require.NoError(t, err)
	// PET 1 owns nothing, so PET 0's upper halo cell has no source.
	d.Shards[1] = nil

	_, errs := bindAll(t, 2, func(r *Route) error { return r.PrecomputeHalo(ir.KindR8, d) })
	for pet, err := range errs {
		require.Error(t, err, "pet %d", pet)
		assert.True(t, IsCoverageError(err), "pet %d: %v", pet, err)
	}
}
