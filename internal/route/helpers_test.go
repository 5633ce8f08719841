package route

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/testutil"
	"github.com/roach88/gridroute/internal/transport"
)

// allOptions lists every communication and packing combination.
var allOptions = []Options{
	OptAsync | OptPackXP,
	OptAsync | OptPackPET,
	OptAsync | OptNoPack,
	OptAsync | OptVector,
	OptSync | OptPackXP,
	OptSync | OptPackPET,
	OptSync | OptNoPack,
	OptSync | OptVector,
}

// wrapIndex folds a global index tuple into the domain along every axis.
func wrapIndex(g, counts []int) []int {
	out := make([]int, len(g))
	for i, v := range g {
		n := counts[i]
		out[i] = ((v % n) + n) % n
	}
	return out
}

// cellValue is the value every test stores for a global cell.
func cellValue(g, counts []int) float64 {
	return float64(ir.Ravel(wrapIndex(g, counts), counts) + 1)
}

// fillLocal allocates pet's local piece of d and sets exclusive cells to
// cellValue and every other cell to fill.
func fillLocal(t testing.TB, d *ir.Decomposition, pet int, fill float64) []float64 {
	t.Helper()
	a, err := d.Array(pet, ir.KindR8)
	require.NoError(t, err)
	out := make([]float64, a.ElementCount())
	ex := d.Exclusive(pet)
	d.Total(pet).Walk(nil, func(g []int) {
		off, ok := a.Locate(g)
		require.True(t, ok)
		if ex.Contains(g) {
			out[off] = cellValue(g, d.GlobalCount)
		} else {
			out[off] = fill
		}
	})
	return out
}

// valueAt returns the local value at global index g.
func valueAt(t testing.TB, d *ir.Decomposition, pet int, data []float64, g []int) float64 {
	t.Helper()
	a, err := d.Array(pet, ir.KindR8)
	require.NoError(t, err)
	off, ok := a.Locate(g)
	require.True(t, ok, "pet %d does not hold %v", pet, g)
	return data[off]
}

// bindAll precomputes a route for every PET without running it, which is
// possible because binding never communicates.
func bindAll(t testing.TB, size int, bind func(r *Route) error) ([]*Route, []error) {
	t.Helper()
	mesh := testutil.NewMeshFor(t, size)
	routes := make([]*Route, size)
	errs := make([]error, size)
	for pet := 0; pet < size; pet++ {
		routes[pet] = New(mesh.Endpoint(pet), WithIDGenerator(testutil.NewSequentialIDs("pet"+itoa(pet))))
		errs[pet] = bind(routes[pet])
	}
	return routes, errs
}

func requireAll(t testing.TB, errs []error) {
	t.Helper()
	for pet, err := range errs {
		require.NoError(t, err, "pet %d", pet)
	}
}

// runPETs is testutil.RunPETs with a route per PET already constructed.
func runPETs(t testing.TB, size int, opts Options, fn func(ctx context.Context, r *Route) error) []error {
	t.Helper()
	return testutil.RunPETs(t, size, func(ctx context.Context, tr transport.Transport) error {
		r := New(tr, WithOptions(opts))
		return fn(ctx, r)
	})
}
