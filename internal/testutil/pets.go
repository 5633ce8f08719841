package testutil

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/gridroute/internal/transport"
)

// PETTimeout bounds every RunPETs call so a schedule bug hangs one test,
// not the whole suite.
const PETTimeout = 10 * time.Second

// RunPETs runs fn once per PET, each in its own goroutine over a shared
// in-process mesh, and returns the per-PET errors (nil entries for
// success). The mesh is closed when every PET has returned.
func RunPETs(t testing.TB, size int, fn func(ctx context.Context, tr transport.Transport) error) []error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), PETTimeout)
	defer cancel()

	mesh := NewMeshFor(t, size)
	errs := make([]error, size)
	var g errgroup.Group
	for pet := 0; pet < size; pet++ {
		g.Go(func() error {
			errs[pet] = fn(ctx, mesh.Endpoint(pet))
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// NewMeshFor creates a mesh that is closed when the test ends.
func NewMeshFor(t testing.TB, size int) *transport.Mesh {
	t.Helper()
	mesh := transport.NewMesh(size)
	t.Cleanup(mesh.Close)
	return mesh
}
