package harness

import (
	"fmt"
	"math"

	"github.com/roach88/gridroute/internal/ir"
)

// sentinel marks cells a transfer must leave alone.
const sentinel = -1

func newBuffer(kind ir.Kind, n int) (ir.Buffer, error) {
	switch kind {
	case ir.KindI4:
		return ir.BufferOf(make([]int32, n), ir.Owned), nil
	case ir.KindI8:
		return ir.BufferOf(make([]int64, n), ir.Owned), nil
	case ir.KindR4:
		return ir.BufferOf(make([]float32, n), ir.Owned), nil
	case ir.KindR8:
		return ir.BufferOf(make([]float64, n), ir.Owned), nil
	}
	return ir.Buffer{}, fmt.Errorf("harness cannot fill %v arrays", kind)
}

func loadCell(b ir.Buffer, i int) float64 {
	switch b.Kind {
	case ir.KindI4:
		return float64(ir.View[int32](b)[i])
	case ir.KindI8:
		return float64(ir.View[int64](b)[i])
	case ir.KindR4:
		return float64(ir.View[float32](b)[i])
	default:
		return ir.View[float64](b)[i]
	}
}

func storeCell(b ir.Buffer, i int, v float64) {
	switch b.Kind {
	case ir.KindI4:
		ir.View[int32](b)[i] = int32(v)
	case ir.KindI8:
		ir.View[int64](b)[i] = int64(v)
	case ir.KindR4:
		ir.View[float32](b)[i] = float32(v)
	default:
		ir.View[float64](b)[i] = v
	}
}

// near reports whether got matches want to the precision of kind.
func near(kind ir.Kind, got, want float64) bool {
	tol := 0.0
	switch kind {
	case ir.KindR4:
		tol = 1e-5
	case ir.KindR8:
		tol = 1e-12
	}
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}
