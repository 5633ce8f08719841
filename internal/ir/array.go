package ir

import "fmt"

// ArrayDescriptor is a type-agnostic description of one PET's piece of a
// distributed array. It owns no communication state and is not mutated by
// the route engine.
type ArrayDescriptor struct {
	Rank    int         `json:"rank"`
	Kind    Kind        `json:"kind"`
	Counts  []int       `json:"counts"`  // local total extent per axis
	Strides []int       `json:"strides"` // element strides per axis
	Axes    []AxisIndex `json:"axes"`
	Buffer  Buffer      `json:"-"`
}

// NewArrayDescriptor builds a descriptor with dense column-major strides
// (axis 0 fastest) over the total extent of axes.
func NewArrayDescriptor(kind Kind, axes []AxisIndex) (*ArrayDescriptor, error) {
	if err := ValidateAxes(axes); err != nil {
		return nil, err
	}
	counts := make([]int, len(axes))
	for i, a := range axes {
		counts[i] = a.Extent()
	}
	d := &ArrayDescriptor{
		Rank:    len(axes),
		Kind:    kind,
		Counts:  counts,
		Strides: ColumnMajorStrides(counts),
		Axes:    append([]AxisIndex(nil), axes...),
	}
	return d, d.Validate()
}

// ColumnMajorStrides returns dense strides with axis 0 varying fastest.
func ColumnMajorStrides(counts []int) []int {
	strides := make([]int, len(counts))
	s := 1
	for i, c := range counts {
		strides[i] = s
		s *= c
	}
	return strides
}

// Validate checks rank, kind, per-axis counts, and (when attached) that the
// buffer is large enough.
func (d *ArrayDescriptor) Validate() error {
	if d.Rank < 1 || d.Rank > MaxRank {
		return fmt.Errorf("array: rank %d outside 1..%d", d.Rank, MaxRank)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("array: invalid kind %v", d.Kind)
	}
	if len(d.Counts) != d.Rank || len(d.Strides) != d.Rank || len(d.Axes) != d.Rank {
		return fmt.Errorf("array: counts/strides/axes must have %d entries", d.Rank)
	}
	if err := ValidateAxes(d.Axes); err != nil {
		return fmt.Errorf("array: %w", err)
	}
	for i := range d.Axes {
		if d.Counts[i] != d.Axes[i].Extent() {
			return fmt.Errorf("array: axis %d count %d != total extent %d", i, d.Counts[i], d.Axes[i].Extent())
		}
		if d.Strides[i] < 1 {
			return fmt.Errorf("array: axis %d stride %d < 1", i, d.Strides[i])
		}
	}
	if d.Buffer.Count > 0 {
		if d.Buffer.Kind != d.Kind {
			return fmt.Errorf("array: buffer kind %v != array kind %v", d.Buffer.Kind, d.Kind)
		}
		if d.Buffer.Count < d.ElementCount() {
			return fmt.Errorf("array: buffer holds %d elements, need %d", d.Buffer.Count, d.ElementCount())
		}
	}
	return nil
}

// ElementCount returns the number of addressable elements (last offset + 1).
func (d *ArrayDescriptor) ElementCount() int {
	n := 1
	for i := range d.Counts {
		n += (d.Counts[i] - 1) * d.Strides[i]
	}
	return n
}

// Locate maps a global index tuple to a local element offset. It reports
// false if the tuple is outside the local total region.
func (d *ArrayDescriptor) Locate(global []int) (int, bool) {
	off := 0
	for i, a := range d.Axes {
		l := a.ToLocal(global[i])
		if l < a.TotalLo || l > a.TotalHi {
			return 0, false
		}
		off += (l - a.TotalLo) * d.Strides[i]
	}
	return off, true
}
