package ir

import (
	"errors"
	"fmt"
	"strings"
)

// MaxRank is the highest array rank the route engine supports.
const MaxRank = 5

// ErrMalformedIndex is returned (wrapped) for index ranges with lo > hi or an
// exclusive region that is not contained in the total region.
var ErrMalformedIndex = errors.New("malformed axis index")

// Range is an inclusive index interval [Lo, Hi]. Hi < Lo is the empty range.
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	if r.Hi < r.Lo {
		return 0
	}
	return r.Hi - r.Lo + 1
}

// Empty reports whether the range contains no indices.
func (r Range) Empty() bool {
	return r.Hi < r.Lo
}

// Contains reports whether i lies in the range.
func (r Range) Contains(i int) bool {
	return i >= r.Lo && i <= r.Hi
}

// Intersect returns the overlap of two ranges (possibly empty).
func (r Range) Intersect(o Range) Range {
	return Range{Lo: max(r.Lo, o.Lo), Hi: min(r.Hi, o.Hi)}
}

// Shift returns the range translated by d.
func (r Range) Shift(d int) Range {
	return Range{Lo: r.Lo + d, Hi: r.Hi + d}
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.Lo, r.Hi)
}

// Region is a rank-tuple of ranges: a rectangular block of an index space.
type Region []Range

// Rank returns the number of axes.
func (r Region) Rank() int {
	return len(r)
}

// Count returns the number of index tuples in the region.
func (r Region) Count() int {
	if len(r) == 0 {
		return 0
	}
	n := 1
	for _, rg := range r {
		n *= rg.Len()
	}
	return n
}

// Empty reports whether the region contains no index tuples.
func (r Region) Empty() bool {
	return r.Count() == 0
}

// Intersect returns the overlap of two regions of equal rank.
// The result may be empty; check with Empty.
func (r Region) Intersect(o Region) Region {
	out := make(Region, len(r))
	for i := range r {
		out[i] = r[i].Intersect(o[i])
	}
	return out
}

// Overlaps reports whether two regions share at least one index tuple.
func (r Region) Overlaps(o Region) bool {
	for i := range r {
		if r[i].Intersect(o[i]).Empty() {
			return false
		}
	}
	return len(r) > 0
}

// Contains reports whether idx lies inside the region.
func (r Region) Contains(idx []int) bool {
	for i, rg := range r {
		if !rg.Contains(idx[i]) {
			return false
		}
	}
	return true
}

// Shift returns the region translated by d (one offset per axis).
func (r Region) Shift(d []int) Region {
	out := make(Region, len(r))
	for i := range r {
		out[i] = r[i].Shift(d[i])
	}
	return out
}

// Permute reorders axes: out[k] = r[perm[k]].
func (r Region) Permute(perm []int) Region {
	out := make(Region, len(perm))
	for k, p := range perm {
		out[k] = r[p]
	}
	return out
}

// Unpermute is the inverse of Permute: out[perm[k]] = r[k].
func (r Region) Unpermute(perm []int) Region {
	out := make(Region, len(perm))
	for k, p := range perm {
		out[p] = r[k]
	}
	return out
}

// Clone returns a copy that shares no memory with r.
func (r Region) Clone() Region {
	if r == nil {
		return nil
	}
	out := make(Region, len(r))
	copy(out, r)
	return out
}

// Equal reports whether two regions have identical ranges.
func (r Region) Equal(o Region) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the region as "[lo:hi,lo:hi]".
func (r Region) String() string {
	parts := make([]string, len(r))
	for i, rg := range r {
		parts[i] = rg.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Walk calls fn for every index tuple of the region. order lists axes from
// fastest to slowest varying; nil means natural order (axis 0 fastest).
// The slice passed to fn is reused between calls and must not be retained.
func (r Region) Walk(order []int, fn func(idx []int)) {
	if r.Empty() {
		return
	}
	if order == nil {
		order = NaturalOrder(len(r))
	}
	idx := make([]int, len(r))
	for i, rg := range r {
		idx[i] = rg.Lo
	}
	for {
		fn(idx)
		k := 0
		for ; k < len(order); k++ {
			ax := order[k]
			if idx[ax] < r[ax].Hi {
				idx[ax]++
				break
			}
			idx[ax] = r[ax].Lo
		}
		if k == len(order) {
			return
		}
	}
}

// NaturalOrder returns [0, 1, ..., rank-1].
func NaturalOrder(rank int) []int {
	out := make([]int, rank)
	for i := range out {
		out[i] = i
	}
	return out
}

// ValidPermutation reports whether perm is a permutation of [0, rank).
func ValidPermutation(perm []int, rank int) bool {
	if len(perm) != rank {
		return false
	}
	seen := make([]bool, rank)
	for _, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

// InversePermutation returns inv with inv[perm[k]] = k.
func InversePermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for k, p := range perm {
		inv[p] = k
	}
	return inv
}

// AxisIndex describes one array axis on one PET: the local exclusive
// (owned) and total (owned + halo) index ranges plus the offset that maps a
// local index onto the global index space (global = local + GlobalOffset).
type AxisIndex struct {
	ExclusiveLo  int `json:"exclusive_lo"`
	ExclusiveHi  int `json:"exclusive_hi"`
	TotalLo      int `json:"total_lo"`
	TotalHi      int `json:"total_hi"`
	GlobalOffset int `json:"global_offset"`
}

// NewAxisIndex builds an AxisIndex from local exclusive and total ranges and
// the global index of the first exclusive element.
func NewAxisIndex(exclusive, total Range, globalStart int) AxisIndex {
	return AxisIndex{
		ExclusiveLo:  exclusive.Lo,
		ExclusiveHi:  exclusive.Hi,
		TotalLo:      total.Lo,
		TotalHi:      total.Hi,
		GlobalOffset: globalStart - exclusive.Lo,
	}
}

// Validate checks TotalLo <= ExclusiveLo <= ExclusiveHi <= TotalHi.
func (a AxisIndex) Validate() error {
	if a.ExclusiveLo > a.ExclusiveHi {
		return fmt.Errorf("%w: exclusive range %d > %d", ErrMalformedIndex, a.ExclusiveLo, a.ExclusiveHi)
	}
	if a.TotalLo > a.ExclusiveLo || a.ExclusiveHi > a.TotalHi {
		return fmt.Errorf("%w: exclusive %d:%d not inside total %d:%d",
			ErrMalformedIndex, a.ExclusiveLo, a.ExclusiveHi, a.TotalLo, a.TotalHi)
	}
	return nil
}

// Exclusive returns the local exclusive range.
func (a AxisIndex) Exclusive() Range {
	return Range{Lo: a.ExclusiveLo, Hi: a.ExclusiveHi}
}

// Total returns the local total range.
func (a AxisIndex) Total() Range {
	return Range{Lo: a.TotalLo, Hi: a.TotalHi}
}

// GlobalExclusive returns the exclusive range in global indices.
func (a AxisIndex) GlobalExclusive() Range {
	return a.Exclusive().Shift(a.GlobalOffset)
}

// GlobalTotal returns the total range in global indices. On periodic axes
// this may extend beyond [0, globalCount).
func (a AxisIndex) GlobalTotal() Range {
	return a.Total().Shift(a.GlobalOffset)
}

// Extent returns the number of local elements along the axis (total width).
func (a AxisIndex) Extent() int {
	return a.Total().Len()
}

// HaloWidths returns the halo widths below and above the exclusive range.
func (a AxisIndex) HaloWidths() (lo, hi int) {
	return a.ExclusiveLo - a.TotalLo, a.TotalHi - a.ExclusiveHi
}

// ToGlobal maps a local index to the global index space.
func (a AxisIndex) ToGlobal(i int) int {
	return i + a.GlobalOffset
}

// ToLocal maps a global index to the local index space.
func (a AxisIndex) ToLocal(g int) int {
	return g - a.GlobalOffset
}

// ValidateAxes validates every axis of a rank-tuple.
func ValidateAxes(axes []AxisIndex) error {
	if len(axes) == 0 || len(axes) > MaxRank {
		return fmt.Errorf("%w: rank %d outside 1..%d", ErrMalformedIndex, len(axes), MaxRank)
	}
	for i, a := range axes {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("axis %d: %w", i, err)
		}
	}
	return nil
}

// GlobalExclusive returns the global exclusive region of a rank-tuple.
func GlobalExclusive(axes []AxisIndex) Region {
	out := make(Region, len(axes))
	for i, a := range axes {
		out[i] = a.GlobalExclusive()
	}
	return out
}

// GlobalTotal returns the global total region of a rank-tuple.
func GlobalTotal(axes []AxisIndex) Region {
	out := make(Region, len(axes))
	for i, a := range axes {
		out[i] = a.GlobalTotal()
	}
	return out
}

// OwnedRegion translates local exclusive ranges plus explicit per-axis global
// starts (the decomposition's offsets for this PET) into the global region
// the PET owns. The GlobalOffset fields of axes are ignored.
func OwnedRegion(axes []AxisIndex, globalStart []int) (Region, error) {
	if len(globalStart) != len(axes) {
		return nil, fmt.Errorf("%w: %d global starts for rank %d", ErrMalformedIndex, len(globalStart), len(axes))
	}
	out := make(Region, len(axes))
	for i, a := range axes {
		if a.ExclusiveLo > a.ExclusiveHi {
			return nil, fmt.Errorf("axis %d: %w: exclusive range %d > %d", i, ErrMalformedIndex, a.ExclusiveLo, a.ExclusiveHi)
		}
		out[i] = Range{Lo: globalStart[i], Hi: globalStart[i] + a.Exclusive().Len() - 1}
	}
	return out, nil
}
