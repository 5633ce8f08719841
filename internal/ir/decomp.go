package ir

import "fmt"

// Locator maps a global index tuple onto a local element offset.
type Locator interface {
	Locate(global []int) (int, bool)
}

// Decomposition is the complete, global description of a block-distributed
// array: every PET's AxisIndex tuple plus the global extent. Every PET holds
// an identical copy.
type Decomposition struct {
	Name        string        `json:"name"`
	Rank        int           `json:"rank"`
	GlobalCount []int         `json:"global_count"`
	Periodic    []bool        `json:"periodic,omitempty"`
	DecompIDs   []int         `json:"decomp_ids,omitempty"` // 0 = axis not decomposed
	Shards      [][]AxisIndex `json:"shards"`               // [pet][axis]; nil = PET holds no data
}

// PETs returns the number of PETs described.
func (d *Decomposition) PETs() int {
	return len(d.Shards)
}

// HasData reports whether pet owns any elements.
func (d *Decomposition) HasData(pet int) bool {
	return pet >= 0 && pet < len(d.Shards) && d.Shards[pet] != nil
}

// IsPeriodic reports whether axis wraps around.
func (d *Decomposition) IsPeriodic(axis int) bool {
	return axis < len(d.Periodic) && d.Periodic[axis]
}

// Domain returns the global index space [0, GlobalCount-1] per axis.
func (d *Decomposition) Domain() Region {
	out := make(Region, d.Rank)
	for i, n := range d.GlobalCount {
		out[i] = Range{Lo: 0, Hi: n - 1}
	}
	return out
}

// Exclusive returns pet's owned global region (nil if it holds no data).
func (d *Decomposition) Exclusive(pet int) Region {
	if !d.HasData(pet) {
		return nil
	}
	return GlobalExclusive(d.Shards[pet])
}

// Total returns pet's global total region including halo.
func (d *Decomposition) Total(pet int) Region {
	if !d.HasData(pet) {
		return nil
	}
	return GlobalTotal(d.Shards[pet])
}

// Array returns the dense descriptor of pet's local piece.
func (d *Decomposition) Array(pet int, kind Kind) (*ArrayDescriptor, error) {
	if !d.HasData(pet) {
		return nil, fmt.Errorf("decomposition %q: pet %d holds no data", d.Name, pet)
	}
	return NewArrayDescriptor(kind, d.Shards[pet])
}

// Validate checks rank, extents, and that every shard's exclusive region
// lies inside the global domain.
func (d *Decomposition) Validate() error {
	if d.Rank < 1 || d.Rank > MaxRank {
		return fmt.Errorf("decomposition %q: rank %d outside 1..%d", d.Name, d.Rank, MaxRank)
	}
	if len(d.GlobalCount) != d.Rank {
		return fmt.Errorf("decomposition %q: %d global counts for rank %d", d.Name, len(d.GlobalCount), d.Rank)
	}
	for i, n := range d.GlobalCount {
		if n < 1 {
			return fmt.Errorf("decomposition %q: axis %d global count %d < 1", d.Name, i, n)
		}
	}
	if len(d.Periodic) != 0 && len(d.Periodic) != d.Rank {
		return fmt.Errorf("decomposition %q: %d periodic flags for rank %d", d.Name, len(d.Periodic), d.Rank)
	}
	if len(d.DecompIDs) != 0 && len(d.DecompIDs) != d.Rank {
		return fmt.Errorf("decomposition %q: %d decomp ids for rank %d", d.Name, len(d.DecompIDs), d.Rank)
	}
	if len(d.Shards) == 0 {
		return fmt.Errorf("decomposition %q: no PETs", d.Name)
	}
	domain := d.Domain()
	for pet, axes := range d.Shards {
		if axes == nil {
			continue
		}
		if len(axes) != d.Rank {
			return fmt.Errorf("decomposition %q: pet %d has %d axes, want %d", d.Name, pet, len(axes), d.Rank)
		}
		if err := ValidateAxes(axes); err != nil {
			return fmt.Errorf("decomposition %q: pet %d: %w", d.Name, pet, err)
		}
		ex := GlobalExclusive(axes)
		if !ex.Intersect(domain).Equal(ex) {
			return fmt.Errorf("decomposition %q: pet %d exclusive %s outside domain %s", d.Name, pet, ex, domain)
		}
	}
	return nil
}

// BlockDecompose splits a global index space over a process grid (grid[i]
// parts along axis i, PETs numbered with grid axis 0 fastest). Remainders go
// to the lowest parts. Halo widths are clamped at non-periodic edges so the
// total region never leaves the domain there.
func BlockDecompose(name string, globalCount, grid, halo []int, periodic []bool) (*Decomposition, error) {
	rank := len(globalCount)
	if rank < 1 || rank > MaxRank {
		return nil, fmt.Errorf("block decompose %q: rank %d outside 1..%d", name, rank, MaxRank)
	}
	if len(grid) != rank || (halo != nil && len(halo) != rank) || (periodic != nil && len(periodic) != rank) {
		return nil, fmt.Errorf("block decompose %q: grid/halo/periodic must have %d entries", name, rank)
	}
	pets := 1
	for i, g := range grid {
		if g < 1 || g > globalCount[i] {
			return nil, fmt.Errorf("block decompose %q: axis %d cannot split %d elements %d ways", name, i, globalCount[i], g)
		}
		pets *= g
	}

	d := &Decomposition{
		Name:        name,
		Rank:        rank,
		GlobalCount: append([]int(nil), globalCount...),
		Periodic:    make([]bool, rank),
		DecompIDs:   make([]int, rank),
		Shards:      make([][]AxisIndex, pets),
	}
	if periodic != nil {
		copy(d.Periodic, periodic)
	}
	for i, g := range grid {
		if g > 1 {
			d.DecompIDs[i] = i + 1
		}
	}

	coord := make([]int, rank)
	for pet := 0; pet < pets; pet++ {
		rem := pet
		for i := range grid {
			coord[i] = rem % grid[i]
			rem /= grid[i]
		}
		axes := make([]AxisIndex, rank)
		for i := range axes {
			start, n := BlockSpan(globalCount[i], grid[i], coord[i])
			w := 0
			if halo != nil {
				w = halo[i]
			}
			lo, hi := w, w
			if !d.Periodic[i] {
				lo = min(w, start)
				hi = min(w, globalCount[i]-(start+n))
			}
			axes[i] = NewAxisIndex(Range{Lo: lo, Hi: lo + n - 1}, Range{Lo: 0, Hi: lo + n - 1 + hi}, start)
		}
		d.Shards[pet] = axes
	}
	return d, nil
}

// BlockSpan returns the start and length of part p when n elements are
// split into parts pieces, remainder to the lowest parts.
func BlockSpan(n, parts, p int) (start, length int) {
	base, rem := n/parts, n%parts
	length = base
	if p < rem {
		length++
		return p * length, length
	}
	return rem*(base+1) + (p-rem)*base, length
}

// Ravel maps a global index tuple to a column-major linear index.
func Ravel(idx, globalCount []int) int {
	lin, s := 0, 1
	for i, n := range globalCount {
		lin += idx[i] * s
		s *= n
	}
	return lin
}

// Unravel is the inverse of Ravel; it writes into out and returns it.
func Unravel(lin int, globalCount []int, out []int) []int {
	for i, n := range globalCount {
		out[i] = lin % n
		lin /= n
	}
	return out
}

// Block is one rectangular piece of a domain list. Its elements are stored
// densely (axis 0 fastest) starting at local element Offset.
type Block struct {
	Region Region `json:"region"`
	Offset int    `json:"offset"`
}

// DomainList describes irregular ownership: each DE owns a list of disjoint
// blocks whose data is packed into one local vector.
type DomainList struct {
	Name        string    `json:"name"`
	Rank        int       `json:"rank"`
	GlobalCount []int     `json:"global_count"`
	Blocks      [][]Block `json:"blocks"` // [de]
}

// VectorDecompose builds a 1-D domain list from per-DE item counts; DE p
// owns the contiguous global range following DE p-1. Zero counts are allowed.
func VectorDecompose(name string, counts []int) *DomainList {
	total := 0
	for _, c := range counts {
		total += c
	}
	l := &DomainList{Name: name, Rank: 1, GlobalCount: []int{total}, Blocks: make([][]Block, len(counts))}
	start := 0
	for de, c := range counts {
		if c > 0 {
			l.Blocks[de] = []Block{{Region: Region{{Lo: start, Hi: start + c - 1}}}}
		}
		start += c
	}
	return l
}

// DEs returns the number of DEs described.
func (l *DomainList) DEs() int {
	return len(l.Blocks)
}

// Items returns the number of elements owned by de.
func (l *DomainList) Items(de int) int {
	if de < 0 || de >= len(l.Blocks) {
		return 0
	}
	n := 0
	for _, b := range l.Blocks[de] {
		n += b.Region.Count()
	}
	return n
}

// Extent returns the local vector length needed to hold de's blocks.
func (l *DomainList) Extent(de int) int {
	if de < 0 || de >= len(l.Blocks) {
		return 0
	}
	n := 0
	for _, b := range l.Blocks[de] {
		n = max(n, b.Offset+b.Region.Count())
	}
	return n
}

// Validate checks ranks, that blocks lie in the domain, and that a DE's
// blocks do not overlap in local storage.
func (l *DomainList) Validate() error {
	if l.Rank < 1 || l.Rank > MaxRank || len(l.GlobalCount) != l.Rank {
		return fmt.Errorf("domain list %q: rank %d with %d global counts", l.Name, l.Rank, len(l.GlobalCount))
	}
	domain := make(Region, l.Rank)
	for i, n := range l.GlobalCount {
		domain[i] = Range{Lo: 0, Hi: n - 1}
	}
	for de, blocks := range l.Blocks {
		for i, b := range blocks {
			if len(b.Region) != l.Rank {
				return fmt.Errorf("domain list %q: de %d block %d has rank %d", l.Name, de, i, len(b.Region))
			}
			for ax, rg := range b.Region {
				if rg.Empty() {
					return fmt.Errorf("domain list %q: de %d block %d axis %d: %w: %d > %d", l.Name, de, i, ax, ErrMalformedIndex, rg.Lo, rg.Hi)
				}
			}
			if !b.Region.Intersect(domain).Equal(b.Region) {
				return fmt.Errorf("domain list %q: de %d block %d %s outside domain %s", l.Name, de, i, b.Region, domain)
			}
			if b.Offset < 0 {
				return fmt.Errorf("domain list %q: de %d block %d negative offset", l.Name, de, i)
			}
			for j := 0; j < i; j++ {
				o := blocks[j]
				if b.Offset < o.Offset+o.Region.Count() && o.Offset < b.Offset+b.Region.Count() {
					return fmt.Errorf("domain list %q: de %d blocks %d and %d share local storage", l.Name, de, j, i)
				}
			}
		}
	}
	return nil
}

// Locator returns the local index mapping for de's packed vector.
func (l *DomainList) Locator(de int) Locator {
	if de < 0 || de >= len(l.Blocks) {
		return blockLocator(nil)
	}
	return blockLocator(l.Blocks[de])
}

type blockLocator []Block

func (bl blockLocator) Locate(global []int) (int, bool) {
	for _, b := range bl {
		if !b.Region.Contains(global) {
			continue
		}
		off, s := 0, 1
		for i, rg := range b.Region {
			off += (global[i] - rg.Lo) * s
			s *= rg.Len()
		}
		return b.Offset + off, true
	}
	return 0, false
}

// DELayout maps DE index to PET.
type DELayout []int

// IdentityLayout maps DE i to PET i.
func IdentityLayout(n int) DELayout {
	out := make(DELayout, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// DEOf returns the DE hosted on pet.
func (l DELayout) DEOf(pet int) (int, bool) {
	for de, p := range l {
		if p == pet {
			return de, true
		}
	}
	return 0, false
}

// Validate checks that every PET is in [0, size) and hosts at most one DE.
func (l DELayout) Validate(size int) error {
	seen := make(map[int]int, len(l))
	for de, pet := range l {
		if pet < 0 || pet >= size {
			return fmt.Errorf("de layout: de %d on pet %d outside 0..%d", de, pet, size-1)
		}
		if prev, ok := seen[pet]; ok {
			return fmt.Errorf("de layout: pet %d hosts de %d and de %d", pet, prev, de)
		}
		seen[pet] = de
	}
	return nil
}
