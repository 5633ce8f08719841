package harness

import (
	"fmt"

	"github.com/roach88/gridroute/internal/compiler"
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/weights"
)

// side is one end of a transfer: a block decomposition, or a domain list
// with its DEs placed on PETs.
type side struct {
	block *ir.Decomposition
	list  *ir.DomainList
	des   ir.DELayout
}

func sideOf(l *compiler.Layout) side {
	return side{block: l.Block, list: l.List, des: l.DEs}
}

func (s side) count() []int {
	if s.block != nil {
		return s.block.GlobalCount
	}
	return s.list.GlobalCount
}

func (s side) pets() int {
	if s.block != nil {
		return s.block.PETs()
	}
	n := 0
	for _, p := range s.des {
		n = max(n, p+1)
	}
	return n
}

// extent returns the number of local elements pet holds.
func (s side) extent(pet int, kind ir.Kind) (int, error) {
	if s.block != nil {
		if !s.block.HasData(pet) {
			return 0, nil
		}
		a, err := s.block.Array(pet, kind)
		if err != nil {
			return 0, err
		}
		return a.ElementCount(), nil
	}
	de, ok := s.des.DEOf(pet)
	if !ok {
		return 0, nil
	}
	return s.list.Extent(de), nil
}

// walk calls fn for every local cell of pet with its global index, local
// element offset, and whether pet owns it (false for halo cells).
func (s side) walk(pet int, kind ir.Kind, fn func(g []int, off int, owned bool)) error {
	if s.block != nil {
		if !s.block.HasData(pet) {
			return nil
		}
		a, err := s.block.Array(pet, kind)
		if err != nil {
			return err
		}
		ex := s.block.Exclusive(pet)
		var werr error
		s.block.Total(pet).Walk(nil, func(g []int) {
			off, ok := a.Locate(g)
			if !ok {
				werr = fmt.Errorf("pet %d cannot locate %v", pet, g)
				return
			}
			fn(g, off, ex.Contains(g))
		})
		return werr
	}
	de, ok := s.des.DEOf(pet)
	if !ok {
		return nil
	}
	for _, b := range s.list.Blocks[de] {
		off := b.Offset
		b.Region.Walk(nil, func(g []int) {
			fn(g, off, true)
			off++
		})
	}
	return nil
}

// cellValue is the value every source cell starts with: its wrapped global
// linear index plus one, so zero never passes for a delivered value.
func cellValue(g, counts []int) float64 {
	w := make([]int, len(g))
	for i, v := range g {
		n := counts[i]
		w[i] = ((v % n) + n) % n
	}
	return float64(ir.Ravel(w, counts) + 1)
}

// reference returns the value a destination cell must hold after the
// transfer, or false if the transfer must not touch it.
type reference func(g []int, owned bool) (float64, bool)

func haloReference(counts []int) reference {
	return func(g []int, _ bool) (float64, bool) {
		return cellValue(g, counts), true
	}
}

func redistReference(srcCount, rankTrans []int) reference {
	sidx := make([]int, len(srcCount))
	return func(g []int, owned bool) (float64, bool) {
		if !owned {
			return 0, false
		}
		for k, ax := range rankTrans {
			sidx[ax] = g[k]
		}
		return cellValue(sidx, srcCount), true
	}
}

func regridReference(dstCount []int, w *weights.Table) reference {
	sums := make(map[int]float64, len(w.Rows))
	for _, row := range w.Rows {
		var v float64
		for _, t := range row.Terms {
			v += t.Factor * float64(t.Src+1)
		}
		sums[row.Dst] += v
	}
	return func(g []int, owned bool) (float64, bool) {
		if !owned {
			return 0, false
		}
		v, ok := sums[ir.Ravel(g, dstCount)]
		return v, ok
	}
}

func listReference(srcCount []int) reference {
	return func(g []int, _ bool) (float64, bool) {
		return cellValue(g, srcCount), true
	}
}
