package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/gridroute/internal/ir"
)

// Layout is one compiled layout definition. Exactly one of Block and List
// is set; DEs places a domain list's DEs on PETs.
type Layout struct {
	Name  string
	Block *ir.Decomposition
	List  *ir.DomainList
	DEs   ir.DELayout
}

// PETs returns the number of PETs the layout needs.
func (l *Layout) PETs() int {
	if l.Block != nil {
		return l.Block.PETs()
	}
	n := 0
	for _, p := range l.DEs {
		n = max(n, p+1)
	}
	return n
}

// GlobalCount returns the global extent per axis.
func (l *Layout) GlobalCount() []int {
	if l.Block != nil {
		return l.Block.GlobalCount
	}
	return l.List.GlobalCount
}

// Canonical returns the layout's structural description.
func (l *Layout) Canonical() ir.Canonical {
	if l.Block != nil {
		return l.Block
	}
	return l.List
}

// CompileLayout parses a CUE value into a Layout.
//
// A block layout splits global_count over a process grid:
//
//	layout: line: {
//		global_count: [16]
//		grid: [4]
//		halo: [1]
//		periodic: [false]
//	}
//
// A vector layout gives per-DE item counts of a 1-D array (counts: [5, 0, 3]).
// A domain-list layout gives explicit blocks per DE, each as lo/hi corners
// and an optional offset into the DE's packed vector; pets places the DEs.
func CompileLayout(v cue.Value) (*Layout, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	l := &Layout{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		l.Name = labels[len(labels)-1].String()
	}

	forms := 0
	for _, f := range []string{"grid", "counts", "blocks"} {
		if v.LookupPath(cue.ParsePath(f)).Exists() {
			forms++
		}
	}
	if forms != 1 {
		return nil, &CompileError{
			Field:   "layout",
			Message: "exactly one of grid, counts, or blocks is required",
			Pos:     v.Pos(),
		}
	}

	switch {
	case v.LookupPath(cue.ParsePath("grid")).Exists():
		return l, compileBlock(v, l)
	case v.LookupPath(cue.ParsePath("counts")).Exists():
		counts, err := intList(v, "counts", true)
		if err != nil {
			return nil, err
		}
		l.List = ir.VectorDecompose(l.Name, counts)
	default:
		if err := compileBlocks(v, l); err != nil {
			return nil, err
		}
	}

	pets, err := intList(v, "pets", false)
	if err != nil {
		return nil, err
	}
	if pets == nil {
		pets = ir.IdentityLayout(l.List.DEs())
	}
	if len(pets) != l.List.DEs() {
		return nil, &CompileError{
			Field:   "pets",
			Message: fmt.Sprintf("places %d DEs, layout has %d", len(pets), l.List.DEs()),
			Pos:     v.LookupPath(cue.ParsePath("pets")).Pos(),
		}
	}
	l.DEs = ir.DELayout(pets)
	if err := l.List.Validate(); err != nil {
		return nil, &CompileError{Field: "blocks", Message: err.Error(), Pos: v.Pos()}
	}
	return l, nil
}

func compileBlock(v cue.Value, l *Layout) error {
	counts, err := intList(v, "global_count", true)
	if err != nil {
		return err
	}
	grid, err := intList(v, "grid", true)
	if err != nil {
		return err
	}
	halo, err := intList(v, "halo", false)
	if err != nil {
		return err
	}
	periodic, err := boolList(v, "periodic")
	if err != nil {
		return err
	}
	d, err := ir.BlockDecompose(l.Name, counts, grid, halo, periodic)
	if err != nil {
		return &CompileError{Field: "grid", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("grid")).Pos()}
	}
	ids, err := intList(v, "decomp_ids", false)
	if err != nil {
		return err
	}
	if ids != nil {
		if len(ids) != d.Rank {
			return &CompileError{
				Field:   "decomp_ids",
				Message: fmt.Sprintf("%d ids for rank %d", len(ids), d.Rank),
				Pos:     v.LookupPath(cue.ParsePath("decomp_ids")).Pos(),
			}
		}
		d.DecompIDs = ids
	}
	l.Block = d
	return nil
}

func compileBlocks(v cue.Value, l *Layout) error {
	counts, err := intList(v, "global_count", true)
	if err != nil {
		return err
	}
	list := &ir.DomainList{Name: l.Name, Rank: len(counts), GlobalCount: counts}

	desVal := v.LookupPath(cue.ParsePath("blocks"))
	des, err := desVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for de := 0; des.Next(); de++ {
		blocks, err := des.Value().List()
		if err != nil {
			return formatCUEError(err)
		}
		var out []ir.Block
		offset := 0
		for blocks.Next() {
			bv := blocks.Value()
			lo, err := intList(bv, "lo", true)
			if err != nil {
				return err
			}
			hi, err := intList(bv, "hi", true)
			if err != nil {
				return err
			}
			if len(lo) != list.Rank || len(hi) != list.Rank {
				return &CompileError{
					Field:   "blocks",
					Message: fmt.Sprintf("de %d: corners need %d entries", de, list.Rank),
					Pos:     bv.Pos(),
				}
			}
			b := ir.Block{Region: make(ir.Region, list.Rank), Offset: offset}
			for i := range lo {
				b.Region[i] = ir.Range{Lo: lo[i], Hi: hi[i]}
			}
			if ov := bv.LookupPath(cue.ParsePath("offset")); ov.Exists() {
				n, err := ov.Int64()
				if err != nil {
					return formatCUEError(err)
				}
				b.Offset = int(n)
			}
			offset = b.Offset + max(b.Region.Count(), 0)
			out = append(out, b)
		}
		list.Blocks = append(list.Blocks, out)
	}
	l.List = list
	return nil
}

// intList reads an optional (or required) list of integers at field.
func intList(v cue.Value, field string, required bool) ([]int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		if required {
			return nil, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
		}
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []int{}
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "entries must be integers", Pos: iter.Value().Pos()}
		}
		out = append(out, int(n))
	}
	return out, nil
}

func boolList(v cue.Value, field string) ([]bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []bool
	for iter.Next() {
		b, err := iter.Value().Bool()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "entries must be booleans", Pos: iter.Value().Pos()}
		}
		out = append(out, b)
	}
	return out, nil
}
