package weights

import (
	"fmt"
	"math"
	"sort"
)

// Term is one contribution to a destination cell.
type Term struct {
	Src    int     `json:"src" yaml:"src"`
	Factor float64 `json:"factor" yaml:"factor"`
}

// Row lists every term that feeds one destination cell. Dst and Src are
// global linear indices (column-major, axis 0 fastest).
type Row struct {
	Dst   int    `json:"dst" yaml:"dst"`
	Terms []Term `json:"terms" yaml:"terms"`
}

// Table is a sparse weight matrix in row form.
type Table struct {
	Rows []Row `json:"rows" yaml:"rows"`
}

// Len returns the number of non-zero terms.
func (t *Table) Len() int {
	n := 0
	for _, r := range t.Rows {
		n += len(r.Terms)
	}
	return n
}

// Validate checks that every index lies in its domain and every factor is
// finite.
func (t *Table) Validate(dstCount, srcCount int) error {
	for i, r := range t.Rows {
		if r.Dst < 0 || r.Dst >= dstCount {
			return fmt.Errorf("weights: row %d: dst %d outside 0..%d", i, r.Dst, dstCount-1)
		}
		for j, term := range r.Terms {
			if term.Src < 0 || term.Src >= srcCount {
				return fmt.Errorf("weights: row %d term %d: src %d outside 0..%d", i, j, term.Src, srcCount-1)
			}
			if math.IsNaN(term.Factor) || math.IsInf(term.Factor, 0) {
				return fmt.Errorf("weights: row %d term %d: factor %v is not finite", i, j, term.Factor)
			}
		}
	}
	return nil
}

// Normalize returns a copy with rows sharing a destination merged, rows
// sorted by Dst, and terms sorted by Src. Repeated (dst, src) terms are kept
// as separate terms so accumulation order stays explicit.
func (t *Table) Normalize() *Table {
	byDst := make(map[int][]Term)
	for _, r := range t.Rows {
		byDst[r.Dst] = append(byDst[r.Dst], r.Terms...)
	}
	out := &Table{Rows: make([]Row, 0, len(byDst))}
	for dst, terms := range byDst {
		sorted := append([]Term(nil), terms...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Src < sorted[j].Src })
		out.Rows = append(out.Rows, Row{Dst: dst, Terms: sorted})
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Dst < out.Rows[j].Dst })
	return out
}

// Mapped returns the sorted destination indices that have at least one term.
func (t *Table) Mapped() []int {
	seen := make(map[int]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		if len(r.Terms) > 0 {
			seen[r.Dst] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// CanonicalMap renders the table for structural hashing. Factors are hashed
// by their IEEE-754 bit pattern.
func (t *Table) CanonicalMap() map[string]any {
	n := t.Normalize()
	rows := make([]any, len(n.Rows))
	for i, r := range n.Rows {
		terms := make([]any, len(r.Terms))
		for j, term := range r.Terms {
			terms[j] = []any{term.Src, math.Float64bits(term.Factor)}
		}
		rows[i] = map[string]any{"dst": r.Dst, "terms": terms}
	}
	return map[string]any{"type": "weights", "rows": rows}
}
