package weights

import (
	"fmt"
	"sort"
)

// Owner maps a global linear index to the PET that owns it.
type Owner func(lin int) (pet int, ok bool)

// LocalTerm references a source value by its position in Piece.Sources.
type LocalTerm struct {
	Pos    int
	Factor float64
}

// LocalRow is a Row restricted to one piece.
type LocalRow struct {
	Dst   int
	Terms []LocalTerm
}

// Piece is the part of a weight table carried between one source PET and
// one destination PET. The source PET sends the values at Sources in order;
// the destination PET accumulates Rows from them.
type Piece struct {
	Sources []int
	Rows    []LocalRow
}

// Pair identifies a (source PET, destination PET) piece.
type Pair struct {
	Src int
	Dst int
}

// OwnerError reports an index that no PET owns.
type OwnerError struct {
	Side  string // "src" or "dst"
	Index int
}

func (e *OwnerError) Error() string {
	return fmt.Sprintf("weights: %s index %d has no owning PET", e.Side, e.Index)
}

// Split partitions the table into pieces keyed by owning PET pair. Sources
// within a piece are sorted and unique; rows keep the table's destination
// order. Every PET computing Split over the same inputs gets the same pieces.
func (t *Table) Split(dstOwner, srcOwner Owner) (map[Pair]*Piece, error) {
	n := t.Normalize()
	type builder struct {
		rows []Row
		srcs map[int]struct{}
	}
	builders := make(map[Pair]*builder)
	order := make([]Pair, 0)

	for _, r := range n.Rows {
		dpet, ok := dstOwner(r.Dst)
		if !ok {
			return nil, &OwnerError{Side: "dst", Index: r.Dst}
		}
		// Terms grouped by source PET, preserving order.
		local := make(map[int][]Term)
		var pets []int
		for _, term := range r.Terms {
			spet, ok := srcOwner(term.Src)
			if !ok {
				return nil, &OwnerError{Side: "src", Index: term.Src}
			}
			if _, seen := local[spet]; !seen {
				pets = append(pets, spet)
			}
			local[spet] = append(local[spet], term)
		}
		for _, spet := range pets {
			p := Pair{Src: spet, Dst: dpet}
			b, ok := builders[p]
			if !ok {
				b = &builder{srcs: make(map[int]struct{})}
				builders[p] = b
				order = append(order, p)
			}
			b.rows = append(b.rows, Row{Dst: r.Dst, Terms: local[spet]})
			for _, term := range local[spet] {
				b.srcs[term.Src] = struct{}{}
			}
		}
	}

	out := make(map[Pair]*Piece, len(builders))
	for _, p := range order {
		b := builders[p]
		piece := &Piece{Sources: make([]int, 0, len(b.srcs))}
		for s := range b.srcs {
			piece.Sources = append(piece.Sources, s)
		}
		sort.Ints(piece.Sources)
		pos := make(map[int]int, len(piece.Sources))
		for i, s := range piece.Sources {
			pos[s] = i
		}
		piece.Rows = make([]LocalRow, len(b.rows))
		for i, r := range b.rows {
			lr := LocalRow{Dst: r.Dst, Terms: make([]LocalTerm, len(r.Terms))}
			for j, term := range r.Terms {
				lr.Terms[j] = LocalTerm{Pos: pos[term.Src], Factor: term.Factor}
			}
			piece.Rows[i] = lr
		}
		out[p] = piece
	}
	return out, nil
}

// Terms returns the number of terms in the piece.
func (p *Piece) Terms() int {
	n := 0
	for _, r := range p.Rows {
		n += len(r.Terms)
	}
	return n
}
