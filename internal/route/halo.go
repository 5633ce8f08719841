package route

import (
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
)

// haloPiece is one block of PET p's halo filled from PET q's exclusive
// region, seen from p. shift is the periodic image of q that supplies it.
type haloPiece struct {
	q      int
	shift  []int // multiples of the global count per axis
	region ir.Region
}

// periodicShifts enumerates shift vectors in {-1,0,1}^rank, zero on
// non-periodic axes, axis 0 varying fastest.
func periodicShifts(d *ir.Decomposition) [][]int {
	out := [][]int{make([]int, d.Rank)}
	for ax := 0; ax < d.Rank; ax++ {
		if !d.IsPeriodic(ax) {
			continue
		}
		next := make([][]int, 0, 3*len(out))
		for _, s := range []int{-1, 0, 1} {
			for _, base := range out {
				v := append([]int(nil), base...)
				v[ax] = s
				next = append(next, v)
			}
		}
		out = next
	}
	return out
}

// haloPieces computes every block of p's halo and the PET that owns it.
// Both the receiving PET and each sending PET call this for the same p, so
// they agree on the pieces and their order.
func haloPieces(d *ir.Decomposition, shifts [][]int, p int) []haloPiece {
	if !d.HasData(p) {
		return nil
	}
	total := d.Total(p)
	off := make([]int, d.Rank)
	var out []haloPiece
	for q := 0; q < d.PETs(); q++ {
		if !d.HasData(q) {
			continue
		}
		ex := d.Exclusive(q)
		for _, s := range shifts {
			zero := true
			for ax := range off {
				off[ax] = s[ax] * d.GlobalCount[ax]
				zero = zero && s[ax] == 0
			}
			if q == p && zero {
				continue
			}
			reg := total.Intersect(ex.Shift(off))
			if reg.Empty() {
				continue
			}
			out = append(out, haloPiece{q: q, shift: s, region: reg})
		}
	}
	return out
}

// coverableHalo counts the halo cells of p that some exclusive region can
// fill: cells inside the domain, or within one period on periodic axes.
func coverableHalo(d *ir.Decomposition, p int) int {
	total := d.Total(p)
	n := 1
	for ax, rg := range total {
		g := d.GlobalCount[ax]
		window := ir.Range{Lo: 0, Hi: g - 1}
		if d.IsPeriodic(ax) {
			window = ir.Range{Lo: -g, Hi: 2*g - 1}
		}
		n *= rg.Intersect(window).Len()
	}
	return n - d.Exclusive(p).Count()
}

// checkHalo validates p's pieces: pairwise disjoint and covering every
// coverable halo cell.
func checkHalo(d *ir.Decomposition, p int, pieces []haloPiece, op string, me int) error {
	covered := 0
	for i, a := range pieces {
		covered += a.region.Count()
		for _, b := range pieces[:i] {
			if a.region.Overlaps(b.region) {
				return newError(CodeOverlap, op, me,
					"halo of pet %d: pets %d and %d both supply %s", p, b.q, a.q, a.region.Intersect(b.region)).
					with("pet", itoa(p)).with("src_a", itoa(b.q)).with("src_b", itoa(a.q))
			}
		}
	}
	if want := coverableHalo(d, p); covered != want {
		return newError(CodeCoverage, op, me,
			"halo of pet %d: %d of %d cells have a source", p, covered, want).
			with("pet", itoa(p))
	}
	return nil
}

// PrecomputeHalo binds the route to a halo exchange over d: every PET's
// halo cells are filled from the PETs whose exclusive regions hold them,
// wrapping around periodic axes. Run it with the same buffer as source and
// destination. Cells beyond a non-periodic edge are never written.
func (r *Route) PrecomputeHalo(kind ir.Kind, d *ir.Decomposition) error {
	const op = "PrecomputeHalo"
	if err := r.begin(op, kind); err != nil {
		return err
	}
	me := r.tr.Rank()
	if err := d.Validate(); err != nil {
		return layoutError(op, me, err)
	}
	if err := r.checkPETs(op, "decomposition", d.PETs()); err != nil {
		return err
	}
	if p, q, ok := exclusiveOverlap(d); ok {
		return newError(CodeOverlap, op, me, "exclusive regions of pets %d and %d overlap", p, q).
			with("src_a", itoa(p)).with("src_b", itoa(q))
	}

	shifts := periodicShifts(d)
	all := make([][]haloPiece, d.PETs())
	for p := range all {
		all[p] = haloPieces(d, shifts, p)
		if err := checkHalo(d, p, all[p], op, me); err != nil {
			return err
		}
	}

	send := rtable.New(rtable.Send)
	recv := rtable.New(rtable.Recv)
	for _, pc := range all[me] {
		recv.Add(rtable.Entry{Peer: pc.q, Region: pc.region})
	}
	back := make([]int, d.Rank)
	for p, pieces := range all {
		for _, pc := range pieces {
			if pc.q != me {
				continue
			}
			for ax := range back {
				back[ax] = -pc.shift[ax] * d.GlobalCount[ax]
			}
			send.Add(rtable.Entry{Peer: p, Region: pc.region.Shift(back)})
		}
	}

	key, err := HaloKey(kind, d)
	if err != nil {
		return newError(CodeInvalidLayout, op, me, "route key: %v", err).wrap(err)
	}
	var loc ir.Locator
	if d.HasData(me) {
		a, err := d.Array(me, kind)
		if err != nil {
			return layoutError(op, me, err)
		}
		loc = a
	}
	return r.commit(&plan{
		call:      op,
		op:        "halo",
		key:       key,
		kind:      kind,
		rank:      d.Rank,
		send:      send,
		recv:      recv,
		srcLoc:    loc,
		dstLoc:    loc,
		srcCount:  d.GlobalCount,
		dstCount:  d.GlobalCount,
		hasSrc:    send.Len() > 0,
		hasDst:    recv.Len() > 0,
		recvItems: -1,
	})
}

// HaloKey returns the structural key of a halo route.
func HaloKey(kind ir.Kind, d *ir.Decomposition) (string, error) {
	return ir.RouteKey("halo", kind, nil, d)
}
