package route

import (
	"fmt"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
)

// RedistOptions qualifies a redistribution.
type RedistOptions struct {
	// RankTrans maps destination axis k to source axis RankTrans[k].
	// Nil is the identity.
	RankTrans []int

	// OldDecompIDs and NewDecompIDs name, per source and destination axis,
	// the decomposition that splits it; 0 marks an axis that is held whole
	// on every PET. Nil skips the check.
	OldDecompIDs []int
	NewDecompIDs []int
}

func (o RedistOptions) params(rank int) map[string]any {
	p := map[string]any{"rank_trans": o.rankTrans(rank)}
	if o.OldDecompIDs != nil {
		p["old_decomp_ids"] = append([]int(nil), o.OldDecompIDs...)
	}
	if o.NewDecompIDs != nil {
		p["new_decomp_ids"] = append([]int(nil), o.NewDecompIDs...)
	}
	return p
}

func (o RedistOptions) rankTrans(rank int) []int {
	if o.RankTrans == nil {
		return ir.NaturalOrder(rank)
	}
	return append([]int(nil), o.RankTrans...)
}

// checkTrans validates the axis permutation and that global extents agree
// under it.
func checkTrans(rt []int, dstCount, srcCount []int) error {
	if len(dstCount) != len(srcCount) {
		return fmt.Errorf("destination rank %d, source rank %d", len(dstCount), len(srcCount))
	}
	if !ir.ValidPermutation(rt, len(dstCount)) {
		return fmt.Errorf("rank_trans %v is not a permutation of %d axes", rt, len(dstCount))
	}
	for k, s := range rt {
		if dstCount[k] != srcCount[s] {
			return fmt.Errorf("destination axis %d has %d cells, source axis %d has %d", k, dstCount[k], s, srcCount[s])
		}
	}
	return nil
}

// checkDecompIDs verifies that axes marked undecomposed are whole on every
// PET holding data.
func checkDecompIDs(d *ir.Decomposition, ids []int, side string) error {
	if ids == nil {
		return nil
	}
	if len(ids) != d.Rank {
		return fmt.Errorf("%s decomposition ids %v for rank %d", side, ids, d.Rank)
	}
	for p := 0; p < d.PETs(); p++ {
		if !d.HasData(p) {
			continue
		}
		ex := d.Exclusive(p)
		for ax, id := range ids {
			if id == 0 && ex[ax].Len() != d.GlobalCount[ax] {
				return fmt.Errorf("%s axis %d is marked undecomposed but pet %d owns %s", side, ax, p, ex[ax])
			}
		}
	}
	return nil
}

// PrecomputeRedist binds the route to a redistribution from src to dst:
// every destination PET's exclusive region is filled from the source PETs
// that own it. Destination axis k reads source axis opts.RankTrans[k], and
// elements travel in destination axis order.
func (r *Route) PrecomputeRedist(kind ir.Kind, dst, src *ir.Decomposition, opts RedistOptions) error {
	const op = "PrecomputeRedist"
	if err := r.begin(op, kind); err != nil {
		return err
	}
	me := r.tr.Rank()
	for _, d := range []*ir.Decomposition{dst, src} {
		if err := d.Validate(); err != nil {
			return layoutError(op, me, err)
		}
		if err := r.checkPETs(op, fmt.Sprintf("decomposition %q", d.Name), d.PETs()); err != nil {
			return err
		}
	}
	rt := opts.rankTrans(dst.Rank)
	if err := checkTrans(rt, dst.GlobalCount, src.GlobalCount); err != nil {
		return newError(CodeInvalidLayout, op, me, "%v", err)
	}
	if err := checkDecompIDs(src, opts.OldDecompIDs, "source"); err != nil {
		return newError(CodeInvalidLayout, op, me, "%v", err)
	}
	if err := checkDecompIDs(dst, opts.NewDecompIDs, "destination"); err != nil {
		return newError(CodeInvalidLayout, op, me, "%v", err)
	}
	if p, q, ok := exclusiveOverlap(src); ok {
		return newError(CodeOverlap, op, me, "source pets %d and %d claim the same cells", p, q).
			with("src_a", itoa(p)).with("src_b", itoa(q))
	}

	// Source exclusive regions in destination axis order.
	srcEx := make([]ir.Region, src.PETs())
	for q := range srcEx {
		if src.HasData(q) {
			srcEx[q] = src.Exclusive(q).Permute(rt)
		}
	}
	for d := 0; d < dst.PETs(); d++ {
		if !dst.HasData(d) {
			continue
		}
		need := dst.Exclusive(d)
		got := 0
		for _, ex := range srcEx {
			if ex != nil {
				got += need.Intersect(ex).Count()
			}
		}
		if got != need.Count() {
			return newError(CodeCoverage, op, me,
				"destination pet %d needs %d cells, sources cover %d", d, need.Count(), got).
				with("pet", itoa(d))
		}
	}

	var order []int
	if !identity(rt) {
		order = rt
	}
	send := rtable.New(rtable.Send)
	recv := rtable.New(rtable.Recv)
	if dst.HasData(me) {
		need := dst.Exclusive(me)
		for q, ex := range srcEx {
			if ex != nil {
				recv.Add(rtable.Entry{Peer: q, Region: need.Intersect(ex)})
			}
		}
	}
	if src.HasData(me) {
		for d := 0; d < dst.PETs(); d++ {
			if !dst.HasData(d) {
				continue
			}
			reg := dst.Exclusive(d).Intersect(srcEx[me])
			if reg.Empty() {
				continue
			}
			send.Add(rtable.Entry{Peer: d, Region: reg.Unpermute(rt), Order: order})
		}
	}

	key, err := RedistKey(kind, dst, src, opts)
	if err != nil {
		return newError(CodeInvalidLayout, op, me, "route key: %v", err).wrap(err)
	}
	p := &plan{
		call:      op,
		op:        "redist",
		key:       key,
		kind:      kind,
		rank:      dst.Rank,
		send:      send,
		recv:      recv,
		srcCount:  src.GlobalCount,
		dstCount:  dst.GlobalCount,
		hasSrc:    send.Len() > 0,
		hasDst:    recv.Len() > 0,
		recvItems: -1,
	}
	if src.HasData(me) {
		a, err := src.Array(me, kind)
		if err != nil {
			return layoutError(op, me, err)
		}
		p.srcLoc = a
	}
	if dst.HasData(me) {
		a, err := dst.Array(me, kind)
		if err != nil {
			return layoutError(op, me, err)
		}
		p.dstLoc = a
	}
	return r.commit(p)
}

// RedistKey returns the structural key of a block redistribution.
func RedistKey(kind ir.Kind, dst, src *ir.Decomposition, opts RedistOptions) (string, error) {
	return ir.RouteKey("redist", kind, opts.params(dst.Rank), dst, src)
}
