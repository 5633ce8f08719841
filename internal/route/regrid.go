package route

import (
	"errors"
	"sort"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
	"github.com/roach88/gridroute/internal/weights"
)

// ownerOf returns a weights.Owner that maps a global linear index of d to
// the PET whose exclusive region holds it. Exclusive regions must already
// be known to be disjoint.
func ownerOf(d *ir.Decomposition) weights.Owner {
	ex := make([]ir.Region, d.PETs())
	for p := range ex {
		ex[p] = d.Exclusive(p)
	}
	idx := make([]int, d.Rank)
	return func(lin int) (int, bool) {
		ir.Unravel(lin, d.GlobalCount, idx)
		for p, reg := range ex {
			if reg != nil && reg.Contains(idx) {
				return p, true
			}
		}
		return 0, false
	}
}

func cellCount(counts []int) int {
	n := 1
	for _, c := range counts {
		n *= c
	}
	return n
}

// PrecomputeRegrid binds the route to a weighted transfer: Run sets every
// destination cell that has weights to the sum of factor * source value
// over its terms. Source and destination may have different shapes; w
// addresses both by global linear index (axis 0 fastest). Destination cells
// without weights are left untouched and listed by Unmapped.
func (r *Route) PrecomputeRegrid(kind ir.Kind, dst, src *ir.Decomposition, w *weights.Table) error {
	const op = "PrecomputeRegrid"
	if err := r.begin(op, kind); err != nil {
		return err
	}
	me := r.tr.Rank()
	if kind != ir.KindR4 && kind != ir.KindR8 {
		return newError(CodeUnsupportedKind, op, me, "weighted transfer needs R4 or R8, got %v", kind)
	}
	for _, d := range []*ir.Decomposition{dst, src} {
		if err := d.Validate(); err != nil {
			return layoutError(op, me, err)
		}
		if err := r.checkPETs(op, "decomposition "+d.Name, d.PETs()); err != nil {
			return err
		}
	}
	if w == nil {
		return newError(CodeInvalidLayout, op, me, "no weight table")
	}
	if err := w.Validate(cellCount(dst.GlobalCount), cellCount(src.GlobalCount)); err != nil {
		return newError(CodeInvalidLayout, op, me, "%v", err)
	}
	if p, q, ok := exclusiveOverlap(src); ok {
		return newError(CodeOverlap, op, me, "source pets %d and %d claim the same cells", p, q).
			with("src_a", itoa(p)).with("src_b", itoa(q))
	}
	if p, q, ok := exclusiveOverlap(dst); ok {
		return newError(CodeOverlap, op, me, "destination pets %d and %d claim the same cells", p, q).
			with("dst_a", itoa(p)).with("dst_b", itoa(q))
	}

	pieces, err := w.Split(ownerOf(dst), ownerOf(src))
	if err != nil {
		var oe *weights.OwnerError
		if errors.As(err, &oe) {
			return newError(CodeCoverage, op, me, "%s cell %d is owned by no pet", oe.Side, oe.Index).
				with("side", oe.Side).with("index", itoa(oe.Index)).wrap(err)
		}
		return newError(CodeInvalidLayout, op, me, "%v", err).wrap(err)
	}

	send := rtable.New(rtable.Send)
	recv := rtable.New(rtable.Recv)
	for q := 0; q < src.PETs(); q++ {
		if pc, ok := pieces[weights.Pair{Src: q, Dst: me}]; ok {
			recv.Add(rtable.Entry{Peer: q, Weights: pc})
		}
	}
	for d := 0; d < dst.PETs(); d++ {
		if pc, ok := pieces[weights.Pair{Src: me, Dst: d}]; ok {
			send.Add(rtable.Entry{Peer: d, Indices: pc.Sources})
		}
	}

	var unmapped []int
	if dst.HasData(me) {
		mapped := w.Mapped()
		dst.Exclusive(me).Walk(nil, func(idx []int) {
			lin := ir.Ravel(idx, dst.GlobalCount)
			if i := sort.SearchInts(mapped, lin); i == len(mapped) || mapped[i] != lin {
				unmapped = append(unmapped, lin)
			}
		})
		sort.Ints(unmapped)
	}

	key, err := RegridKey(kind, dst, src, w)
	if err != nil {
		return newError(CodeInvalidLayout, op, me, "route key: %v", err).wrap(err)
	}
	p := &plan{
		call:      op,
		op:        "regrid",
		key:       key,
		kind:      kind,
		rank:      dst.Rank,
		send:      send,
		recv:      recv,
		srcCount:  src.GlobalCount,
		dstCount:  dst.GlobalCount,
		weighted:  true,
		unmapped:  unmapped,
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

// RegridKey returns the structural key of a weighted transfer.
func RegridKey(kind ir.Kind, dst, src *ir.Decomposition, w *weights.Table) (string, error) {
	return ir.RouteKey("regrid", kind, nil, dst, src, w)
}
