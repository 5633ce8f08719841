package route

import (
	"fmt"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
)

// listPlan computes tables for domain-list layouts, where each DE owns a
// list of blocks packed into one local vector and DEs map to PETs through
// a DE layout. Both PrecomputeRedistV and PrecomputeDomList use it.
func (r *Route) listPlan(op, name string, kind ir.Kind, srcLayout, dstLayout ir.DELayout, src, dst *ir.DomainList, opts RedistOptions) (*plan, error) {
	me := r.tr.Rank()
	for _, l := range []*ir.DomainList{src, dst} {
		if err := l.Validate(); err != nil {
			return nil, layoutError(op, me, err)
		}
	}
	if err := srcLayout.Validate(r.tr.Size()); err != nil {
		return nil, newError(CodeInvalidLayout, op, me, "source %v", err)
	}
	if err := dstLayout.Validate(r.tr.Size()); err != nil {
		return nil, newError(CodeInvalidLayout, op, me, "destination %v", err)
	}
	if len(srcLayout) != src.DEs() || len(dstLayout) != dst.DEs() {
		return nil, newError(CodeInvalidLayout, op, me,
			"layouts place %d/%d DEs, lists describe %d/%d", len(srcLayout), len(dstLayout), src.DEs(), dst.DEs())
	}
	if opts.OldDecompIDs != nil || opts.NewDecompIDs != nil {
		return nil, newError(CodeInvalidLayout, op, me, "decomposition ids apply to block decompositions only")
	}
	rt := opts.rankTrans(dst.Rank)
	if err := checkTrans(rt, dst.GlobalCount, src.GlobalCount); err != nil {
		return nil, newError(CodeInvalidLayout, op, me, "%v", err)
	}

	// Source blocks in destination axis order, flattened with their DE.
	type srcBlock struct {
		de     int
		region ir.Region
	}
	var srcs []srcBlock
	for de, blocks := range src.Blocks {
		for _, b := range blocks {
			srcs = append(srcs, srcBlock{de: de, region: b.Region.Permute(rt)})
		}
	}
	for i, a := range srcs {
		for _, b := range srcs[:i] {
			if a.region.Overlaps(b.region) {
				return nil, newError(CodeOverlap, op, me,
					"source DEs %d and %d both claim %s", b.de, a.de, a.region.Intersect(b.region)).
					with("src_a", itoa(b.de)).with("src_b", itoa(a.de))
			}
		}
	}
	for de, blocks := range dst.Blocks {
		for i, b := range blocks {
			got := 0
			for _, s := range srcs {
				got += b.Region.Intersect(s.region).Count()
			}
			if got != b.Region.Count() {
				return nil, newError(CodeCoverage, op, me,
					"destination DE %d block %d needs %d cells, sources cover %d", de, i, b.Region.Count(), got).
					with("de", itoa(de))
			}
		}
	}

	var order []int
	if !identity(rt) {
		order = rt
	}
	send := rtable.New(rtable.Send)
	recv := rtable.New(rtable.Recv)
	p := &plan{
		call:      op,
		op:        name,
		kind:      kind,
		rank:      dst.Rank,
		send:      send,
		recv:      recv,
		srcCount:  src.GlobalCount,
		dstCount:  dst.GlobalCount,
		recvItems: -1,
	}

	if de, ok := dstLayout.DEOf(me); ok {
		for _, b := range dst.Blocks[de] {
			for _, s := range srcs {
				recv.Add(rtable.Entry{Peer: srcLayout[s.de], Region: b.Region.Intersect(s.region)})
			}
		}
		p.dstLoc = dst.Locator(de)
		p.hasDst = dst.Items(de) > 0
	}
	if de, ok := srcLayout.DEOf(me); ok {
		for dde, blocks := range dst.Blocks {
			for _, b := range blocks {
				for _, s := range srcs {
					if s.de != de {
						continue
					}
					reg := b.Region.Intersect(s.region)
					if reg.Empty() {
						continue
					}
					send.Add(rtable.Entry{Peer: dstLayout[dde], Region: reg.Unpermute(rt), Order: order})
				}
			}
		}
		p.srcLoc = src.Locator(de)
		p.hasSrc = src.Items(de) > 0
	}
	return p, nil
}

// PrecomputeRedistV binds the route to a redistribution between uneven
// decompositions: DE i of each list lives on PET i and owns a packed list
// of blocks. ir.VectorDecompose builds the common 1-D case from per-PET
// item counts. Coverage and overlap rules match PrecomputeRedist.
func (r *Route) PrecomputeRedistV(kind ir.Kind, dst, src *ir.DomainList, opts RedistOptions) error {
	const op = "PrecomputeRedistV"
	if err := r.begin(op, kind); err != nil {
		return err
	}
	me := r.tr.Rank()
	for _, l := range []*ir.DomainList{src, dst} {
		if err := r.checkPETs(op, fmt.Sprintf("domain list %q", l.Name), l.DEs()); err != nil {
			return err
		}
	}
	id := ir.IdentityLayout(r.tr.Size())
	p, err := r.listPlan(op, "redistv", kind, id, id, src, dst, opts)
	if err != nil {
		return err
	}
	if p.key, err = RedistVKey(kind, dst, src, opts); err != nil {
		return newError(CodeInvalidLayout, op, me, "route key: %v", err).wrap(err)
	}
	return r.commit(p)
}

// PrecomputeDomList binds the route to a transfer between irregular
// decompositions described as domain lists, with DEs placed on PETs by the
// two layouts. It reports whether this PET has source and destination
// data, so PETs outside the transfer can skip Run. Source blocks that
// overlap are a configuration error; destination cells no source block
// covers are a coverage error.
func (r *Route) PrecomputeDomList(kind ir.Kind, srcLayout, dstLayout ir.DELayout, src, dst *ir.DomainList) (hasSrcData, hasDstData bool, err error) {
	const op = "PrecomputeDomList"
	if err := r.begin(op, kind); err != nil {
		return false, false, err
	}
	p, err := r.listPlan(op, "domlist", kind, srcLayout, dstLayout, src, dst, RedistOptions{})
	if err != nil {
		return false, false, err
	}
	if p.key, err = DomListKey(kind, srcLayout, dstLayout, src, dst); err != nil {
		return false, false, newError(CodeInvalidLayout, op, r.tr.Rank(), "route key: %v", err).wrap(err)
	}
	if err := r.commit(p); err != nil {
		return false, false, err
	}
	return r.hasSrc, r.hasDst, nil
}

// RedistVKey returns the structural key of a vector redistribution.
func RedistVKey(kind ir.Kind, dst, src *ir.DomainList, opts RedistOptions) (string, error) {
	return ir.RouteKey("redistv", kind, opts.params(dst.Rank), dst, src)
}

// DomListKey returns the structural key of a domain-list transfer.
func DomListKey(kind ir.Kind, srcLayout, dstLayout ir.DELayout, src, dst *ir.DomainList) (string, error) {
	return ir.RouteKey("domlist", kind, nil, srcLayout, dstLayout, src, dst)
}
