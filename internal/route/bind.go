package route

import (
	"github.com/roach88/gridroute/internal/commtable"
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
)

// plan is the outcome of one precompute before it is committed to a Route.
type plan struct {
	call      string // public operation name for errors
	op        string
	key       string
	kind      ir.Kind
	rank      int
	send      *rtable.RTable
	recv      *rtable.RTable
	srcLoc    ir.Locator
	dstLoc    ir.Locator
	srcCount  []int
	dstCount  []int
	weighted  bool
	unmapped  []int
	hasSrc    bool
	hasDst    bool
	recvItems int // -1 means the recv table's item count
}

// begin checks that op may start on r.
func (r *Route) begin(op string, kind ir.Kind) error {
	if r.state != Unbound {
		return r.stateError(op)
	}
	if !kind.Valid() {
		return newError(CodeUnsupportedKind, op, r.tr.Rank(), "invalid kind %v", kind)
	}
	n, err := r.opts.Normalize()
	if err != nil {
		return newError(CodeInvalidOptions, op, r.tr.Rank(), "%v", err)
	}
	if r.seq < 0 || r.seq > maxTagSeq {
		return newError(CodeInvalidOptions, op, r.tr.Rank(), "route sequence %d outside 0..%d", r.seq, maxTagSeq)
	}
	r.opts = n
	return nil
}

// commit resolves the plan into packets and a schedule and binds r. Nothing
// on r changes unless every step succeeds.
func (r *Route) commit(p *plan) error {
	pet := r.tr.Rank()
	p.send.Sort()
	p.recv.Sort()
	if err := p.send.Validate(r.tr.Size(), p.rank); err != nil {
		return newError(CodeInvalidLayout, p.call, pet, "send table: %v", err)
	}
	if err := p.recv.Validate(r.tr.Size(), p.rank); err != nil {
		return newError(CodeInvalidLayout, p.call, pet, "recv table: %v", err)
	}

	sendPk := make([]rtable.XPacket, 0, p.send.Len())
	for _, e := range p.send.Entries() {
		pk, err := rtable.Build(e, p.srcLoc, p.srcCount)
		if err != nil {
			return newError(CodeInvalidLayout, p.call, pet, "source layout: %v", err)
		}
		sendPk = append(sendPk, pk)
	}
	recvPk := make([]rtable.XPacket, 0, p.recv.Len())
	for _, e := range p.recv.Entries() {
		pk, err := rtable.Build(e, p.dstLoc, p.dstCount)
		if err != nil {
			return newError(CodeInvalidLayout, p.call, pet, "destination layout: %v", err)
		}
		recvPk = append(recvPk, pk)
	}

	ct, err := commtable.Build(pet, r.tr.Size(), p.kind.Size(), sendPk, recvPk)
	if err != nil {
		return newError(CodeInvalidLayout, p.call, pet, "%v", err).wrap(err)
	}
	for _, s := range ct.Steps {
		if len(s.Send) >= maxTagMessages || len(s.Recv) >= maxTagMessages {
			return newError(CodeInvalidLayout, p.call, pet, "%d packets with pet %d exceed the tag space of one route",
				max(len(s.Send), len(s.Recv)), s.Peer)
		}
	}

	var zero []int
	if p.weighted {
		seen := make(map[int]bool)
		for _, pk := range recvPk {
			for _, a := range pk.At {
				if !seen[a] {
					seen[a] = true
					zero = append(zero, a)
				}
			}
		}
	}

	r.op, r.key, r.kind, r.rank = p.op, p.key, p.kind, p.rank
	r.send, r.recv, r.ct = p.send, p.recv, ct
	r.srcExtent, r.dstExtent = ct.SendExtent(), ct.RecvExtent()
	r.weighted, r.zero, r.unmapped = p.weighted, zero, p.unmapped
	r.hasSrc, r.hasDst = p.hasSrc, p.hasDst
	r.recvItems = p.recvItems
	if r.recvItems < 0 {
		r.recvItems = p.recv.Items()
	}
	r.tag = tagBase(p.key, r.seq)
	r.state = Bound

	sp, rp := ct.Packets()
	r.logger.Debug("route bound",
		"id", r.id,
		"op", r.op,
		"pet", pet,
		"seq", r.seq,
		"kind", r.kind.String(),
		"send_entries", r.send.Len(),
		"recv_entries", r.recv.Len(),
		"send_packets", sp,
		"recv_packets", rp,
		"local_copies", len(ct.Local),
		"rounds", ct.Rounds,
	)
	return nil
}

// checkPETs verifies a layout describes exactly the transport's PETs.
func (r *Route) checkPETs(op, what string, n int) error {
	if n != r.tr.Size() {
		return newError(CodeInvalidLayout, op, r.tr.Rank(), "%s describes %d PETs, transport has %d", what, n, r.tr.Size())
	}
	return nil
}

// exclusiveOverlap returns the first pair of PETs whose exclusive regions
// intersect, in (p, q) order with p < q.
func exclusiveOverlap(d *ir.Decomposition) (int, int, bool) {
	for p := 0; p < d.PETs(); p++ {
		if !d.HasData(p) {
			continue
		}
		ep := d.Exclusive(p)
		for q := p + 1; q < d.PETs(); q++ {
			if d.HasData(q) && ep.Overlaps(d.Exclusive(q)) {
				return p, q, true
			}
		}
	}
	return 0, 0, false
}

// layoutError maps an ir validation error onto the route taxonomy.
func layoutError(op string, pet int, err error) *Error {
	code := CodeInvalidLayout
	if isMalformed(err) {
		code = CodeMalformedIndex
	}
	return newError(code, op, pet, "%v", err).wrap(err)
}
