package route

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/gridroute/internal/commtable"
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
	"github.com/roach88/gridroute/internal/transport"
)

// RunStats counts the traffic of one or more runs.
type RunStats struct {
	BytesSent int64
	BytesRecv int64
	Messages  int64
}

func (s *RunStats) add(o RunStats) {
	s.BytesSent += o.BytesSent
	s.BytesRecv += o.BytesRecv
	s.Messages += o.Messages
}

// Stats are cumulative counters over every Run of a route.
type Stats struct {
	Runs     int64
	Failures int64
	RunStats
}

// Stats returns the cumulative run counters.
func (r *Route) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// record adds one run's traffic to the cumulative counters.
func (r *Route) record(rs RunStats, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Runs++
	if err != nil {
		r.stats.Failures++
	}
	r.stats.add(rs)
}

// message is one wire message: the packets it carries, in order.
type message struct {
	tag     int
	packets []rtable.XPacket
	items   int
}

// messages groups a step's packets into wire messages for the option set.
func (r *Route) messages(packets []rtable.XPacket) []message {
	if len(packets) == 0 {
		return nil
	}
	if r.opts.PerPeer() {
		m := message{tag: r.tag, packets: packets}
		for _, p := range packets {
			m.items += p.Items
		}
		return []message{m}
	}
	out := make([]message, len(packets))
	for i, p := range packets {
		out[i] = message{tag: r.tag + i, packets: packets[i : i+1], items: p.Items}
	}
	return out
}

// Run executes the bound schedule: local copies first, then the exchanges
// with every peer. src is read at the send table's cells and dst written at
// the recv table's cells; for halo routes pass the same buffer twice. Run is
// collective and never modifies the route's tables.
func (r *Route) Run(ctx context.Context, src, dst ir.Buffer, kind ir.Kind) (err error) {
	const op = "Run"
	if r.state != Bound {
		if r.state == Unbound {
			return newError(CodeNotBound, op, r.tr.Rank(), "route %s has not been precomputed", r.id)
		}
		return r.stateError(op)
	}
	if err := r.checkBuffers(src, dst, kind); err != nil {
		return err
	}

	ctx, tok := r.tel.start(ctx, r)
	var rs RunStats
	defer func() {
		r.record(rs, err)
		r.tel.end(ctx, tok, r, rs, err)
	}()

	x := &exec{r: r, src: src, dst: dst, es: r.kind.Size()}
	if _, ok := r.tr.(transport.Vectored); ok && r.opts&OptNoPack != 0 && !r.weighted {
		x.vec = src.Contiguous() && dst.Contiguous()
	}

	if r.weighted {
		x.zero()
	}
	for _, c := range r.ct.Local {
		x.local(c)
	}

	if r.opts.Sync() {
		err = x.runSync(ctx, &rs)
	} else {
		err = x.runAsync(ctx, &rs)
	}
	if err != nil {
		var re *Error
		if errors.As(err, &re) {
			return err
		}
		return newError(CodeTransport, op, r.tr.Rank(), "exchange failed").wrap(err)
	}
	return nil
}

func (r *Route) checkBuffers(src, dst ir.Buffer, kind ir.Kind) error {
	const op = "Run"
	pet := r.tr.Rank()
	if kind != r.kind {
		return newError(CodeKindMismatch, op, pet, "route bound for %v, run with %v", r.kind, kind).
			with("bound", r.kind.String()).with("run", kind.String())
	}
	for _, b := range []struct {
		name string
		buf  ir.Buffer
		need int
	}{{"source", src, r.srcExtent}, {"destination", dst, r.dstExtent}} {
		if b.need == 0 {
			continue
		}
		if b.buf.Kind != r.kind {
			return newError(CodeKindMismatch, op, pet, "%s buffer holds %v, route bound for %v", b.name, b.buf.Kind, r.kind)
		}
		if b.buf.Count < b.need {
			return newError(CodeBufferTooSmall, op, pet, "%s buffer holds %d elements, schedule addresses %d", b.name, b.buf.Count, b.need).
				with("need", itoa(b.need)).with("have", itoa(b.buf.Count))
		}
		if err := b.buf.Validate(); err != nil {
			return newError(CodeBufferTooSmall, op, pet, "%s %v", b.name, err)
		}
	}
	return nil
}

// exec carries the state of one Run.
type exec struct {
	r   *Route
	src ir.Buffer
	dst ir.Buffer
	es  int
	vec bool
}

func (x *exec) runSync(ctx context.Context, rs *RunStats) error {
	for _, s := range x.r.ct.Steps {
		if s.SendFirst {
			if err := x.sendStep(ctx, s, rs); err != nil {
				return err
			}
			if err := x.recvStep(ctx, s, rs); err != nil {
				return err
			}
			continue
		}
		if err := x.recvStep(ctx, s, rs); err != nil {
			return err
		}
		if err := x.sendStep(ctx, s, rs); err != nil {
			return err
		}
	}
	return nil
}

func (x *exec) runAsync(ctx context.Context, rs *RunStats) error {
	g, gctx := errgroup.WithContext(ctx)
	sent := make([]RunStats, len(x.r.ct.Steps))
	for i, s := range x.r.ct.Steps {
		if len(s.Send) == 0 {
			continue
		}
		g.Go(func() error {
			return x.sendStep(gctx, s, &sent[i])
		})
	}
	var recvd RunStats
	var rerr error
	for _, s := range x.r.ct.Steps {
		if rerr = x.recvStep(gctx, s, &recvd); rerr != nil {
			break
		}
	}
	werr := g.Wait()
	for _, s := range sent {
		rs.add(s)
	}
	rs.add(recvd)
	if rerr != nil {
		return rerr
	}
	return werr
}

func (x *exec) sendStep(ctx context.Context, s commtable.Step, rs *RunStats) error {
	tr := x.r.tr
	for _, m := range x.r.messages(s.Send) {
		var err error
		if x.vec {
			err = tr.(transport.Vectored).SendVec(ctx, s.Peer, m.tag, x.slices(x.src, m.packets))
		} else {
			buf := make([]byte, m.items*x.es)
			x.gather(buf, m.packets)
			err = tr.Send(ctx, s.Peer, m.tag, buf)
		}
		if err != nil {
			return fmt.Errorf("send to pet %d tag %d: %w", s.Peer, m.tag, err)
		}
		rs.BytesSent += int64(m.items * x.es)
		rs.Messages++
	}
	return nil
}

func (x *exec) recvStep(ctx context.Context, s commtable.Step, rs *RunStats) error {
	tr := x.r.tr
	for _, m := range x.r.messages(s.Recv) {
		want := m.items * x.es
		var (
			n   int
			err error
		)
		if x.vec {
			n, err = tr.(transport.Vectored).RecvVec(ctx, s.Peer, m.tag, x.slices(x.dst, m.packets))
		} else {
			buf := make([]byte, want)
			if n, err = tr.Recv(ctx, s.Peer, m.tag, buf); err == nil && n == want {
				x.scatter(buf, m.packets)
			}
		}
		if err != nil {
			return fmt.Errorf("recv from pet %d tag %d: %w", s.Peer, m.tag, err)
		}
		if n != want {
			return newError(CodeTransport, "Run", x.r.tr.Rank(),
				"message from pet %d tag %d has %d bytes, schedule expects %d", s.Peer, m.tag, n, want)
		}
		rs.BytesRecv += int64(n)
	}
	return nil
}

// local performs one self-addressed transfer without the transport.
func (x *exec) local(c commtable.LocalCopy) {
	buf := make([]byte, c.Send.Items*x.es)
	x.gather(buf, []rtable.XPacket{c.Send})
	x.scatter(buf, []rtable.XPacket{c.Recv})
}
