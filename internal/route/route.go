package route

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/gridroute/internal/commtable"
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
	"github.com/roach88/gridroute/internal/transport"
)

// State is the Route lifecycle state.
type State int

const (
	// Unbound routes have no tables. Only precompute and SetOptions are valid.
	Unbound State = iota
	// Bound routes hold tables and may Run.
	Bound
	// Destroyed routes have released their tables; nothing is valid.
	Destroyed
)

func (s State) String() string {
	switch s {
	case Bound:
		return "bound"
	case Destroyed:
		return "destroyed"
	default:
		return "unbound"
	}
}

// Route owns one send table, one recv table, and the schedule built from
// them. See the package documentation for the lifecycle.
type Route struct {
	id     string
	tr     transport.Transport
	opts   Options
	logger *slog.Logger
	tel    *telemetry
	tp     trace.TracerProvider
	mp     metric.MeterProvider
	ids    IDGenerator
	seq    int
	seqSet bool

	state     State
	op        string
	key       string
	kind      ir.Kind
	rank      int
	send      *rtable.RTable
	recv      *rtable.RTable
	ct        *commtable.Table
	recvItems int
	srcExtent int
	dstExtent int
	weighted  bool
	zero      []int
	unmapped  []int
	hasSrc    bool
	hasDst    bool
	tag       int

	mu    sync.Mutex
	stats Stats
}

// RouteOption configures a Route at construction.
type RouteOption func(*Route)

// WithOptions sets the initial option bitmask. Invalid masks are reported
// by New through the first precompute call.
func WithOptions(o Options) RouteOption {
	return func(r *Route) { r.opts = o }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) RouteOption {
	return func(r *Route) { r.logger = l }
}

// WithIDGenerator sets the route id source. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) RouteOption {
	return func(r *Route) { r.ids = g }
}

// WithTracerProvider sets the tracer provider for Run spans. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) RouteOption {
	return func(r *Route) { r.tp = tp }
}

// WithMeterProvider sets the meter provider for Run metrics. Defaults to
// the global provider.
func WithMeterProvider(mp metric.MeterProvider) RouteOption {
	return func(r *Route) { r.mp = mp }
}

// WithTag sets the route's sequence number, which selects its message tag
// space. Every PET must pass the same n for its half of the route, and no
// two routes running over one transport may share n. Without WithTag the
// number is drawn from the transport when it implements
// transport.Sequencer, and is 0 otherwise. Do not pass WithTag to NewCache.
func WithTag(n int) RouteOption {
	return func(r *Route) { r.seq, r.seqSet = n, true }
}

// New constructs an Unbound route over tr. Routes over a transport.Sequencer
// are numbered in construction order, so every PET must construct its
// routes in the same order.
func New(tr transport.Transport, opts ...RouteOption) *Route {
	r := &Route{
		tr:     tr,
		opts:   OptDefault,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}
	for _, o := range opts {
		o(r)
	}
	if !r.seqSet {
		if s, ok := tr.(transport.Sequencer); ok {
			r.seq = s.NextSequence()
		}
	}
	r.id = r.ids.Generate()
	r.tel = newTelemetry(r.tp, r.mp)
	return r
}

// ID returns the PET-local route id.
func (r *Route) ID() string { return r.id }

// Seq returns the route's sequence number on its transport.
func (r *Route) Seq() int { return r.seq }

// Key returns the structural route key, or "" before binding.
func (r *Route) Key() string { return r.key }

// Op returns the precompute operation that bound the route.
func (r *Route) Op() string { return r.op }

// Kind returns the element kind the route was bound for.
func (r *Route) Kind() ir.Kind { return r.kind }

// State returns the lifecycle state.
func (r *Route) State() State { return r.state }

// Options returns the option bitmask.
func (r *Route) Options() Options { return r.opts }

// PET returns this PET's rank.
func (r *Route) PET() int { return r.tr.Rank() }

// HasSrcData reports whether this PET sends any data (including local copies).
func (r *Route) HasSrcData() bool { return r.hasSrc }

// HasDstData reports whether this PET receives any data.
func (r *Route) HasDstData() bool { return r.hasDst }

// SetOptions replaces the option bitmask. Unset groups take their defaults.
func (r *Route) SetOptions(o Options) error {
	if r.state == Destroyed {
		return newError(CodeDestroyed, "SetOptions", r.tr.Rank(), "route %s was destroyed", r.id)
	}
	n, err := o.Normalize()
	if err != nil {
		return newError(CodeInvalidOptions, "SetOptions", r.tr.Rank(), "%v", err)
	}
	r.opts = n
	return nil
}

// RecvItems returns the number of elements this PET receives per Run.
func (r *Route) RecvItems() int { return r.recvItems }

// SetRecvItems overrides the receive item count reported by RecvItems, for
// callers that redistribute into a differently sized array.
func (r *Route) SetRecvItems(n int) error {
	if r.state != Bound {
		return r.stateError("SetRecvItems")
	}
	if n < 0 {
		return newError(CodeInvalidLayout, "SetRecvItems", r.tr.Rank(), "negative item count %d", n)
	}
	r.recvItems = n
	return nil
}

// SumMaxPacketsPerPET sums, over peers, the larger of the packet counts
// sent to and received from that peer.
func (r *Route) SumMaxPacketsPerPET() int {
	if r.ct == nil {
		return 0
	}
	return r.ct.SumMaxPacketsPerPET()
}

// SumMaxRegionsPerPacket sums, over peers, the largest number of
// contiguous regions in any packet exchanged with that peer.
func (r *Route) SumMaxRegionsPerPacket() int {
	if r.ct == nil {
		return 0
	}
	return r.ct.SumMaxRegionsPerPacket()
}

// Unmapped returns the global linear indices of this PET's destination
// cells that no weight row maps, in ascending order. Only regrid routes
// report unmapped cells.
func (r *Route) Unmapped() []int {
	return append([]int(nil), r.unmapped...)
}

// SendTable returns the send table of a bound route.
func (r *Route) SendTable() *rtable.RTable { return r.send }

// RecvTable returns the recv table of a bound route.
func (r *Route) RecvTable() *rtable.RTable { return r.recv }

// Schedule returns the communication schedule of a bound route.
func (r *Route) Schedule() *commtable.Table { return r.ct }

// Destruct releases the tables. The route cannot be used afterwards.
func (r *Route) Destruct() error {
	if r.state == Destroyed {
		return newError(CodeDestroyed, "Destruct", r.tr.Rank(), "route %s was already destroyed", r.id)
	}
	r.logger.Debug("route destroyed", "id", r.id, "op", r.op, "pet", r.tr.Rank())
	r.clear()
	r.state = Destroyed
	return nil
}

func (r *Route) clear() {
	r.send, r.recv, r.ct = nil, nil, nil
	r.zero, r.unmapped = nil, nil
	r.recvItems, r.srcExtent, r.dstExtent = 0, 0, 0
	r.weighted, r.hasSrc, r.hasDst = false, false, false
}

// Validate checks the bound tables and schedule for internal consistency.
func (r *Route) Validate() error {
	if r.state != Bound {
		return r.stateError("Validate")
	}
	pet := r.tr.Rank()
	fail := func(format string, args ...any) error {
		return newError(CodeInvalidLayout, "Validate", pet, format, args...)
	}
	if r.send.Dir != rtable.Send || r.recv.Dir != rtable.Recv {
		return fail("table directions swapped")
	}
	if err := r.send.Validate(r.tr.Size(), r.rank); err != nil {
		return fail("%v", err)
	}
	if err := r.recv.Validate(r.tr.Size(), r.rank); err != nil {
		return fail("%v", err)
	}
	if r.ct.Me != pet || r.ct.Size != r.tr.Size() || r.ct.ElemSize != r.kind.Size() {
		return fail("schedule built for pet %d/%d elem %d", r.ct.Me, r.ct.Size, r.ct.ElemSize)
	}
	local := 0
	for _, c := range r.ct.Local {
		local += c.Send.Items
	}
	if got, want := r.ct.SendItems()+local, r.send.Items(); got != want {
		return fail("schedule sends %d items, table holds %d", got, want)
	}
	if got, want := r.ct.RecvItems(), r.recv.Items(); got != want {
		return fail("schedule receives %d items, table holds %d", got, want)
	}
	return nil
}

func (r *Route) stateError(op string) *Error {
	switch r.state {
	case Destroyed:
		return newError(CodeDestroyed, op, r.tr.Rank(), "route %s was destroyed", r.id)
	case Bound:
		return newError(CodeAlreadyBound, op, r.tr.Rank(), "route %s is already bound to %s", r.id, r.op)
	default:
		return newError(CodeNotBound, op, r.tr.Rank(), "route %s has not been precomputed", r.id)
	}
}

// Summary returns the store record for this route.
func (r *Route) Summary() ir.RouteRecord {
	rec := ir.RouteRecord{
		ID:       r.id,
		RouteKey: r.key,
		Op:       r.op,
		PET:      r.tr.Rank(),
		Options:  int(r.opts),
		Kind:     r.kind.String(),
	}
	if r.state == Bound {
		rec.SendEntries = r.send.Len()
		rec.RecvEntries = r.recv.Len()
		rec.SendItems = r.send.Items()
		rec.RecvItems = r.recvItems
		rec.Rounds = r.ct.Rounds
		var b strings.Builder
		_ = r.ct.Print(&b)
		rec.Schedule = b.String()
	}
	return rec
}

// Print writes the route header, both tables, and the schedule.
func (r *Route) Print(w io.Writer) error {
	key := r.key
	if len(key) > 12 {
		key = key[:12]
	}
	if _, err := fmt.Fprintf(w, "route %s op=%s kind=%s state=%s options=%s pet=%d/%d key=%s\n",
		r.id, r.op, r.kind, r.state, r.opts, r.tr.Rank(), r.tr.Size(), key); err != nil {
		return err
	}
	if r.state != Bound {
		return nil
	}
	if err := r.send.Print(w); err != nil {
		return err
	}
	if err := r.recv.Print(w); err != nil {
		return err
	}
	return r.ct.Print(w)
}

func (r *Route) String() string {
	var b strings.Builder
	_ = r.Print(&b)
	return b.String()
}

// Message tags are laid out as [key bits | route seq | message index]. The
// sequence number keeps routes on one transport apart. The key bits catch
// most PETs that constructed their routes in different orders: mismatched
// halves block instead of exchanging data.
const (
	tagIndexBits = 20
	tagSeqBits   = 32
	tagKeyBits   = 11

	maxTagSeq      = 1<<tagSeqBits - 1
	maxTagMessages = 1 << tagIndexBits
)

// tagBase returns the first tag of the route with structural key key and
// sequence number seq.
func tagBase(key string, seq int) int {
	var k uint64
	if len(key) >= 3 {
		if v, err := strconv.ParseUint(key[:3], 16, 16); err == nil {
			k = v & (1<<tagKeyBits - 1)
		}
	}
	return int(k<<(tagSeqBits+tagIndexBits) | uint64(seq)<<tagIndexBits)
}
