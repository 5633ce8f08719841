package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/gridroute/internal/compiler"
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/route"
	"github.com/roach88/gridroute/internal/store"
	"github.com/roach88/gridroute/internal/testutil"
	"github.com/roach88/gridroute/internal/transport"
	"github.com/roach88/gridroute/internal/weights"
)

// DefaultTimeout bounds one scenario's runs so a schedule bug fails the
// scenario instead of hanging it.
const DefaultTimeout = 30 * time.Second

// Harness is the scenario execution engine.
// It binds and runs one route per PET over an in-process mesh with
// sequential route ids and a deterministic clock.
type Harness struct {
	store    *store.Store
	clock    *testutil.DeterministicClock
	logger   *slog.Logger
	timeout  time.Duration
	ids      func(pet int) route.IDGenerator
	bindOnly bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithStore records every bound route and every run in st.
func WithStore(st *store.Store) Option {
	return func(h *Harness) { h.store = st }
}

// WithLogger sets the logger handed to every route. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithIDs sets the route id generator of each PET. The default hands out
// "pet<N>-1", "pet<N>-2", ... which collide across scenarios sharing a
// store.
func WithIDs(ids func(pet int) route.IDGenerator) Option {
	return func(h *Harness) { h.ids = ids }
}

// WithBindOnly stops after binding. Routes are summarised and recorded
// but never run, and assertions are not evaluated.
func WithBindOnly() Option {
	return func(h *Harness) { h.bindOnly = true }
}

// WithTimeout bounds the run phase.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) { h.timeout = d }
}

// Run executes a test scenario and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext executes a test scenario and returns the result.
//
// Execution flow:
//  1. Compile the scenario's layouts and weights
//  2. Bind one route per PET (binding never communicates)
//  3. If every PET bound, fill sources and run the routes concurrently
//  4. Compare destinations with a serially computed reference
//  5. Evaluate assertions
//
// The returned error covers scenarios the harness cannot execute; route
// failures are recorded per PET and checked by assertions.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultTimeout,
		ids:     func(pet int) route.IDGenerator {
			return testutil.NewSequentialIDs(fmt.Sprintf("pet%d", pet))
		},
	}
	for _, opt := range opts {
		opt(h)
	}

	p, err := plan(scenario)
	if err != nil {
		return nil, err
	}

	if h.store != nil {
		next, err := h.store.NextSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read store sequence: %w", err)
		}
		h.clock = testutil.NewDeterministicClockAt(next - 1)
	} else {
		h.clock = testutil.NewDeterministicClock()
	}

	result, err := h.execute(ctx, p)
	if err != nil {
		return nil, err
	}

	if h.bindOnly {
		return result, nil
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// binding is a scenario resolved against its compiled bundle.
type binding struct {
	scenario *Scenario
	kind     ir.Kind
	options  route.Options
	size     int
	src, dst side
	weights  *weights.Table
	ref      reference
}

// plan compiles the scenario's layouts and resolves every name it uses.
func plan(s *Scenario) (*binding, error) {
	b, err := loadBundle(s.Layouts)
	if err != nil {
		return nil, err
	}
	p := &binding{scenario: s}
	if p.kind, err = s.kind(); err != nil {
		return nil, err
	}
	if p.options, err = route.ParseOptions(s.Options); err != nil {
		return nil, err
	}

	srcLayout, err := b.Layout(s.Src)
	if err != nil {
		return nil, err
	}
	p.src = sideOf(srcLayout)
	p.dst = p.src
	if s.Dst != "" {
		dstLayout, err := b.Layout(s.Dst)
		if err != nil {
			return nil, err
		}
		p.dst = sideOf(dstLayout)
	}

	needBlocks := s.Operation == OpHalo || s.Operation == OpRedist || s.Operation == OpRegrid
	for _, sd := range []struct {
		name string
		side side
	}{{s.Src, p.src}, {s.Dst, p.dst}} {
		if needBlocks && sd.side.block == nil {
			return nil, fmt.Errorf("%s needs block layouts, %q is a domain list", s.Operation, sd.name)
		}
		if !needBlocks && sd.side.list == nil {
			return nil, fmt.Errorf("%s needs domain-list layouts, %q is a block layout", s.Operation, sd.name)
		}
	}

	switch s.Operation {
	case OpHalo:
		p.ref = haloReference(p.src.count())
	case OpRedist:
		rt := s.RankTrans
		if rt == nil {
			rt = ir.NaturalOrder(len(p.dst.count()))
		}
		if !ir.ValidPermutation(rt, len(p.src.count())) {
			// Binding rejects it; the reference only needs a safe mapping.
			rt = ir.NaturalOrder(len(p.src.count()))
		}
		p.ref = redistReference(p.src.count(), rt)
	case OpRegrid:
		if p.weights, err = b.Table(s.Weights); err != nil {
			return nil, err
		}
		p.ref = regridReference(p.dst.count(), p.weights)
	case OpRedistV:
		p.src.des = ir.IdentityLayout(p.src.list.DEs())
		p.dst.des = ir.IdentityLayout(p.dst.list.DEs())
		p.ref = listReference(p.src.count())
	case OpDomList:
		p.ref = listReference(p.src.count())
	}

	p.size = s.PETs
	if p.size == 0 {
		p.size = max(p.src.pets(), p.dst.pets())
	}
	if p.size < 1 {
		return nil, fmt.Errorf("layouts %q and %q place no data on any PET", s.Src, s.Dst)
	}
	return p, nil
}

// loadBundle compiles a CUE package directory or a single CUE file.
func loadBundle(path string) (*compiler.Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat layouts: %w", err)
	}
	var (
		b    *compiler.Bundle
		errs []error
	)
	if info.IsDir() {
		b, errs = compiler.LoadDir(path)
	} else {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read layouts: %w", err)
		}
		b, errs = compiler.CompileString(path, string(src))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to compile layouts: %w", errors.Join(errs...))
	}
	return b, nil
}

// pet is one PET's route and buffers.
type pet struct {
	route    *route.Route
	src, dst ir.Buffer
	halo     bool
}

func (h *Harness) execute(ctx context.Context, p *binding) (*Result, error) {
	mesh := transport.NewMesh(p.size)
	defer mesh.Close()

	result := NewResult(p.size)
	result.Options = p.options
	pets := make([]*pet, p.size)

	// Binding is local, so a PET that fails cannot strand its peers.
	var g errgroup.Group
	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			r := route.New(mesh.Endpoint(i),
				route.WithOptions(p.options),
				route.WithLogger(h.logger),
				route.WithIDGenerator(h.ids(i)),
			)
			pets[i] = &pet{route: r, halo: p.scenario.Operation == OpHalo}
			if err := h.bind(r, p); err != nil {
				result.PETs[i].fail(err)
			}
			return nil
		})
	}
	_ = g.Wait()
	defer func() {
		for _, pt := range pets {
			_ = pt.route.Destruct()
		}
	}()

	if !result.Failed() && !h.bindOnly {
		for i, pt := range pets {
			if err := pt.alloc(p, i); err != nil {
				return nil, err
			}
		}
		h.runAll(ctx, p, pets, result)
	}

	for i, pt := range pets {
		out := &result.PETs[i]
		out.Route = pt.route.Summary()
		out.Bound = pt.route.State() == route.Bound
		out.Unmapped = pt.route.Unmapped()
		out.Recv = recvRegions(pt.route)
		if out.Code == "" && out.Bound && !h.bindOnly {
			if err := p.dst.walk(i, p.kind, func(g []int, off int, owned bool) {
				want, touched := p.ref(g, owned)
				if !touched {
					want = sentinel
				}
				if got := loadCell(pt.dst, off); !near(p.kind, got, want) {
					out.Mismatches = append(out.Mismatches, fmt.Sprintf("%v: got %g, want %g", g, got, want))
				}
			}); err != nil {
				return nil, err
			}
		}
	}

	// Sequence numbers are assigned in PET order so records are
	// reproducible regardless of goroutine scheduling.
	for i := range result.PETs {
		out := &result.PETs[i]
		if !out.Bound {
			continue
		}
		out.Route.Seq = h.clock.Next()
		for j := range out.Runs {
			out.Runs[j].Seq = h.clock.Next()
		}
	}
	if h.store != nil {
		if err := h.record(ctx, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// bind precomputes r for the scenario's operation.
func (h *Harness) bind(r *route.Route, p *binding) error {
	switch p.scenario.Operation {
	case OpHalo:
		return r.PrecomputeHalo(p.kind, p.src.block)
	case OpRedist:
		return r.PrecomputeRedist(p.kind, p.dst.block, p.src.block, route.RedistOptions{RankTrans: p.scenario.RankTrans})
	case OpRegrid:
		return r.PrecomputeRegrid(p.kind, p.dst.block, p.src.block, p.weights)
	case OpRedistV:
		return r.PrecomputeRedistV(p.kind, p.dst.list, p.src.list, route.RedistOptions{})
	case OpDomList:
		_, _, err := r.PrecomputeDomList(p.kind, p.src.des, p.dst.des, p.src.list, p.dst.list)
		return err
	}
	return fmt.Errorf("unknown operation %q", p.scenario.Operation)
}

// alloc creates pet i's buffers and fills the source with cellValue at
// owned cells and sentinel elsewhere.
func (pt *pet) alloc(p *binding, i int) error {
	n, err := p.src.extent(i, p.kind)
	if err != nil {
		return err
	}
	if pt.src, err = newBuffer(p.kind, n); err != nil {
		return err
	}
	count := p.src.count()
	if err := p.src.walk(i, p.kind, func(g []int, off int, owned bool) {
		v := float64(sentinel)
		if owned {
			v = cellValue(g, count)
		}
		storeCell(pt.src, off, v)
	}); err != nil {
		return err
	}
	if pt.halo {
		pt.dst = pt.src
		return nil
	}

	if n, err = p.dst.extent(i, p.kind); err != nil {
		return err
	}
	if pt.dst, err = newBuffer(p.kind, n); err != nil {
		return err
	}
	for j := 0; j < n; j++ {
		storeCell(pt.dst, j, sentinel)
	}
	return nil
}

// runAll runs every PET's route the scenario's number of times, each PET
// in its own goroutine. The first failure cancels the other PETs.
func (h *Harness) runAll(ctx context.Context, p *binding, pets []*pet, result *Result) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i, pt := range pets {
		g.Go(func() error {
			out := &result.PETs[i]
			var last []byte
			for n := 0; n < p.scenario.runs(); n++ {
				before := pt.route.Stats()
				err := pt.route.Run(gctx, pt.src, pt.dst, p.kind)
				after := pt.route.Stats()
				rec := ir.RunRecord{
					RouteID:   pt.route.ID(),
					BytesSent: after.BytesSent - before.BytesSent,
					BytesRecv: after.BytesRecv - before.BytesRecv,
					Messages:  after.Messages - before.Messages,
					Status:    "ok",
				}
				if err != nil {
					rec.Status = string(route.CodeOf(err))
					out.Runs = append(out.Runs, rec)
					out.fail(err)
					return err
				}
				out.Runs = append(out.Runs, rec)
				if last != nil && !bytes.Equal(last, pt.dst.Data) {
					out.Stable = false
				}
				last = append(last[:0], pt.dst.Data...)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// record writes every bound route and its runs to the store.
func (h *Harness) record(ctx context.Context, result *Result) error {
	for _, out := range result.PETs {
		if !out.Bound {
			continue
		}
		if err := h.store.WriteRoute(ctx, out.Route); err != nil {
			return fmt.Errorf("failed to record route %s: %w", out.Route.ID, err)
		}
		for _, run := range out.Runs {
			if _, _, err := h.store.WriteRun(ctx, run); err != nil {
				return fmt.Errorf("failed to record run of %s: %w", out.Route.ID, err)
			}
		}
	}
	return nil
}

func (o *PETOutcome) fail(err error) {
	o.Code = string(route.CodeOf(err))
	if o.Code == "" {
		o.Code = "ERROR"
	}
	o.Err = err.Error()
}

// recvRegions lists r's recv entries per peer.
func recvRegions(r *route.Route) map[int][]string {
	if r.State() != route.Bound {
		return nil
	}
	out := make(map[int][]string)
	for _, e := range r.RecvTable().Entries() {
		s := e.String()
		if e.Weights == nil && e.Indices == nil {
			s = e.Region.String()
		}
		out[e.Peer] = append(out[e.Peer], s)
	}
	return out
}
