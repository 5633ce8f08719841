package route

import (
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/rtable"
	"github.com/roach88/gridroute/internal/weights"
)

// gather copies the packets' elements from the source buffer into out, in
// packet then span order.
func (x *exec) gather(out []byte, packets []rtable.XPacket) {
	b := x.src
	es, stride := x.es, b.ElemStride()
	pos := 0
	for _, p := range packets {
		if x.r.opts&OptVector != 0 {
			for _, off := range p.Offsets() {
				at := off * stride * es
				pos += copy(out[pos:pos+es], b.Data[at:at+es])
			}
			continue
		}
		for _, s := range p.Spans {
			if stride == 1 {
				pos += copy(out[pos:], b.Data[s.Offset*es:(s.Offset+s.Len)*es])
				continue
			}
			for i := 0; i < s.Len; i++ {
				at := (s.Offset + i) * stride * es
				pos += copy(out[pos:pos+es], b.Data[at:at+es])
			}
		}
	}
}

// scatter writes in to the destination buffer at the packets' elements.
// Weighted packets accumulate instead of copying.
func (x *exec) scatter(in []byte, packets []rtable.XPacket) {
	b := x.dst
	es, stride := x.es, b.ElemStride()
	pos := 0
	for _, p := range packets {
		if p.Weights != nil {
			n := p.Items * es
			x.accumulate(in[pos:pos+n], p)
			pos += n
			continue
		}
		if x.r.opts&OptVector != 0 {
			for _, off := range p.Offsets() {
				at := off * stride * es
				pos += copy(b.Data[at:at+es], in[pos:pos+es])
			}
			continue
		}
		for _, s := range p.Spans {
			if stride == 1 {
				pos += copy(b.Data[s.Offset*es:(s.Offset+s.Len)*es], in[pos:])
				continue
			}
			for i := 0; i < s.Len; i++ {
				at := (s.Offset + i) * stride * es
				pos += copy(b.Data[at:at+es], in[pos:pos+es])
			}
		}
	}
}

// slices returns the packets' spans as sub-slices of a contiguous buffer,
// for vectored transports.
func (x *exec) slices(b ir.Buffer, packets []rtable.XPacket) [][]byte {
	es := x.es
	var out [][]byte
	for _, p := range packets {
		for _, s := range p.Spans {
			out = append(out, b.Data[s.Offset*es:(s.Offset+s.Len)*es])
		}
	}
	return out
}

// physical maps logical element offsets to physical ones for the
// destination stride.
func (x *exec) physical(at []int) []int {
	stride := x.dst.ElemStride()
	if stride == 1 {
		return at
	}
	out := make([]int, len(at))
	for i, a := range at {
		out[i] = a * stride
	}
	return out
}

func (x *exec) accumulate(vals []byte, p rtable.XPacket) {
	at := x.physical(p.At)
	v := ir.Buffer{Data: vals}
	switch x.r.kind {
	case ir.KindR4:
		weights.Accumulate(ir.View[float32](x.dst), at, p.Weights, ir.View[float32](v))
	case ir.KindR8:
		weights.Accumulate(ir.View[float64](x.dst), at, p.Weights, ir.View[float64](v))
	}
}

// zero clears every destination cell a weight row maps, so accumulation
// starts from zero on every Run.
func (x *exec) zero() {
	if len(x.r.zero) == 0 {
		return
	}
	at := x.physical(x.r.zero)
	switch x.r.kind {
	case ir.KindR4:
		weights.Zero(ir.View[float32](x.dst), at)
	case ir.KindR8:
		weights.Zero(ir.View[float64](x.dst), at)
	}
}
