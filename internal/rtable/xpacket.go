package rtable

import (
	"fmt"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/weights"
)

// Span is a run of consecutive logical elements in a local buffer.
type Span struct {
	Offset int `json:"offset"`
	Len    int `json:"len"`
}

// XPacket is an entry resolved against a local array: the ordered element
// spans to gather (send) or scatter (recv). Weighted recv packets carry the
// destination element of every weight row in At instead of spans.
type XPacket struct {
	Peer    int            `json:"peer"`
	Spans   []Span         `json:"spans,omitempty"`
	At      []int          `json:"at,omitempty"`
	Weights *weights.Piece `json:"-"`
	Items   int            `json:"items"`
}

// Build resolves e against a local layout. globalCount is the global extent
// of the array the entry addresses; it is used to unravel linear indices.
func Build(e Entry, loc ir.Locator, globalCount []int) (XPacket, error) {
	p := XPacket{Peer: e.Peer, Weights: e.Weights, Items: e.Items()}
	idx := make([]int, len(globalCount))

	switch {
	case e.Weights != nil:
		p.At = make([]int, len(e.Weights.Rows))
		for i, r := range e.Weights.Rows {
			off, ok := loc.Locate(ir.Unravel(r.Dst, globalCount, idx))
			if !ok {
				return XPacket{}, fmt.Errorf("weight row dst %d %v not in local array", r.Dst, idx)
			}
			p.At[i] = off
		}
	case e.Indices != nil:
		for _, lin := range e.Indices {
			off, ok := loc.Locate(ir.Unravel(lin, globalCount, idx))
			if !ok {
				return XPacket{}, fmt.Errorf("index %d %v not in local array", lin, idx)
			}
			p.push(off)
		}
	default:
		var err error
		e.Region.Walk(e.Order, func(g []int) {
			if err != nil {
				return
			}
			off, ok := loc.Locate(g)
			if !ok {
				err = fmt.Errorf("index %v of region %s not in local array", g, e.Region)
				return
			}
			p.push(off)
		})
		if err != nil {
			return XPacket{}, err
		}
	}
	return p, nil
}

func (p *XPacket) push(off int) {
	if n := len(p.Spans); n > 0 && p.Spans[n-1].Offset+p.Spans[n-1].Len == off {
		p.Spans[n-1].Len++
		return
	}
	p.Spans = append(p.Spans, Span{Offset: off, Len: 1})
}

// Regions returns the number of contiguous spans.
func (p XPacket) Regions() int {
	return len(p.Spans)
}

// Bytes returns the wire size for elements of elemSize bytes.
func (p XPacket) Bytes(elemSize int) int {
	return p.Items * elemSize
}

// Offsets expands the spans into one element offset per item.
func (p XPacket) Offsets() []int {
	out := make([]int, 0, p.Items)
	for _, s := range p.Spans {
		for i := 0; i < s.Len; i++ {
			out = append(out, s.Offset+i)
		}
	}
	return out
}

// Extent returns one past the largest element offset the packet touches.
func (p XPacket) Extent() int {
	n := 0
	for _, s := range p.Spans {
		n = max(n, s.Offset+s.Len)
	}
	for _, a := range p.At {
		n = max(n, a+1)
	}
	return n
}
