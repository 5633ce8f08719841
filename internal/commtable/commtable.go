// Package commtable turns resolved route tables into a PET-local
// communication schedule: a list of local copies plus pairwise exchange
// steps ordered by a round-robin tournament so that every pair of PETs
// meets in exactly one round and no PET waits on two peers at once.
package commtable

import (
	"fmt"
	"io"

	"github.com/roach88/gridroute/internal/rtable"
)

// LocalCopy pairs a send packet with the recv packet it feeds on the same PET.
type LocalCopy struct {
	Send rtable.XPacket
	Recv rtable.XPacket
}

// Step is the exchange with one peer in one round. The lower PET of the
// pair sends first in blocking mode.
type Step struct {
	Round     int
	Peer      int
	SendFirst bool
	Send      []rtable.XPacket
	Recv      []rtable.XPacket
}

// SendItems returns the elements sent in the step.
func (s Step) SendItems() int {
	n := 0
	for _, p := range s.Send {
		n += p.Items
	}
	return n
}

// RecvItems returns the elements received in the step.
func (s Step) RecvItems() int {
	n := 0
	for _, p := range s.Recv {
		n += p.Items
	}
	return n
}

// Table is the schedule for one PET. It is never modified after Build.
type Table struct {
	Me       int
	Size     int
	ElemSize int
	Rounds   int
	Local    []LocalCopy
	Steps    []Step
}

// Rounds returns the number of tournament rounds for size PETs.
func Rounds(size int) int {
	n := size + size%2
	if n < 2 {
		return 1
	}
	return n - 1
}

// Partner returns the peer of me in round r, or -1 for a bye. The schedule
// is the circle method: PET n-1 is fixed and the rest rotate.
func Partner(me, round, size int) int {
	n := size + size%2
	if n < 2 {
		return -1
	}
	m := n - 1
	var p int
	switch {
	case me == m:
		p = round
	case me == round:
		p = m
	default:
		p = ((2*round-me)%m + m) % m
	}
	if p >= size || p == me {
		return -1
	}
	return p
}

// Build assembles the schedule for PET me. send and recv hold one packet
// per table entry in table order; self-addressed packets become local
// copies, paired in order.
func Build(me, size, elemSize int, send, recv []rtable.XPacket) (*Table, error) {
	if size < 1 || me < 0 || me >= size {
		return nil, fmt.Errorf("commtable: pet %d outside 0..%d", me, size-1)
	}
	if elemSize < 1 {
		return nil, fmt.Errorf("commtable: element size %d", elemSize)
	}
	t := &Table{Me: me, Size: size, ElemSize: elemSize, Rounds: Rounds(size)}

	sendBy := make(map[int][]rtable.XPacket)
	recvBy := make(map[int][]rtable.XPacket)
	for _, p := range send {
		if p.Peer < 0 || p.Peer >= size {
			return nil, fmt.Errorf("commtable: send peer %d outside 0..%d", p.Peer, size-1)
		}
		sendBy[p.Peer] = append(sendBy[p.Peer], p)
	}
	for _, p := range recv {
		if p.Peer < 0 || p.Peer >= size {
			return nil, fmt.Errorf("commtable: recv peer %d outside 0..%d", p.Peer, size-1)
		}
		recvBy[p.Peer] = append(recvBy[p.Peer], p)
	}

	ls, lr := sendBy[me], recvBy[me]
	if len(ls) != len(lr) {
		return nil, fmt.Errorf("commtable: %d local send packets, %d local recv packets", len(ls), len(lr))
	}
	for i := range ls {
		if ls[i].Items != lr[i].Items {
			return nil, fmt.Errorf("commtable: local packet %d sends %d items, receives %d", i, ls[i].Items, lr[i].Items)
		}
		t.Local = append(t.Local, LocalCopy{Send: ls[i], Recv: lr[i]})
	}

	for r := 0; r < t.Rounds; r++ {
		p := Partner(me, r, size)
		if p < 0 {
			continue
		}
		s, rv := sendBy[p], recvBy[p]
		if len(s) == 0 && len(rv) == 0 {
			continue
		}
		t.Steps = append(t.Steps, Step{Round: r, Peer: p, SendFirst: me < p, Send: s, Recv: rv})
	}
	return t, nil
}

// SendItems returns the elements this PET sends to other PETs.
func (t *Table) SendItems() int {
	n := 0
	for _, s := range t.Steps {
		n += s.SendItems()
	}
	return n
}

// RecvItems returns the elements this PET receives from other PETs plus
// local copies.
func (t *Table) RecvItems() int {
	n := 0
	for _, c := range t.Local {
		n += c.Recv.Items
	}
	for _, s := range t.Steps {
		n += s.RecvItems()
	}
	return n
}

// Packets returns the number of remote send and recv packets.
func (t *Table) Packets() (send, recv int) {
	for _, s := range t.Steps {
		send += len(s.Send)
		recv += len(s.Recv)
	}
	return send, recv
}

// SumMaxPacketsPerPET sums, over peers, the larger of the packet counts
// sent to and received from that peer.
func (t *Table) SumMaxPacketsPerPET() int {
	n := 0
	for _, s := range t.Steps {
		n += max(len(s.Send), len(s.Recv))
	}
	if len(t.Local) > 0 {
		n += len(t.Local)
	}
	return n
}

// SumMaxRegionsPerPacket sums, over peers, the largest span count of any
// packet exchanged with that peer.
func (t *Table) SumMaxRegionsPerPacket() int {
	n := 0
	for _, s := range t.Steps {
		m := 0
		for _, p := range s.Send {
			m = max(m, p.Regions())
		}
		for _, p := range s.Recv {
			m = max(m, p.Regions())
		}
		n += m
	}
	m := 0
	for _, c := range t.Local {
		m = max(m, c.Send.Regions(), c.Recv.Regions())
	}
	return n + m
}

// SendExtent and RecvExtent return one past the largest element offset the
// schedule reads from the source buffer or writes to the destination buffer.
func (t *Table) SendExtent() int {
	n := 0
	for _, c := range t.Local {
		n = max(n, c.Send.Extent())
	}
	for _, s := range t.Steps {
		for _, p := range s.Send {
			n = max(n, p.Extent())
		}
	}
	return n
}

func (t *Table) RecvExtent() int {
	n := 0
	for _, c := range t.Local {
		n = max(n, c.Recv.Extent())
	}
	for _, s := range t.Steps {
		for _, p := range s.Recv {
			n = max(n, p.Extent())
		}
	}
	return n
}

// Print writes the schedule in a stable, human-readable form.
func (t *Table) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "pet %d/%d elem=%dB rounds=%d\n", t.Me, t.Size, t.ElemSize, t.Rounds); err != nil {
		return err
	}
	for _, c := range t.Local {
		if _, err := fmt.Fprintf(w, "  local items=%d send_spans=%d recv_spans=%d\n", c.Recv.Items, c.Send.Regions(), c.Recv.Regions()); err != nil {
			return err
		}
	}
	for _, s := range t.Steps {
		first := "recv-first"
		if s.SendFirst {
			first = "send-first"
		}
		if _, err := fmt.Fprintf(w, "  round %d peer %d %s send=%d/%dB recv=%d/%dB\n",
			s.Round, s.Peer, first, len(s.Send), s.SendItems()*t.ElemSize, len(s.Recv), s.RecvItems()*t.ElemSize); err != nil {
			return err
		}
	}
	return nil
}
