package rtable

import (
	"fmt"
	"io"
	"sort"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/weights"
)

// Direction says whether a table describes outgoing or incoming data.
type Direction int

const (
	Send Direction = iota
	Recv
)

func (d Direction) String() string {
	if d == Recv {
		return "recv"
	}
	return "send"
}

// Entry is one transfer with one peer. Exactly one of Region, Indices, or
// Weights addresses the data:
//   - Region: a block in global coordinates of this side's array, walked
//     in Order (fastest axis first; nil is natural order).
//   - Indices: global linear indices, in transfer order.
//   - Weights: the recv side of a regrid piece; the peer sends the values
//     of Weights.Sources and this side accumulates Weights.Rows.
type Entry struct {
	Peer    int
	Region  ir.Region
	Order   []int
	Indices []int
	Weights *weights.Piece
}

// Items returns the number of elements the entry puts on the wire.
func (e Entry) Items() int {
	switch {
	case e.Weights != nil:
		return len(e.Weights.Sources)
	case e.Indices != nil:
		return len(e.Indices)
	default:
		return e.Region.Count()
	}
}

func (e Entry) String() string {
	switch {
	case e.Weights != nil:
		return fmt.Sprintf("peer=%d weights sources=%d rows=%d", e.Peer, len(e.Weights.Sources), len(e.Weights.Rows))
	case e.Indices != nil:
		return fmt.Sprintf("peer=%d indices=%d", e.Peer, len(e.Indices))
	default:
		s := fmt.Sprintf("peer=%d region=%s", e.Peer, e.Region)
		if e.Order != nil {
			s += fmt.Sprintf(" order=%v", e.Order)
		}
		return s
	}
}

// RTable is an ordered list of entries for one direction.
type RTable struct {
	Dir     Direction
	entries []Entry
}

// New returns an empty table.
func New(dir Direction) *RTable {
	return &RTable{Dir: dir}
}

// Add appends an entry. Entries with no items are dropped.
func (t *RTable) Add(e Entry) {
	if e.Items() == 0 && e.Weights == nil {
		return
	}
	t.entries = append(t.entries, e)
}

// Sort orders entries by peer, keeping insertion order within a peer. Both
// sides of a transfer insert in the same order, so this fixes the wire order.
func (t *RTable) Sort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].Peer < t.entries[j].Peer
	})
}

// Entries returns the entries. The slice must not be modified.
func (t *RTable) Entries() []Entry {
	return t.entries
}

// Len returns the number of entries.
func (t *RTable) Len() int {
	return len(t.entries)
}

// Peers returns the sorted distinct peers.
func (t *RTable) Peers() []int {
	var out []int
	seen := make(map[int]bool)
	for _, e := range t.entries {
		if !seen[e.Peer] {
			seen[e.Peer] = true
			out = append(out, e.Peer)
		}
	}
	sort.Ints(out)
	return out
}

// ForPeer returns the entries exchanged with peer, in table order.
func (t *RTable) ForPeer(peer int) []Entry {
	var out []Entry
	for _, e := range t.entries {
		if e.Peer == peer {
			out = append(out, e)
		}
	}
	return out
}

// Items returns the total number of elements in the table.
func (t *RTable) Items() int {
	n := 0
	for _, e := range t.entries {
		n += e.Items()
	}
	return n
}

// MaxPerPeer returns the largest number of entries exchanged with any
// single peer.
func (t *RTable) MaxPerPeer() int {
	counts := make(map[int]int)
	m := 0
	for _, e := range t.entries {
		counts[e.Peer]++
		m = max(m, counts[e.Peer])
	}
	return m
}

// Validate checks peers, ranks, and traversal orders.
func (t *RTable) Validate(size, rank int) error {
	for i, e := range t.entries {
		if e.Peer < 0 || e.Peer >= size {
			return fmt.Errorf("%s entry %d: peer %d outside 0..%d", t.Dir, i, e.Peer, size-1)
		}
		if e.Weights != nil {
			if t.Dir != Recv {
				return fmt.Errorf("%s entry %d: weights on a send entry", t.Dir, i)
			}
			continue
		}
		if e.Indices != nil {
			continue
		}
		if e.Region.Rank() != rank {
			return fmt.Errorf("%s entry %d: region rank %d, want %d", t.Dir, i, e.Region.Rank(), rank)
		}
		if e.Order != nil && !ir.ValidPermutation(e.Order, rank) {
			return fmt.Errorf("%s entry %d: order %v is not a permutation", t.Dir, i, e.Order)
		}
	}
	return nil
}

// Print writes one line per entry.
func (t *RTable) Print(w io.Writer) error {
	for _, e := range t.entries {
		if _, err := fmt.Fprintf(w, "  %s %s items=%d\n", t.Dir, e, e.Items()); err != nil {
			return err
		}
	}
	return nil
}
