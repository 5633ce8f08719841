// Package transport is the point-to-point messaging layer the route engine
// runs on. Messages are addressed by PET rank and an integer tag; a receive
// matches the oldest message from the given sender with the given tag.
//
// Two implementations are provided: Mesh, an in-process set of mailboxes
// for tests and single-process runs, and TCP, a full mesh of framed
// connections between processes.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Transport sends and receives tagged messages between PETs.
type Transport interface {
	// Rank returns this PET's id in [0, Size()).
	Rank() int
	// Size returns the number of PETs.
	Size() int
	// Send delivers data to PET to. It may return before the peer receives;
	// data may be reused once Send returns.
	Send(ctx context.Context, to, tag int, data []byte) error
	// Recv blocks until a message with tag arrives from PET from and copies
	// it into buf, returning the message length.
	Recv(ctx context.Context, from, tag int, buf []byte) (int, error)
}

// Vectored is implemented by transports that can send from and receive into
// scattered buffer pieces without an intermediate pack buffer.
type Vectored interface {
	SendVec(ctx context.Context, to, tag int, parts [][]byte) error
	RecvVec(ctx context.Context, from, tag int, parts [][]byte) (int, error)
}

// Sequencer is implemented by transports that number the routes built over
// them. Every PET that constructs its routes in the same order draws the same
// numbers, which lets a route pick a message tag space its peers agree on
// without communicating.
type Sequencer interface {
	// NextSequence returns 0, 1, 2, ... on successive calls.
	NextSequence() int
}

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport: closed")

// ShortBufferError reports a message larger than the receive buffer.
type ShortBufferError struct {
	From int
	Tag  int
	Need int
	Have int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("transport: message from %d tag %d is %d bytes, buffer holds %d", e.From, e.Tag, e.Need, e.Have)
}

// PeerError reports an out-of-range PET.
type PeerError struct {
	Peer int
	Size int
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("transport: peer %d outside 0..%d", e.Peer, e.Size-1)
}

func checkPeer(peer, size int) error {
	if peer < 0 || peer >= size {
		return &PeerError{Peer: peer, Size: size}
	}
	return nil
}

// scatter copies msg across parts in order and returns the bytes copied.
func scatter(msg []byte, parts [][]byte) int {
	n := 0
	for _, p := range parts {
		if n >= len(msg) {
			break
		}
		n += copy(p, msg[n:])
	}
	return n
}

// gather concatenates parts into one new slice.
func gather(parts [][]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func partsLen(parts [][]byte) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return n
}
