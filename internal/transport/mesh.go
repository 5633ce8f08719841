package transport

import (
	"context"
	"sync/atomic"
)

// Mesh is an in-process transport connecting size endpoints. Sends are
// buffered: Send copies the payload into the receiver's mailbox and returns.
type Mesh struct {
	boxes     []*mailbox
	endpoints []*Endpoint
}

// NewMesh creates a mesh of size endpoints.
func NewMesh(size int) *Mesh {
	m := &Mesh{
		boxes:     make([]*mailbox, size),
		endpoints: make([]*Endpoint, size),
	}
	for i := range m.boxes {
		m.boxes[i] = newMailbox()
		m.endpoints[i] = &Endpoint{mesh: m, rank: i}
	}
	return m
}

// Size returns the number of endpoints.
func (m *Mesh) Size() int {
	return len(m.endpoints)
}

// Endpoint returns the transport for PET rank.
func (m *Mesh) Endpoint(rank int) *Endpoint {
	return m.endpoints[rank]
}

// Pending returns the number of undelivered messages across the mesh.
func (m *Mesh) Pending() int {
	n := 0
	for _, b := range m.boxes {
		n += b.pending()
	}
	return n
}

// Close closes every mailbox, waking blocked receivers with ErrClosed.
func (m *Mesh) Close() {
	for _, b := range m.boxes {
		b.close()
	}
}

// Endpoint is one PET's view of a Mesh.
type Endpoint struct {
	mesh *Mesh
	rank int

	sent atomic.Int64
	recv atomic.Int64
	seq  atomic.Int64
}

var (
	_ Transport = (*Endpoint)(nil)
	_ Vectored  = (*Endpoint)(nil)
	_ Sequencer = (*Endpoint)(nil)
)

func (e *Endpoint) Rank() int { return e.rank }
func (e *Endpoint) Size() int { return len(e.mesh.boxes) }

// NextSequence implements Sequencer.
func (e *Endpoint) NextSequence() int { return int(e.seq.Add(1) - 1) }

// Send implements Transport.
func (e *Endpoint) Send(ctx context.Context, to, tag int, data []byte) error {
	return e.deliver(ctx, to, tag, append([]byte(nil), data...))
}

// SendVec implements Vectored.
func (e *Endpoint) SendVec(ctx context.Context, to, tag int, parts [][]byte) error {
	return e.deliver(ctx, to, tag, gather(parts))
}

func (e *Endpoint) deliver(ctx context.Context, to, tag int, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPeer(to, e.Size()); err != nil {
		return err
	}
	if !e.mesh.boxes[to].put(e.rank, tag, msg) {
		return ErrClosed
	}
	e.sent.Add(int64(len(msg)))
	return nil
}

// Recv implements Transport.
func (e *Endpoint) Recv(ctx context.Context, from, tag int, buf []byte) (int, error) {
	msg, err := e.take(ctx, from, tag)
	if err != nil {
		return 0, err
	}
	if len(msg) > len(buf) {
		return 0, &ShortBufferError{From: from, Tag: tag, Need: len(msg), Have: len(buf)}
	}
	return copy(buf, msg), nil
}

// RecvVec implements Vectored.
func (e *Endpoint) RecvVec(ctx context.Context, from, tag int, parts [][]byte) (int, error) {
	msg, err := e.take(ctx, from, tag)
	if err != nil {
		return 0, err
	}
	if have := partsLen(parts); len(msg) > have {
		return 0, &ShortBufferError{From: from, Tag: tag, Need: len(msg), Have: have}
	}
	return scatter(msg, parts), nil
}

func (e *Endpoint) take(ctx context.Context, from, tag int) ([]byte, error) {
	if err := checkPeer(from, e.Size()); err != nil {
		return nil, err
	}
	msg, err := e.mesh.boxes[e.rank].take(ctx, from, tag)
	if err != nil {
		return nil, err
	}
	e.recv.Add(int64(len(msg)))
	return msg, nil
}

// BytesSent returns the payload bytes this endpoint has sent.
func (e *Endpoint) BytesSent() int64 { return e.sent.Load() }

// BytesReceived returns the payload bytes this endpoint has received.
func (e *Endpoint) BytesReceived() int64 { return e.recv.Load() }
