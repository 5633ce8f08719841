package transport

import (
	"context"
	"sync"
)

type mailKey struct {
	from int
	tag  int
}

// mailbox is a thread-safe set of FIFO queues keyed by (sender, tag).
//
// Waiters block on a notify channel that is closed and replaced on every
// put, so all of them wake and re-check their own queue.
type mailbox struct {
	mu     sync.Mutex
	queues map[mailKey][][]byte
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		queues: make(map[mailKey][][]byte),
		notify: make(chan struct{}),
	}
}

// put appends msg to the (from, tag) queue. It takes ownership of msg.
// Returns false if the mailbox is closed.
func (m *mailbox) put(from, tag int, msg []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	k := mailKey{from: from, tag: tag}
	m.queues[k] = append(m.queues[k], msg)

	close(m.notify)
	m.notify = make(chan struct{})
	return true
}

// tryTake pops the oldest (from, tag) message. The returned channel is the
// one to wait on when nothing was available.
func (m *mailbox) tryTake(from, tag int) ([]byte, bool, bool, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := mailKey{from: from, tag: tag}
	q := m.queues[k]
	if len(q) == 0 {
		return nil, false, m.closed, m.notify
	}
	msg := q[0]
	q[0] = nil
	if len(q) == 1 {
		delete(m.queues, k)
	} else {
		m.queues[k] = q[1:]
	}
	return msg, true, m.closed, nil
}

// take blocks until a (from, tag) message arrives, ctx is done, or the
// mailbox is closed with nothing pending for the key.
func (m *mailbox) take(ctx context.Context, from, tag int) ([]byte, error) {
	for {
		msg, ok, closed, wait := m.tryTake(from, tag)
		if ok {
			return msg, nil
		}
		if closed {
			return nil, ErrClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// pending returns the number of queued messages.
func (m *mailbox) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.queues {
		n += len(q)
	}
	return n
}

// close rejects further puts and wakes all waiters.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.notify)
}
