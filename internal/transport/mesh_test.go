package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshTagMatching(t *testing.T) {
	ctx := context.Background()
	m := NewMesh(2)
	a, b := m.Endpoint(0), m.Endpoint(1)

	require.NoError(t, a.Send(ctx, 1, 7, []byte("seven")))
	require.NoError(t, a.Send(ctx, 1, 3, []byte("three")))
	require.NoError(t, a.Send(ctx, 1, 7, []byte("again")))
	assert.Equal(t, 3, m.Pending())

	buf := make([]byte, 16)
	n, err := b.Recv(ctx, 0, 3, buf)
	require.NoError(t, err)
	assert.Equal(t, "three", string(buf[:n]))

	n, err = b.Recv(ctx, 0, 7, buf)
	require.NoError(t, err)
	assert.Equal(t, "seven", string(buf[:n]), "same tag is FIFO")
	n, err = b.Recv(ctx, 0, 7, buf)
	require.NoError(t, err)
	assert.Equal(t, "again", string(buf[:n]))

	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, int64(15), a.BytesSent())
	assert.Equal(t, int64(15), b.BytesReceived())
}

func TestMeshSendCopiesPayload(t *testing.T) {
	ctx := context.Background()
	m := NewMesh(1)
	e := m.Endpoint(0)

	data := []byte("abc")
	require.NoError(t, e.Send(ctx, 0, 1, data))
	data[0] = 'x'

	buf := make([]byte, 3)
	_, err := e.Recv(ctx, 0, 1, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf))
}

func TestMeshRecvBlocksUntilSend(t *testing.T) {
	ctx := context.Background()
	m := NewMesh(2)

	done := make(chan string)
	go func() {
		buf := make([]byte, 8)
		n, err := m.Endpoint(1).Recv(ctx, 0, 1, buf)
		if err != nil {
			done <- err.Error()
			return
		}
		done <- string(buf[:n])
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Endpoint(0).Send(ctx, 1, 1, []byte("late")))
	assert.Equal(t, "late", <-done)
}

func TestMeshRecvContextCancel(t *testing.T) {
	m := NewMesh(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Endpoint(0).Recv(ctx, 1, 0, make([]byte, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMeshCloseWakesReceivers(t *testing.T) {
	m := NewMesh(2)
	errc := make(chan error)
	go func() {
		_, err := m.Endpoint(0).Recv(context.Background(), 1, 0, make([]byte, 1))
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()
	assert.ErrorIs(t, <-errc, ErrClosed)
	assert.ErrorIs(t, m.Endpoint(1).Send(context.Background(), 0, 0, nil), ErrClosed)
}

func TestMeshErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMesh(2)
	e := m.Endpoint(0)

	var pe *PeerError
	require.ErrorAs(t, e.Send(ctx, 2, 0, nil), &pe)
	assert.Equal(t, 2, pe.Peer)

	require.NoError(t, e.Send(ctx, 1, 0, []byte("toolong")))
	_, err := m.Endpoint(1).Recv(ctx, 0, 0, make([]byte, 2))
	var sb *ShortBufferError
	require.ErrorAs(t, err, &sb)
	assert.Equal(t, 7, sb.Need)
}

func TestMeshVectored(t *testing.T) {
	ctx := context.Background()
	m := NewMesh(2)

	require.NoError(t, m.Endpoint(0).SendVec(ctx, 1, 5, [][]byte{[]byte("ab"), []byte("cde")}))

	p1, p2 := make([]byte, 1), make([]byte, 4)
	n, err := m.Endpoint(1).RecvVec(ctx, 0, 5, [][]byte{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "a", string(p1))
	assert.Equal(t, "bcde", string(p2))
}
