package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	frameHeaderLen = 13 // tag int64, flags uint8, length uint32
	flagZstd       = 1 << 0

	// Payloads below this size are never compressed.
	compressMin = 512

	// DefaultMaxFrame is the largest payload a TCP transport sends or
	// accepts unless WithMaxFrame says otherwise.
	DefaultMaxFrame = 256 << 20
)

// FrameTooLargeError reports a payload above the transport's frame limit.
type FrameTooLargeError struct {
	Size int
	Max  int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("transport: frame of %d bytes exceeds limit %d", e.Size, e.Max)
}

// Option configures a TCP transport.
type Option func(*tcpConfig)

type tcpConfig struct {
	compress    bool
	dialBackoff time.Duration
	maxFrame    int
	logger      *slog.Logger
}

// WithCompression compresses large payloads with zstd.
func WithCompression() Option {
	return func(c *tcpConfig) { c.compress = true }
}

// WithDialBackoff sets the pause between dial attempts while peers start up.
func WithDialBackoff(d time.Duration) Option {
	return func(c *tcpConfig) { c.dialBackoff = d }
}

// WithMaxFrame sets the largest payload, after decompression, that the
// transport sends or accepts. A peer sending a larger frame is dropped.
func WithMaxFrame(n int) Option {
	return func(c *tcpConfig) { c.maxFrame = n }
}

// WithLogger sets the logger used for connection events.
func WithLogger(l *slog.Logger) Option {
	return func(c *tcpConfig) { c.logger = l }
}

// TCP is a full-mesh transport over TCP connections, one per PET pair.
// Higher ranks dial lower ranks and introduce themselves with their rank.
// Every connection has a reader goroutine that files incoming frames into
// the local mailbox, so sends never wait for the peer to post a receive.
type TCP struct {
	rank  int
	size  int
	conns []net.Conn
	wmu   []sync.Mutex
	box   *mailbox
	cfg   tcpConfig
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	seq   atomic.Int64

	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ Transport = (*TCP)(nil)
	_ Vectored  = (*TCP)(nil)
	_ Sequencer = (*TCP)(nil)
)

// Connect joins the mesh as PET rank. ln must be listening on addrs[rank];
// it is closed once every higher rank has connected. Connect returns when
// connections to all peers are up or ctx is done.
func Connect(ctx context.Context, rank int, ln net.Listener, addrs []string, opts ...Option) (*TCP, error) {
	size := len(addrs)
	if err := checkPeer(rank, size); err != nil {
		return nil, err
	}
	cfg := tcpConfig{dialBackoff: 50 * time.Millisecond, maxFrame: DefaultMaxFrame, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxFrame <= 0 {
		return nil, fmt.Errorf("transport: max frame must be positive, got %d", cfg.maxFrame)
	}

	t := &TCP{
		rank:  rank,
		size:  size,
		conns: make([]net.Conn, size),
		wmu:   make([]sync.Mutex, size),
		box:   newMailbox(),
		cfg:   cfg,
	}
	if cfg.compress {
		var err error
		if t.enc, err = zstd.NewWriter(nil); err != nil {
			return nil, fmt.Errorf("transport: zstd encoder: %w", err)
		}
	}
	// Peers may compress even when we do not.
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(cfg.maxFrame)))
	if err != nil {
		t.abort()
		return nil, fmt.Errorf("transport: zstd decoder: %w", err)
	}
	t.dec = dec

	accepted := make(chan error, 1)
	go func() {
		accepted <- t.acceptHigher(ctx, ln)
	}()

	for peer := 0; peer < rank; peer++ {
		conn, err := t.dial(ctx, addrs[peer])
		if err != nil {
			_ = ln.Close()
			<-accepted
			t.abort()
			return nil, fmt.Errorf("transport: dial pet %d at %s: %w", peer, addrs[peer], err)
		}
		var hello [4]byte
		binary.BigEndian.PutUint32(hello[:], uint32(rank))
		if _, err := conn.Write(hello[:]); err != nil {
			_ = conn.Close()
			_ = ln.Close()
			<-accepted
			t.abort()
			return nil, fmt.Errorf("transport: handshake with pet %d: %w", peer, err)
		}
		t.conns[peer] = conn
	}

	if err := <-accepted; err != nil {
		t.abort()
		return nil, err
	}

	for peer, conn := range t.conns {
		if conn == nil {
			continue
		}
		t.wg.Add(1)
		go t.readLoop(peer, conn)
	}
	cfg.logger.Debug("transport connected", "rank", rank, "size", size, "compress", cfg.compress)
	return t, nil
}

func (t *TCP) dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.cfg.dialBackoff):
		}
	}
}

func (t *TCP) acceptHigher(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	want := t.size - 1 - t.rank
	if want == 0 {
		return nil
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for got := 0; got < want; {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("transport: accept: %w", err)
		}
		var hello [4]byte
		if _, err := io.ReadFull(conn, hello[:]); err != nil {
			_ = conn.Close()
			return fmt.Errorf("transport: read handshake: %w", err)
		}
		peer := int(binary.BigEndian.Uint32(hello[:]))
		if peer <= t.rank || peer >= t.size || t.conns[peer] != nil {
			_ = conn.Close()
			return fmt.Errorf("transport: unexpected handshake from pet %d", peer)
		}
		t.conns[peer] = conn
		got++
	}
	return nil
}

func (t *TCP) readLoop(peer int, conn net.Conn) {
	defer t.wg.Done()
	r := bufio.NewReader(conn)
	var hdr [frameHeaderLen]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				t.cfg.logger.Debug("transport read failed", "rank", t.rank, "peer", peer, "error", err)
			}
			return
		}
		tag := int(int64(binary.BigEndian.Uint64(hdr[0:8])))
		flags := hdr[8]
		n := binary.BigEndian.Uint32(hdr[9:13])
		if uint64(n) > uint64(t.cfg.maxFrame) {
			t.cfg.logger.Warn("transport frame too large, dropping peer",
				"rank", t.rank, "peer", peer, "tag", tag, "size", n, "max", t.cfg.maxFrame)
			_ = conn.Close()
			return
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			t.cfg.logger.Debug("transport short frame", "rank", t.rank, "peer", peer, "error", err)
			return
		}
		if flags&flagZstd != 0 {
			out, err := t.dec.DecodeAll(payload, nil)
			if err != nil {
				t.cfg.logger.Warn("transport bad compressed frame, dropping peer", "rank", t.rank, "peer", peer, "error", err)
				_ = conn.Close()
				return
			}
			payload = out
		}
		if !t.box.put(peer, tag, payload) {
			return
		}
	}
}

func (t *TCP) Rank() int { return t.rank }
func (t *TCP) Size() int { return t.size }

// NextSequence implements Sequencer.
func (t *TCP) NextSequence() int { return int(t.seq.Add(1) - 1) }

// Send implements Transport.
func (t *TCP) Send(ctx context.Context, to, tag int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPeer(to, t.size); err != nil {
		return err
	}
	if len(data) > t.cfg.maxFrame {
		return &FrameTooLargeError{Size: len(data), Max: t.cfg.maxFrame}
	}
	if to == t.rank {
		if !t.box.put(to, tag, append([]byte(nil), data...)) {
			return ErrClosed
		}
		return nil
	}

	var flags uint8
	payload := data
	if t.enc != nil && len(data) >= compressMin {
		if c := t.enc.EncodeAll(data, nil); len(c) < len(data) {
			payload, flags = c, flagZstd
		}
	}
	var hdr [frameHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(int64(tag)))
	hdr[8] = flags
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(payload)))

	t.wmu[to].Lock()
	defer t.wmu[to].Unlock()
	conn := t.conns[to]
	if conn == nil {
		return ErrClosed
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	bufs := net.Buffers{hdr[:], payload}
	if _, err := bufs.WriteTo(conn); err != nil {
		return fmt.Errorf("transport: send to pet %d: %w", to, err)
	}
	return nil
}

// SendVec implements Vectored.
func (t *TCP) SendVec(ctx context.Context, to, tag int, parts [][]byte) error {
	return t.Send(ctx, to, tag, gather(parts))
}

// Recv implements Transport.
func (t *TCP) Recv(ctx context.Context, from, tag int, buf []byte) (int, error) {
	if err := checkPeer(from, t.size); err != nil {
		return 0, err
	}
	msg, err := t.box.take(ctx, from, tag)
	if err != nil {
		return 0, err
	}
	if len(msg) > len(buf) {
		return 0, &ShortBufferError{From: from, Tag: tag, Need: len(msg), Have: len(buf)}
	}
	return copy(buf, msg), nil
}

// RecvVec implements Vectored.
func (t *TCP) RecvVec(ctx context.Context, from, tag int, parts [][]byte) (int, error) {
	if err := checkPeer(from, t.size); err != nil {
		return 0, err
	}
	msg, err := t.box.take(ctx, from, tag)
	if err != nil {
		return 0, err
	}
	if have := partsLen(parts); len(msg) > have {
		return 0, &ShortBufferError{From: from, Tag: tag, Need: len(msg), Have: have}
	}
	return scatter(msg, parts), nil
}

// Close tears down every connection and waits for reader goroutines.
func (t *TCP) Close() error {
	t.closeOnce.Do(func() {
		t.closeConns()
		t.box.close()
		t.wg.Wait()
		if t.enc != nil {
			_ = t.enc.Close()
		}
		t.dec.Close()
	})
	return nil
}

func (t *TCP) abort() {
	t.closeConns()
	if t.enc != nil {
		_ = t.enc.Close()
	}
	if t.dec != nil {
		t.dec.Close()
	}
}

func (t *TCP) closeConns() {
	for i, c := range t.conns {
		if c == nil {
			continue
		}
		t.wmu[i].Lock()
		_ = c.Close()
		t.wmu[i].Unlock()
	}
}
