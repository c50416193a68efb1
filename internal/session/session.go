// Package session carries opaque text payloads over a single TCP connection.
//
// A payload is whatever one read returns: receives are bounded by the
// session's buffer size and are never reassembled, so a payload larger than
// the buffer arrives truncated. A zero-length receive means the peer closed
// its write side.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// aLongTimeAgo is a deadline in the past used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Option configures a Session or Listener.
type Option func(*options)

type options struct {
	ioTimeout time.Duration
}

// WithIOTimeout bounds every Send and Receive. Zero, the default, blocks
// until the peer acts.
func WithIOTimeout(d time.Duration) Option {
	return func(o *options) { o.ioTimeout = d }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Session is one end of a telemetry connection.
type Session struct {
	conn      net.Conn
	buf       []byte
	ioTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newSession(conn net.Conn, bufferSize int, o options) *Session {
	return &Session{
		conn:      conn,
		buf:       make([]byte, bufferSize),
		ioTimeout: o.ioTimeout,
	}
}

func validateBufferSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", n)
	}
	return nil
}

// Dial connects to a collector at addr.
func Dial(ctx context.Context, addr string, bufferSize int, opts ...Option) (*Session, error) {
	if err := validateBufferSize(bufferSize); err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &OpError{Op: "dial", Addr: addr, Kind: ErrConnection, Err: err}
	}
	return newSession(conn, bufferSize, buildOptions(opts)), nil
}

// Accept binds addr, waits for exactly one peer and releases the listener.
func Accept(ctx context.Context, addr string, bufferSize int, opts ...Option) (*Session, error) {
	l, err := Listen(addr, bufferSize, opts...)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	return l.Accept(ctx)
}

// BufferSize returns the maximum number of bytes a Receive can return.
func (s *Session) BufferSize() int {
	return len(s.buf)
}

// PeerAddr returns the address of the remote end.
func (s *Session) PeerAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns the address of the local end.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Send writes text to the peer in full.
func (s *Session) Send(ctx context.Context, text string) error {
	stop := s.arm(ctx)
	defer stop()

	if _, err := s.conn.Write([]byte(text)); err != nil {
		return s.fail(ctx, "send", err)
	}
	return nil
}

// Receive performs one read of at most BufferSize bytes. An empty payload
// with a nil error is the end-of-session signal.
func (s *Session) Receive(ctx context.Context) (string, error) {
	stop := s.arm(ctx)
	defer stop()

	n, err := s.conn.Read(s.buf)
	if n > 0 {
		// A read error delivered with data surfaces on the next call.
		return string(s.buf[:n]), nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return "", nil
	}
	return "", s.fail(ctx, "receive", err)
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// arm applies the I/O timeout and interrupts the pending call when ctx is
// done. The returned func must be called once the call returns.
func (s *Session) arm(ctx context.Context) func() {
	deadline := time.Time{}
	if s.ioTimeout > 0 {
		deadline = time.Now().Add(s.ioTimeout)
	}
	_ = s.conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(aLongTimeAgo)
	})
	return func() { stop() }
}

func (s *Session) fail(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &OpError{Op: op, Addr: s.conn.RemoteAddr().String(), Kind: ErrConnection, Err: err}
}
