package session

import (
	"context"
	"net"
	"time"
)

// backlog is the number of pending connections the kernel may queue. The
// collector serves a single probe, so one is enough.
const backlog = 1

// Listener is the bound accepting side of the protocol.
type Listener struct {
	ln         net.Listener
	bufferSize int
	opts       options
}

// Listen binds addr and starts listening with a backlog of one.
func Listen(addr string, bufferSize int, opts ...Option) (*Listener, error) {
	if err := validateBufferSize(bufferSize); err != nil {
		return nil, err
	}

	ln, err := listenTCP(addr, backlog)
	if err != nil {
		return nil, &OpError{Op: "listen", Addr: addr, Kind: ErrBind, Err: err}
	}
	return &Listener{ln: ln, bufferSize: bufferSize, opts: buildOptions(opts)}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept blocks until a peer connects or ctx is done.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	if dl, ok := l.ln.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(time.Time{})
		stop := context.AfterFunc(ctx, func() { _ = dl.SetDeadline(aLongTimeAgo) })
		defer stop()
	}

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &OpError{Op: "accept", Addr: l.ln.Addr().String(), Kind: ErrConnection, Err: err}
	}
	return newSession(conn, l.bufferSize, l.opts), nil
}

// Close stops listening. Sessions already accepted stay open.
func (l *Listener) Close() error {
	return l.ln.Close()
}
