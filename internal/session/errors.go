package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection covers an unreachable or refusing peer, a reset, a broken
	// pipe and an I/O timeout.
	ErrConnection = errors.New("connection error")

	// ErrBind is returned when the accepting side cannot bind or listen.
	ErrBind = errors.New("bind error")

	// ErrPeerClosed marks a zero-length payload where the protocol needs
	// one, such as the handshake.
	ErrPeerClosed = errors.New("peer closed the connection")
)

// OpError describes a failed session operation. It unwraps to both its
// Kind (ErrConnection, ErrBind) and the underlying network error.
type OpError struct {
	Op   string
	Addr string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session %s %s: %v", e.Op, e.Addr, e.Kind)
	}
	return fmt.Sprintf("session %s %s: %v: %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
