package session

import (
	"context"
	"errors"
)

// Greet sends the opening payload and waits for the acceptor to echo it
// back. The reply is returned as received; it is not compared with text.
func Greet(ctx context.Context, s *Session, text string) (string, error) {
	if text == "" {
		return "", errors.New("handshake payload must not be empty")
	}
	if err := s.Send(ctx, text); err != nil {
		return "", err
	}

	reply, err := s.Receive(ctx)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", &OpError{Op: "handshake", Addr: s.PeerAddr().String(), Kind: ErrConnection, Err: ErrPeerClosed}
	}
	return reply, nil
}

// Echo receives the opening payload and sends it back unmodified. A peer
// that disconnects before greeting yields ErrPeerClosed.
func Echo(ctx context.Context, s *Session) (string, error) {
	payload, err := s.Receive(ctx)
	if err != nil {
		return "", err
	}
	if payload == "" {
		return "", ErrPeerClosed
	}

	if err := s.Send(ctx, payload); err != nil {
		return "", err
	}
	return payload, nil
}
