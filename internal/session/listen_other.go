//go:build !linux

package session

import "net"

// listenTCP falls back to the standard listener; the backlog is left to the
// platform default.
func listenTCP(addr string, _ int) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
