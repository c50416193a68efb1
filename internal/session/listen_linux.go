//go:build linux

package session

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// listenTCP opens a listening socket by hand because net.Listen always uses
// the kernel's somaxconn backlog. Wildcard addresses bind dual-stack, as
// net.Listen does, falling back to IPv4 on hosts without IPv6.
func listenTCP(addr string, backlog int) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	if isWildcard(tcpAddr.IP) {
		ln, err := listenSocket(unix.AF_INET6, &unix.SockaddrInet6{Port: tcpAddr.Port}, true, backlog, addr)
		if err == nil || !errors.Is(err, unix.EAFNOSUPPORT) {
			return ln, err
		}
		return listenSocket(unix.AF_INET, &unix.SockaddrInet4{Port: tcpAddr.Port}, false, backlog, addr)
	}

	family, sa, err := sockaddr(tcpAddr)
	if err != nil {
		return nil, err
	}
	return listenSocket(family, sa, false, backlog, addr)
}

func listenSocket(family int, sa unix.Sockaddr, dualStack bool, backlog int, addr string) (net.Listener, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if dualStack {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			unix.Close(fd)
			return nil, os.NewSyscallError("setsockopt", err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	// FileListener dups the descriptor; the file is closed either way.
	f := os.NewFile(uintptr(fd), "tcp:"+addr)
	defer f.Close()
	return net.FileListener(f)
}

func isWildcard(ip net.IP) bool {
	return ip == nil || ip.IsUnspecified()
}

// sockaddr converts a resolved address, carrying an IPv6 zone given as an
// interface name or index.
func sockaddr(a *net.TCPAddr) (int, unix.Sockaddr, error) {
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa, nil
	}

	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	if a.Zone != "" {
		id, err := zoneID(a.Zone)
		if err != nil {
			return 0, nil, err
		}
		sa.ZoneId = id
	}
	return unix.AF_INET6, sa, nil
}

func zoneID(zone string) (uint32, error) {
	if ifi, err := net.InterfaceByName(zone); err == nil {
		return uint32(ifi.Index), nil
	}
	n, err := strconv.ParseUint(zone, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown IPv6 zone %q", zone)
	}
	return uint32(n), nil
}
