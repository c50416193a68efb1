//go:build linux

package session

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSockaddr_IPv4(t *testing.T) {
	family, sa, err := sockaddr(&net.TCPAddr{IP: net.ParseIP("192.0.2.7"), Port: 5005})
	require.NoError(t, err)
	assert.Equal(t, unix.AF_INET, family)

	in4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)
	assert.Equal(t, [4]byte{192, 0, 2, 7}, in4.Addr)
	assert.Equal(t, 5005, in4.Port)
}

func TestSockaddr_IPv6Zone(t *testing.T) {
	lo, err := net.InterfaceByName("lo")
	if err != nil {
		t.Skipf("no loopback interface: %v", err)
	}

	tests := []struct {
		zone string
		want uint32
	}{
		{"", 0},
		{"lo", uint32(lo.Index)},
		{"7", 7},
	}
	for _, tt := range tests {
		t.Run("zone="+tt.zone, func(t *testing.T) {
			family, sa, err := sockaddr(&net.TCPAddr{IP: net.ParseIP("fe80::1"), Port: 5005, Zone: tt.zone})
			require.NoError(t, err)
			assert.Equal(t, unix.AF_INET6, family)

			in6, ok := sa.(*unix.SockaddrInet6)
			require.True(t, ok)
			assert.Equal(t, tt.want, in6.ZoneId)
		})
	}
}

func TestSockaddr_UnknownZone(t *testing.T) {
	_, _, err := sockaddr(&net.TCPAddr{IP: net.ParseIP("fe80::1"), Zone: "telerelay-no-such-if"})
	assert.Error(t, err)
}

func TestListen_WildcardDualStack(t *testing.T) {
	l, err := Listen(":0", 64)
	require.NoError(t, err)
	defer l.Close()
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hosts := []string{"127.0.0.1"}
	if ln, err := net.Listen("tcp6", "[::1]:0"); err == nil {
		ln.Close()
		hosts = append(hosts, "::1")
	}

	for _, host := range hosts {
		accepted := make(chan error, 1)
		go func() {
			s, err := l.Accept(ctx)
			if err == nil {
				s.Close()
			}
			accepted <- err
		}()

		s, err := Dial(ctx, net.JoinHostPort(host, port), 64)
		require.NoError(t, err, "dial %s", host)
		s.Close()
		require.NoError(t, <-accepted, "accept from %s", host)
	}
}
