package liveness

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestProber_TCPFallback(t *testing.T) {
	t.Parallel()

	open := listen(t)
	closed := closedPort(t)

	p := &Prober{Timeout: time.Second, Ports: []int{closed, open}, DisableICMP: true, Logger: logr.Discard()}
	assert.True(t, p.Alive(context.Background(), "127.0.0.1"))

	p.Ports = []int{closed}
	assert.False(t, p.Alive(context.Background(), "127.0.0.1"))
}

func TestNewProber_Defaults(t *testing.T) {
	t.Parallel()

	p := NewProber(0, logr.Discard())
	assert.Equal(t, DefaultTimeout, p.Timeout)
	assert.Equal(t, DefaultPorts, p.Ports)
	assert.False(t, p.DisableICMP)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	var checked []string
	checker := CheckerFunc(func(_ context.Context, addr string) bool {
		checked = append(checked, addr)
		return addr != "10.0.0.2"
	})

	live, dead := Filter(context.Background(), checker, []Target{
		{Key: "a", Address: "10.0.0.1"},
		{Key: "b", Address: "10.0.0.2"},
		{Key: "c"},
		{Key: "d", Address: "10.0.0.4"},
	}, logr.Discard())

	assert.Equal(t, []string{"a", "c", "d"}, live)
	assert.Equal(t, []string{"b"}, dead)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.4"}, checked, "empty addresses are not probed")
}

func TestResolveIPv4(t *testing.T) {
	t.Parallel()

	ip, err := resolveIPv4(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", ip.String())

	_, err = resolveIPv4(context.Background(), "2001:db8::1")
	assert.ErrorIs(t, err, errICMPUnavailable)
}
