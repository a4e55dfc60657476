// Package liveness decides whether a provider's management address is
// reachable before its templates are listed.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// DefaultTimeout bounds one probe.
const DefaultTimeout = 2 * time.Second

// DefaultPorts are dialed when ICMP is unavailable.
var DefaultPorts = []int{443, 22}

// protocolICMP is the IANA protocol number of ICMP for IPv4.
const protocolICMP = 1

// Checker reports whether an address answers.
type Checker interface {
	Alive(ctx context.Context, addr string) bool
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, addr string) bool

// Alive calls f.
func (f CheckerFunc) Alive(ctx context.Context, addr string) bool {
	return f(ctx, addr)
}

// Prober sends one ICMP echo and falls back to TCP dials when unprivileged
// ICMP sockets are not permitted on the host.
type Prober struct {
	Timeout time.Duration
	Ports   []int
	// DisableICMP skips the echo and only dials.
	DisableICMP bool
	Logger      logr.Logger
}

// NewProber returns a Prober with default ports and the given timeout.
func NewProber(timeout time.Duration, log logr.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{Timeout: timeout, Ports: DefaultPorts, Logger: log}
}

var errICMPUnavailable = errors.New("icmp sockets unavailable")

// Alive probes addr.
func (p *Prober) Alive(ctx context.Context, addr string) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !p.DisableICMP {
		err := p.ping(ctx, addr)
		if err == nil {
			return true
		}
		if !errors.Is(err, errICMPUnavailable) {
			p.Logger.V(1).Info("ping failed", "address", addr, "error", err.Error())
			return false
		}
		p.Logger.V(1).Info("falling back to tcp probe", "address", addr)
	}
	return p.dial(ctx, addr)
}

func (p *Prober) ping(ctx context.Context, addr string) error {
	ip, err := resolveIPv4(ctx, addr)
	if err != nil {
		return err
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return fmt.Errorf("%w: %v", errICMPUnavailable, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: []byte("tracksync"),
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	if _, err := conn.WriteTo(wb, &net.UDPAddr{IP: ip}); err != nil {
		return fmt.Errorf("failed to send echo: %w", err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			return fmt.Errorf("no echo reply: %w", err)
		}
		if udp, ok := peer.(*net.UDPAddr); ok && !udp.IP.Equal(ip) {
			continue
		}
		reply, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil {
			continue
		}
		if reply.Type == ipv4.ICMPTypeEchoReply {
			return nil
		}
	}
}

func (p *Prober) dial(ctx context.Context, addr string) bool {
	ports := p.Ports
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	var d net.Dialer
	for _, port := range ports {
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
		if err == nil {
			_ = conn.Close()
			return true
		}
		p.Logger.V(1).Info("tcp probe failed", "address", addr, "port", port, "error", err.Error())
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func resolveIPv4(ctx context.Context, addr string) (net.IP, error) {
	if ip := net.ParseIP(addr); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%w: %s is not IPv4", errICMPUnavailable, addr)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	for _, ip := range ips {
		if v4 := ip.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no IPv4 address", errICMPUnavailable, addr)
}
