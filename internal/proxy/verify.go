// File: internal/proxy/verify.go
package proxy

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/network"
)

// Verifier checks that a proxy can carry traffic.
type Verifier interface {
	Verify(ctx context.Context, addr string) error
}

// SOCKS5Verifier opens a tunnel to Target through the proxy under test.
type SOCKS5Verifier struct {
	Target  string
	Timeout time.Duration
}

// Verify implements Verifier.
func (p SOCKS5Verifier) Verify(ctx context.Context, addr string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d, err := network.NewSOCKS5Dialer(addr, &net.Dialer{Timeout: timeout})
	if err != nil {
		return err
	}
	conn, err := d.DialContext(ctx, "tcp", p.Target)
	if err != nil {
		return fmt.Errorf("proxy %s cannot reach %s: %w", addr, p.Target, err)
	}
	return conn.Close()
}
