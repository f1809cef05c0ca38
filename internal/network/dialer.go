// File: internal/network/dialer.go
package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// DialerConfig holds configuration for the low-level dialer.
type DialerConfig struct {
	Timeout      time.Duration
	KeepAlive    time.Duration
	TLSConfig    *tls.Config
	ForceNoDelay bool
	// SOCKS5Addr, when set, routes every connection through a SOCKS5 proxy.
	SOCKS5Addr string
}

// NewDialerConfig creates a default configuration for low-level dialing.
func NewDialerConfig() *DialerConfig {
	return &DialerConfig{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

// DialContext creates a TCP connection, optionally through the configured
// SOCKS5 proxy and optionally upgraded to TLS.
func DialContext(ctx context.Context, network, address string, config *DialerConfig) (net.Conn, error) {
	if config == nil {
		config = NewDialerConfig()
	}

	base := &net.Dialer{
		Timeout:   config.Timeout,
		KeepAlive: config.KeepAlive,
		// Happy Eyeballs (RFC 8305).
		FallbackDelay: 300 * time.Millisecond,
	}

	var (
		rawConn net.Conn
		err     error
	)
	if config.SOCKS5Addr != "" {
		rawConn, err = dialSOCKS5(ctx, base, network, address, config.SOCKS5Addr)
	} else {
		rawConn, err = base.DialContext(ctx, network, address)
		if err != nil {
			err = fmt.Errorf("tcp dial failed: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := rawConn.(*net.TCPConn); ok {
		if err := configureTCP(tcpConn, config); err != nil {
			tcpConn.Close()
			return nil, err
		}
	}

	if config.TLSConfig != nil {
		return wrapTLS(ctx, rawConn, address, config)
	}
	return rawConn, nil
}

// NewSOCKS5Dialer returns a context-aware dialer that tunnels through the
// SOCKS5 server at proxyAddr.
func NewSOCKS5Dialer(proxyAddr string, forward *net.Dialer) (proxy.ContextDialer, error) {
	if forward == nil {
		forward = &net.Dialer{Timeout: 10 * time.Second}
	}
	d, err := proxy.SOCKS5("tcp", proxyAddr, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer for %s: %w", proxyAddr, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", proxyAddr)
	}
	return cd, nil
}

func dialSOCKS5(ctx context.Context, base *net.Dialer, network, address, proxyAddr string) (net.Conn, error) {
	d, err := NewSOCKS5Dialer(proxyAddr, base)
	if err != nil {
		return nil, err
	}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("socks5 dial via %s failed: %w", proxyAddr, err)
	}
	return conn, nil
}

func configureTCP(conn *net.TCPConn, config *DialerConfig) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return fmt.Errorf("failed to enable TCP keep-alive: %w", err)
	}
	if config.KeepAlive > 0 {
		if err := conn.SetKeepAlivePeriod(config.KeepAlive); err != nil {
			return fmt.Errorf("failed to set keep-alive period: %w", err)
		}
	}
	if config.ForceNoDelay {
		if err := conn.SetNoDelay(true); err != nil {
			return fmt.Errorf("failed to set TCP NoDelay: %w", err)
		}
	}
	return nil
}

func wrapTLS(ctx context.Context, conn net.Conn, address string, config *DialerConfig) (net.Conn, error) {
	tlsConfig := config.TLSConfig.Clone()

	// SNI
	if tlsConfig.ServerName == "" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		tlsConfig.ServerName = host
	}

	tlsConn := tls.Client(conn, tlsConfig)

	handshakeCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake failed: %w", err)
	}
	return tlsConn, nil
}
