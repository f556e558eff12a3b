// Package transport provides the HTTP transport used for Store API calls.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Hosted WooCommerce stores commonly sit behind CDNs that rate-limit by
// JA3 TLS fingerprint, and Go's standard TLS client stands out. The
// storefront makes many small cart calls per session, so tripping that
// filtering turns into spurious 429s for the user.
//
// NewBrowserTransport presents a Chrome-like ClientHello via uTLS and lets
// ALPN pick the protocol: HTTP/2 frames go through x/net/http2, with a
// plain HTTP/1.1 fallback for stores that never negotiated h2.

// NewBrowserTransport creates an http.RoundTripper that presents a
// browser TLS fingerprint to the store. Safe to share across clients;
// one instance serves every business base URL.
func NewBrowserTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialBrowserTLS(ctx, dialer, network, addr)
		},
	}

	h1 := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialBrowserTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &browserTransport{h2: h2, h1: h1}
}

// browserTransport routes requests over HTTP/2 when possible and falls
// back to HTTP/1.1 for stores that do not speak h2.
type browserTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

// dialBrowserTLS establishes a TLS connection with a Chrome fingerprint.
func dialBrowserTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
