package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ErrTorUnavailable is returned for hidden-service tasks when no Tor proxy
// is configured.
var ErrTorUnavailable = errors.New("tor proxy not configured")

// newTorTransport routes every connection through the SOCKS5 proxy at addr.
// Hostnames are resolved by the proxy, which .onion addresses require.
func newTorTransport(addr string) (*http.Transport, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, ErrTorUnavailable
	}
	dialer, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support contexts")
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, network, address)
		},
		TLSHandshakeTimeout:   30 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}, nil
}
