package probe

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

// DialFunc opens the transport connection for a probe.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DirectDialer dials endpoints from the local host.
func DirectDialer() DialFunc {
	d := &net.Dialer{}
	return d.DialContext
}

// SOCKS5Dialer dials endpoints through a SOCKS5 proxy. Port 25 egress is
// blocked on many networks; a proxy on an unblocked host restores it.
// user may be empty for unauthenticated proxies.
func SOCKS5Dialer(address, user, password string) (DialFunc, error) {
	var auth *proxy.Auth
	if user != "" {
		auth = &proxy.Auth{User: user, Password: password}
	}
	d, err := proxy.SOCKS5("tcp", address, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("probe: socks5 proxy %s: %w", address, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("probe: socks5 dialer does not support contexts")
	}
	return cd.DialContext, nil
}
