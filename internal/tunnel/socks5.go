package tunnel

import (
	"fmt"
	"net"

	"github.com/txthinking/socks5"
)

// dialSOCKS5 reaches the relay target through a SOCKS5 upstream proxy.
// Environment-configured proxies (ALL_PROXY) are often socks5.
func (b *Builder) dialSOCKS5() (net.Conn, error) {
	tcpTimeout := 0
	if b.cfg.DialTimeout > 0 {
		tcpTimeout = int(b.cfg.DialTimeout.Seconds())
		if tcpTimeout <= 0 {
			tcpTimeout = 1
		}
	}

	client, err := socks5.NewClient(b.upstream.Addr, "", "", tcpTimeout, 0)
	if err != nil {
		return nil, failure(ErrConnectFailure, fmt.Errorf("socks5 upstream init: %w", err))
	}

	c, err := client.Dial("tcp", b.target.Addr())
	if err != nil {
		return nil, failure(ErrConnectFailure, fmt.Errorf("socks5 upstream dial %s: %w", b.target.Addr(), err))
	}
	return c, nil
}
