package tunnel

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds DNS lookup and TCP connect for each hop.
	DialTimeout time.Duration

	// NegotiationTimeout bounds CONNECT negotiation and the TLS handshake.
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig
}
