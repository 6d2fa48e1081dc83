package tunnel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Target is the relay endpoint all client traffic is forwarded to.
// Immutable for the process lifetime.
type Target struct {
	Host          string
	Port          int
	UseTLS        bool
	TLSSkipVerify bool
	Username      string
	Password      string
}

// Addr returns the target as host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Upstream is an intermediate proxy the tunnel must route through before
// reaching the relay. Immutable; resolved once at startup.
type Upstream struct {
	Scheme string // "http" or "socks5"
	Addr   string // host:port
}

// Builder produces ready-to-use relay transports. Safe for concurrent use:
// it holds only immutable configuration.
type Builder struct {
	cfg      Config
	target   Target
	upstream *Upstream
	hasCred  bool
}

// NewBuilder constructs a Builder for target, routing through upstream when
// non-nil.
func NewBuilder(cfg Config, target Target, upstream *Upstream) *Builder {
	return &Builder{
		cfg:      cfg,
		target:   target,
		upstream: upstream,
		hasCred:  target.Username != "" && target.Password != "",
	}
}

// Target returns the relay endpoint the builder dials.
func (b *Builder) Target() Target {
	return b.target
}

// Upstream returns the configured intermediate proxy, or nil.
func (b *Builder) Upstream() *Upstream {
	return b.upstream
}

// Build establishes one transport to the relay: via CONNECT through the
// upstream proxy when one is configured, TLS-wrapped when the target asks
// for it. It also returns the pending credential to inject into the first
// client-to-relay frame, or nil when the target carries no credentials.
//
// The caller owns the returned transport and must close it.
func (b *Builder) Build(ctx context.Context) (net.Conn, *Credential, error) {
	c, err := b.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	if b.target.UseTLS {
		c, err = b.wrapTLS(ctx, c)
		if err != nil {
			return nil, nil, err
		}
	}

	var cred *Credential
	if b.hasCred {
		cred = NewCredential(b.target.Username, b.target.Password)
	}
	return c, cred, nil
}

func (b *Builder) dial(ctx context.Context) (net.Conn, error) {
	if b.upstream == nil {
		return b.dialDirect(ctx, b.target.Addr())
	}

	switch b.upstream.Scheme {
	case "socks5":
		return b.dialSOCKS5()
	default:
		c, err := b.dialDirect(ctx, b.upstream.Addr)
		if err != nil {
			return nil, err
		}
		if err := b.connectThrough(c); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}
}

func (b *Builder) dialDirect(ctx context.Context, addr string) (net.Conn, error) {
	dd := net.Dialer{Timeout: b.cfg.DialTimeout}

	c, err := dd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, failure(ErrConnectFailure, fmt.Errorf("dial tcp %s: %w", addr, err))
	}

	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(b.cfg.KeepAlive)
	}

	return c, nil
}

func (b *Builder) wrapTLS(ctx context.Context, c net.Conn) (net.Conn, error) {
	tlsConn := tls.Client(c, &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         b.target.Host,
		InsecureSkipVerify: b.target.TLSSkipVerify, //nolint:gosec // Opt-in via flag.
	})

	if b.cfg.NegotiationTimeout > 0 {
		_ = tlsConn.SetDeadline(time.Now().Add(b.cfg.NegotiationTimeout))
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = tlsConn.Close()
		return nil, failure(ErrTLSFailed, err)
	}
	if b.cfg.NegotiationTimeout > 0 {
		_ = tlsConn.SetDeadline(time.Time{})
	}

	return tlsConn, nil
}
