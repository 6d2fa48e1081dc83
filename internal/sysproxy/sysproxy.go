// Package sysproxy resolves the environment-configured HTTP proxy, if any,
// into an upstream hop for the tunnel builder.
package sysproxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"github.com/strait-net/strait/internal/tunnel"
)

// FromEnvironment returns the proxy configured via the standard proxy
// environment variables (HTTP_PROXY, HTTPS_PROXY, ALL_PROXY and their
// lowercase variants), or nil when none is set.
func FromEnvironment() (*tunnel.Upstream, error) {
	cfg := httpproxy.FromEnvironment()

	raw := cfg.HTTPProxy
	if raw == "" {
		raw = cfg.HTTPSProxy
	}
	if raw == "" {
		// httpproxy does not consult ALL_PROXY, but socks5 proxies are
		// usually configured through it.
		raw = os.Getenv("ALL_PROXY")
	}
	if raw == "" {
		raw = os.Getenv("all_proxy")
	}
	if raw == "" {
		return nil, nil
	}

	return Parse(raw)
}

// Parse converts a proxy URL or bare host:port into an Upstream.
//
// Supported schemes are http (CONNECT) and socks5; a missing scheme means
// http. A missing port gets the scheme default.
func Parse(raw string) (*tunnel.Upstream, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, errors.New("proxy url missing host")
	}

	port := u.Port()
	if port == "" {
		port = defaultPortForScheme(scheme)
	}

	return &tunnel.Upstream{Scheme: scheme, Addr: net.JoinHostPort(host, port)}, nil
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "socks5":
		return "1080"
	default:
		return "80"
	}
}
