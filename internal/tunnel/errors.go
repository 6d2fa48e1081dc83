package tunnel

import (
	"errors"
	"fmt"
	"net"
)

// Failure kinds for tunnel establishment. Callers match with errors.Is and
// label logs/metrics with Kind.
var (
	ErrConnectFailure = errors.New("connect failure")
	ErrProxyRejected  = errors.New("proxy rejected connect")
	ErrTLSFailed      = errors.New("tls handshake failed")
	ErrTimeout        = errors.New("i/o timeout")
)

// failure wraps err with the given kind, except that any timeout is
// reported as ErrTimeout regardless of which phase it occurred in.
func failure(kind, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		kind = ErrTimeout
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// Kind returns a stable label for a tunnel failure, suitable for metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrProxyRejected):
		return "proxy_rejected"
	case errors.Is(err, ErrTLSFailed):
		return "tls_failed"
	case errors.Is(err, ErrConnectFailure):
		return "connect_failure"
	default:
		return "other"
	}
}
