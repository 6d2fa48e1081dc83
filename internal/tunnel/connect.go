package tunnel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// connectThrough asks the upstream HTTP proxy to open a raw tunnel to the
// relay target and waits for its response.
func (b *Builder) connectThrough(c net.Conn) error {
	if b.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(b.cfg.NegotiationTimeout))
	}

	addr := b.target.Addr()
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr)
	if _, err := io.WriteString(c, req); err != nil {
		return failure(ErrConnectFailure, fmt.Errorf("connect write: %w", err))
	}

	resp, err := readResponseHead(c)
	if err != nil {
		return err
	}

	// The response is accepted if the literal substring "200" appears
	// anywhere in it, not just in the status-code field. Intentionally
	// lax; matches the long-standing wire behavior this tool relays for.
	if !bytes.Contains(resp, []byte("200")) {
		return fmt.Errorf("%w: %q", ErrProxyRejected, statusLine(resp))
	}

	if b.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Time{})
	}
	return nil
}

// readResponseHead accumulates reads until the header terminator is seen.
// The terminator may arrive split across any number of reads. A peer close
// before the terminator is a rejection; a deadline expiry is a timeout.
func readResponseHead(c net.Conn) ([]byte, error) {
	var resp []byte
	buf := make([]byte, 4096)

	for !bytes.Contains(resp, []byte(headerSep)) {
		n, err := c.Read(buf)
		resp = append(resp, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: closed before response complete: %q", ErrProxyRejected, statusLine(resp))
			}
			return nil, failure(ErrConnectFailure, fmt.Errorf("connect read: %w", err))
		}
	}

	return resp, nil
}

// statusLine returns the first line of an HTTP response head, for error
// messages.
func statusLine(resp []byte) string {
	if i := bytes.Index(resp, []byte("\r\n")); i >= 0 {
		return string(resp[:i])
	}
	return string(resp)
}
