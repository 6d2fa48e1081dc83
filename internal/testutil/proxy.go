package testutil

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
)

// StartConnectProxy starts a minimal HTTP CONNECT proxy. For each accepted
// connection it reads one CONNECT request, dials the requested target,
// replies 200, and pipes bytes both ways.
func StartConnectProxy(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	return StartAcceptServer(t, ctx, func(c net.Conn) {
		target, ok := readConnectTarget(c)
		if !ok {
			return
		}

		dst, err := net.Dial("tcp", target)
		if err != nil {
			_, _ = io.WriteString(c, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
			return
		}
		defer dst.Close()

		_, _ = io.WriteString(c, "HTTP/1.1 200 Connection Established\r\n\r\n")

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = io.Copy(dst, c)
			_ = dst.Close()
		}()
		_, _ = io.Copy(c, dst)
		_ = c.Close()
		<-done
	})
}

// StartRejectingProxy starts a proxy that answers every CONNECT with
// response and closes the connection.
func StartRejectingProxy(t *testing.T, ctx context.Context, response string) net.Listener {
	t.Helper()

	return StartAcceptServer(t, ctx, func(c net.Conn) {
		if _, ok := readConnectTarget(c); !ok {
			return
		}
		_, _ = io.WriteString(c, response)
	})
}

// readConnectTarget consumes a CONNECT request head and returns its target.
func readConnectTarget(c net.Conn) (string, bool) {
	var req []byte
	buf := make([]byte, 1024)

	for !bytes.Contains(req, []byte("\r\n\r\n")) {
		n, err := c.Read(buf)
		req = append(req, buf[:n]...)
		if err != nil {
			return "", false
		}
	}

	line, _, _ := strings.Cut(string(req), "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "CONNECT" {
		return "", false
	}
	return fields[1], true
}
