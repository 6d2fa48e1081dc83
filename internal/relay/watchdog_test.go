package relay

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strait-net/strait/internal/testutil"
	"github.com/strait-net/strait/internal/tunnel"
)

func startProbeTarget(t *testing.T, ctx context.Context, response string) net.Listener {
	t.Helper()

	return testutil.StartAcceptServer(t, ctx, func(c net.Conn) {
		drainRequestHead(c)
		_, _ = io.WriteString(c, response)
	})
}

// drainRequestHead consumes the probe request so that closing the
// connection afterwards cannot reset the response in flight.
func drainRequestHead(c net.Conn) {
	buf := make([]byte, 1024)
	var seen []byte
	for !bytes.Contains(seen, []byte("\r\n\r\n")) {
		n, err := c.Read(buf)
		seen = append(seen, buf[:n]...)
		if err != nil {
			return
		}
	}
}

func newWatchdogFor(t *testing.T, addr string) *Watchdog {
	t.Helper()

	b := tunnel.NewBuilder(testTunnelConfig(), addrTarget(t, addr), nil)
	return NewWatchdog(Config{IOTimeout: 2 * time.Second, Builder: b}, 10*time.Millisecond)
}

func TestProbeHealthy(t *testing.T) {
	ctx := context.Background()
	ln := startProbeTarget(t, ctx, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")

	if err := newWatchdogFor(t, ln.Addr().String()).Probe(ctx); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
}

func TestProbeAnyStatusIsHealthy(t *testing.T) {
	ctx := context.Background()
	// Reachability, not happiness: any status line counts.
	ln := startProbeTarget(t, ctx, "HTTP/1.1 503 Service Unavailable\r\n\r\n")

	if err := newWatchdogFor(t, ln.Addr().String()).Probe(ctx); err != nil {
		t.Fatalf("expected healthy on 503, got %v", err)
	}
}

func TestProbeNonHTTPPeerIsUnhealthy(t *testing.T) {
	ctx := context.Background()
	ln := startProbeTarget(t, ctx, "SSH-2.0-OpenSSH_9.6\r\n")

	if err := newWatchdogFor(t, ln.Addr().String()).Probe(ctx); err == nil {
		t.Fatal("expected unhealthy for non-HTTP peer")
	}
}

func TestProbeUnreachableIsUnhealthy(t *testing.T) {
	ctx := context.Background()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	if err := newWatchdogFor(t, addr).Probe(ctx); err == nil {
		t.Fatal("expected unhealthy for unreachable relay")
	}
}

func TestProbeTicksAreIndependent(t *testing.T) {
	ctx := context.Background()

	// First connection is dropped without a response; the second gets a
	// proper status line. A failing tick must not poison the next one.
	var calls atomic.Int32
	ln := testutil.StartAcceptServer(t, ctx, func(c net.Conn) {
		if calls.Add(1) == 1 {
			return
		}
		drainRequestHead(c)
		_, _ = io.WriteString(c, "HTTP/1.1 200 OK\r\n\r\n")
	})

	wd := newWatchdogFor(t, ln.Addr().String())

	if err := wd.Probe(ctx); err == nil {
		t.Fatal("expected first probe to fail")
	}
	if err := wd.Probe(ctx); err != nil {
		t.Fatalf("expected second probe to succeed, got %v", err)
	}
}

func TestWatchdogRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ln := startProbeTarget(t, ctx, "HTTP/1.1 200 OK\r\n\r\n")

	wd := newWatchdogFor(t, ln.Addr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		wd.Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop on cancel")
	}
}

func TestHasStatusToken(t *testing.T) {
	tests := []struct {
		resp string
		want bool
	}{
		{"HTTP/1.1 200 OK\r\n\r\n", true},
		{"HTTP/1.1 407 Proxy Authentication Required\r\n\r\n", true},
		{"HTTP/1.0 503 Service Unavailable\r\n", true},
		{"SSH-2.0-OpenSSH_9.6\r\n", false},
		{"hello world", false},
		{"1234 56", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := hasStatusToken([]byte(tt.resp)); got != tt.want {
			t.Errorf("hasStatusToken(%q) = %v, want %v", tt.resp, got, tt.want)
		}
	}
}
