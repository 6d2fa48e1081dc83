package relay

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/strait-net/strait/internal/testutil"
	"github.com/strait-net/strait/internal/tunnel"
)

func testTunnelConfig() tunnel.Config {
	return tunnel.Config{
		DialTimeout:        2 * time.Second,
		NegotiationTimeout: 2 * time.Second,
	}
}

func addrTarget(t *testing.T, addr string) tunnel.Target {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return tunnel.Target{Host: host, Port: port}
}

// startRelayServer runs a Server on an ephemeral port. Cleanup closes the
// listener and waits for Serve to return, which drains in-flight sessions.
func startRelayServer(t *testing.T, b *tunnel.Builder, ioTimeout time.Duration) net.Listener {
	t.Helper()

	ln, err := ListenTCP(context.Background(), "127.0.0.1:0", net.KeepAliveConfig{})
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer(Config{IOTimeout: ioTimeout, Builder: b})

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	})

	return ln
}

func TestServeReturnsNilOnListenerClose(t *testing.T) {
	ln, err := ListenTCP(context.Background(), "127.0.0.1:0", net.KeepAliveConfig{})
	if err != nil {
		t.Fatal(err)
	}

	b := tunnel.NewBuilder(testTunnelConfig(), tunnel.Target{Host: "127.0.0.1", Port: 1}, nil)
	srv := NewServer(Config{Builder: b})

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()

	_ = ln.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on listener close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after listener close")
	}
}

func TestServeDrainsSessionsOnShutdown(t *testing.T) {
	ctx := context.Background()
	echo := testutil.StartEchoTCPServer(t, ctx)

	b := tunnel.NewBuilder(testTunnelConfig(), addrTarget(t, echo.Addr().String()), nil)

	ln, err := ListenTCP(ctx, "127.0.0.1:0", net.KeepAliveConfig{})
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(Config{IOTimeout: 200 * time.Millisecond, Builder: b})

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEcho(t, client, client, []byte("hello"))

	// Stop accepting while the session is live; the session must keep
	// relaying until it terminates on its own.
	_ = ln.Close()

	testutil.AssertEcho(t, client, client, []byte("still alive"))
	_ = client.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not drain sessions")
	}
}
