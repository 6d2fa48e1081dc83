package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/strait-net/strait/internal/relay"
	"github.com/strait-net/strait/internal/sysproxy"
	"github.com/strait-net/strait/internal/tunnel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen = pflag.String("listen", "127.0.0.1:8080", "Local listen address for plaintext client connections")

		relayHost          = pflag.String("relay-host", "", "Relay host all traffic is forwarded to (required)")
		relayPort          = pflag.Int("relay-port", 443, "Relay port")
		relayTLS           = pflag.Bool("relay-tls", false, "Wrap the relay leg in TLS")
		relayTLSSkipVerify = pflag.Bool("relay-tls-skip-verify", false, "Skip certificate verification on the relay TLS leg")
		relayUser          = pflag.String("relay-user", "", "Username for the Proxy-Authorization header injected into the first request")
		relayPass          = pflag.String("relay-pass", "", "Password for the Proxy-Authorization header injected into the first request")

		upstream = pflag.String("upstream", "env://", "Upstream proxy to tunnel through: env:// (use proxy environment variables) | direct:// | http://host:port | socks5://host:port")

		ioTimeout          = pflag.Duration("io-timeout", 60*time.Second, "Idle timeout for session reads and writes")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for CONNECT negotiation and TLS handshake")
		watchdogInterval   = pflag.Duration("watchdog-interval", 10*time.Second, "Interval between relay reachability probes")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")

		metricsListen = pflag.String("metrics-listen", "", "Metrics HTTP listen address exposing /metrics (e.g. 127.0.0.1:9090). Empty disables.")
		debugListen   = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
		verbose       = pflag.Bool("verbose", false, "Enable per-frame transit logging")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *relayHost == "" {
		return errors.New("--relay-host is required")
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	up, err := resolveUpstream(*upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	target := tunnel.Target{
		Host:          *relayHost,
		Port:          *relayPort,
		UseTLS:        *relayTLS,
		TLSSkipVerify: *relayTLSSkipVerify,
		Username:      *relayUser,
		Password:      *relayPass,
	}

	builder := tunnel.NewBuilder(tunnel.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
	}, target, up)

	cfg := relay.Config{
		IOTimeout: *ioTimeout,
		Builder:   builder,
	}

	wd := relay.NewWatchdog(cfg, *watchdogInterval)

	// Fail fast: one probe before accepting any client.
	if err := wd.Probe(context.Background()); err != nil {
		return fmt.Errorf("relay self-test failed: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		logrus.Infof("debug listening on %s", *debugListen)
	}

	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Handler: mux} //nolint:gosec // Not concerned about timeouts on metrics port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		metricsLn, err := lc.Listen(ctx, "tcp", *metricsListen)
		if err != nil {
			return fmt.Errorf("metrics listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = metricsSrv.Close()
			_ = metricsLn.Close()
		})

		g.Go(func() error {
			if err := metricsSrv.Serve(metricsLn); err != nil {
				return fmt.Errorf("metrics serve: %w", err)
			}
			return nil
		})
		logrus.Infof("metrics listening on %s", *metricsListen)
	}

	ln, err := relay.ListenTCP(ctx, *listen, ka)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := relay.NewServer(cfg)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("relay serve: %w", err)
		}
		return nil
	})
	logrus.Infof("relaying %s -> %s", *listen, target.Addr())

	g.Go(func() error {
		wd.Run(ctx)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	logrus.Info("shutting down")
	return err
}

// resolveUpstream turns the --upstream flag into an optional intermediate
// proxy hop. The default, env://, defers to the proxy environment variables
// the way OS-configured proxies surface them.
func resolveUpstream(s string) (*tunnel.Upstream, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct://", "direct":
		return nil, nil
	case "env://", "env", "":
		up, err := sysproxy.FromEnvironment()
		if err != nil {
			return nil, err
		}
		if up == nil {
			logrus.Info("no system proxy detected")
		} else {
			logrus.Infof("system proxy detected: %s (%s)", up.Addr, up.Scheme)
		}
		return up, nil
	default:
		return sysproxy.Parse(s)
	}
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}
