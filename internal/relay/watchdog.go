package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strait-net/strait/internal/obs"
	"github.com/strait-net/strait/internal/tunnel"
)

const probeReadLimit = 4096

// Watchdog periodically checks relay reachability, independent of any live
// session. It is purely observational: a failing probe is logged and
// counted but never tears down the acceptor or existing sessions.
type Watchdog struct {
	cfg      Config
	interval time.Duration
}

func NewWatchdog(cfg Config, interval time.Duration) *Watchdog {
	return &Watchdog{cfg: cfg, interval: interval}
}

// Run probes once per interval until ctx is canceled. Ticks carry no state
// from one to the next.
func (w *Watchdog) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		if err := w.Probe(ctx); err != nil {
			obs.RelayHealthy.Set(0)
			logrus.WithFields(logrus.Fields{"kind": tunnel.Kind(err)}).Warnf("relay probe failed: %v", err)
		} else {
			obs.RelayHealthy.Set(1)
			logrus.Debug("relay probe ok")
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Probe builds one throwaway tunnel, sends a minimal request, and checks
// that the response starts with something shaped like an HTTP status line.
// The probe transport is always closed, whatever the outcome.
func (w *Watchdog) Probe(ctx context.Context) error {
	start := time.Now()
	defer func() {
		obs.ProbeSeconds.Observe(time.Since(start).Seconds())
	}()

	c, _, err := w.cfg.Builder.Build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if w.cfg.IOTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(w.cfg.IOTimeout))
	}

	host := w.cfg.Builder.Target().Host
	req := fmt.Sprintf("HEAD / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", host)
	if _, err := io.WriteString(c, req); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}

	resp, err := readProbeResponse(c)
	if err != nil {
		return fmt.Errorf("probe read: %w", err)
	}
	if !hasStatusToken(resp) {
		return fmt.Errorf("probe response has no status line: %q", firstLine(resp))
	}
	return nil
}

// readProbeResponse accumulates reads until a full line is available, the
// read limit is reached, or the peer closes.
func readProbeResponse(c net.Conn) ([]byte, error) {
	var resp []byte
	buf := make([]byte, 1024)

	for len(resp) < probeReadLimit && !bytes.Contains(resp, []byte("\r\n")) {
		n, err := c.Read(buf)
		resp = append(resp, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) && len(resp) > 0 {
				break
			}
			return nil, err
		}
	}

	return resp, nil
}

// hasStatusToken reports whether the first response line contains any
// three-digit token. Any status code counts as reachable; classification
// is about the relay answering at all, not answering happily.
func hasStatusToken(resp []byte) bool {
	line := firstLine(resp)
	for _, tok := range bytes.Fields([]byte(line)) {
		if len(tok) != 3 {
			continue
		}
		digits := true
		for _, b := range tok {
			if b < '0' || b > '9' {
				digits = false
				break
			}
		}
		if digits {
			return true
		}
	}
	return false
}

func firstLine(resp []byte) string {
	if i := bytes.Index(resp, []byte("\r\n")); i >= 0 {
		return string(resp[:i])
	}
	return string(resp)
}
