package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/strait-net/strait/internal/obs"
	"github.com/strait-net/strait/internal/tunnel"
)

const (
	dirClientToRelay = "client->relay"
	dirRelayToClient = "relay->client"
)

// session owns exactly one client transport and one relay transport. Both
// are closed exactly once, after both pumps have terminated, via closeOnce.
type session struct {
	cfg    Config
	bufs   *bufferPool
	client net.Conn
	relay  net.Conn
	cred   *tunnel.Credential
	peer   string

	closeOnce sync.Once
}

// handle builds the tunnel for one accepted client and relays until both
// directions terminate. Tunnel failure aborts the session immediately; no
// retry within a session.
func (s *Server) handle(clientConn net.Conn) {
	peer := clientConn.RemoteAddr().String()

	obs.SessionsTotal.Inc()
	obs.ActiveSessions.Inc()
	defer obs.ActiveSessions.Dec()

	relayConn, cred, err := s.cfg.Builder.Build(context.Background())
	if err != nil {
		obs.TunnelErrorsTotal.WithLabelValues(tunnel.Kind(err)).Inc()
		logrus.WithFields(logrus.Fields{"peer": peer, "kind": tunnel.Kind(err)}).Warnf("tunnel build failed: %v", err)
		_ = clientConn.Close()
		return
	}

	sess := &session{
		cfg:    s.cfg,
		bufs:   s.bufs,
		client: clientConn,
		relay:  relayConn,
		cred:   cred,
		peer:   peer,
	}
	sess.run()
}

func (sess *session) run() {
	defer sess.closeBoth()

	var g errgroup.Group

	// The two pumps are deliberately independent: no cross-cancellation.
	// Each discovers a broken peer through its own read or write failing.
	g.Go(func() error {
		return sess.pump(sess.client, sess.relay, dirClientToRelay, sess.cred)
	})
	g.Go(func() error {
		return sess.pump(sess.relay, sess.client, dirRelayToClient, nil)
	})

	if err := g.Wait(); err != nil && !isTeardown(err) {
		logrus.WithFields(logrus.Fields{"peer": sess.peer}).Warnf("session error: %v", err)
	}
	logrus.WithFields(logrus.Fields{"peer": sess.peer}).Debug("session closed")
}

func (sess *session) closeBoth() {
	sess.closeOnce.Do(func() {
		_ = sess.client.Close()
		_ = sess.relay.Close()
	})
}

// pump forwards bytes from src to dst until EOF, timeout, or a transport
// error ends this direction. Bytes are forwarded in read order, unmodified
// except for the single credential splice on the first client-to-relay
// frame.
func (sess *session) pump(src, dst net.Conn, direction string, cred *tunnel.Credential) error {
	buf := sess.bufs.Get()
	defer sess.bufs.Put(buf)

	for {
		if sess.cfg.IOTimeout > 0 {
			_ = src.SetReadDeadline(time.Now().Add(sess.cfg.IOTimeout))
		}

		n, err := src.Read(buf)
		if n > 0 {
			frame := buf[:n]
			if cred.Pending() {
				frame = cred.Splice(frame)
			}

			if sess.cfg.IOTimeout > 0 {
				_ = dst.SetWriteDeadline(time.Now().Add(sess.cfg.IOTimeout))
			}
			if _, werr := dst.Write(frame); werr != nil {
				return werr
			}

			obs.RelayedBytesTotal.WithLabelValues(direction).Add(float64(len(frame)))
			if logrus.IsLevelEnabled(logrus.DebugLevel) {
				logrus.WithFields(logrus.Fields{"peer": sess.peer, "direction": direction, "bytes": len(frame)}).Debug("transit")
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// isTeardown reports whether err is part of normal session teardown: a
// quiet peer hitting the idle timeout, or a transport that was closed out
// from under the pump.
func isTeardown(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
