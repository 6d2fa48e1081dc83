package relay

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// Server accepts inbound client connections and runs one independent
// session per connection. Sessions share nothing but the read-only Config.
type Server struct {
	cfg      Config
	bufs     *bufferPool
	sessions sync.WaitGroup
}

func NewServer(cfg Config) *Server {
	return &Server{
		cfg:  cfg,
		bufs: newBufferPool(cfg.chunkSize()),
	}
}

// Serve accepts connections on ln until the listener is closed, then waits
// for in-flight sessions to drain before returning. Sessions are never
// forcibly killed; they terminate through their own pump timeouts.
func (s *Server) Serve(ln net.Listener) error {
	defer s.sessions.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.handle(c)
		}()
	}
}
