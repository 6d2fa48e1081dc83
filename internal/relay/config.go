package relay

import (
	"time"

	"github.com/strait-net/strait/internal/tunnel"
)

const defaultChunkSize = 16 << 10

type Config struct {
	// IOTimeout bounds each pump read and write. A pump whose peer goes
	// quiet for longer terminates; the opposite pump discovers the broken
	// session through its own I/O.
	IOTimeout time.Duration

	// ChunkSize is the pump read size. Zero means 16 KiB.
	ChunkSize int

	Builder *tunnel.Builder
}

func (c Config) chunkSize() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return defaultChunkSize
}
