package relay

import "sync"

// bufferPool recycles pump read buffers across sessions.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	bp := &bufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return bp
}

func (p *bufferPool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return *b
}

func (p *bufferPool) Put(b []byte) {
	// Storing a pointer avoids the slice-header-to-interface{} allocation
	// on every Put.
	p.pool.Put(&b)
}
