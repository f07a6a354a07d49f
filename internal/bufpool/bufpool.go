// Package bufpool implements a sync.Pool-backed byte-slice pool, so a
// connection's per-frame read/send buffers are reused instead of
// allocated fresh on every frame. Adapted from the teacher's
// internal/login/bufpool.go BytePool, unchanged in shape.
package bufpool

import "sync"

// Pool hands out byte slices of a default capacity and takes them back
// for reuse.
type Pool struct {
	pool sync.Pool
}

// New creates a Pool whose fresh slices start at defaultCap capacity.
func New(defaultCap int) *Pool {
	p := &Pool{}
	p.pool.New = func() any {
		return make([]byte, 0, defaultCap)
	}
	return p
}

// Get returns a slice of length size, reused from the pool when its
// capacity already suffices.
func (p *Pool) Get(size int) []byte {
	b := p.pool.Get().([]byte)
	if cap(b) < size {
		p.pool.Put(b)
		return make([]byte, size)
	}
	b = b[:size]
	clear(b)
	return b
}

// Put returns a slice to the pool for reuse.
func (p *Pool) Put(b []byte) {
	if b == nil {
		return
	}
	p.pool.Put(b[:0])
}
