// Package internal holds small utilities shared across TDB's packages: a
// consistent-hashing primitive used to pick a keyspace lock stripe, and a
// pooled scratch buffer used by the wire codec's encoder.
package internal

import (
	"bytes"
	"sync"
)

// BufferPool is a sync.Pool of scratch *bytes.Buffer values, avoiding an
// allocation per call when building a framed command line. Terrapipe's
// encoder uses one for its MetaLine2 scratch space.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool builds a BufferPool whose buffers start with the given
// capacity.
func NewBufferPool(initialSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

// Get returns a buffer, empty and ready to write.
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets buf and returns it to the pool.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	p.pool.Put(buf)
}
