// Package bytepool rents and returns fixed-size byte buffers for container
// bodies. Each distinct size class gets its own sync.Pool so that a
// container of a given byte length always recycles a buffer of that exact
// capacity, avoiding the internal fragmentation a single shared pool would
// produce. Pool usage is tracked with atomic hit/miss counters, mirroring
// the teacher's pooled RLP encoder (rlp/encoder_pool.go).
package bytepool

import (
	"sync"
	"sync/atomic"
)

// Metrics tracks rent/return activity for a FixedBytePool.
type Metrics struct {
	Hits    atomic.Int64
	Misses  atomic.Int64
	Returns atomic.Int64
	Rents   atomic.Int64
}

// MetricsSnapshot is a frozen copy of Metrics values.
type MetricsSnapshot struct {
	Hits    int64
	Misses  int64
	Returns int64
	Rents   int64
}

// Snapshot returns a point-in-time copy of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:    m.Hits.Load(),
		Misses:  m.Misses.Load(),
		Returns: m.Returns.Load(),
		Rents:   m.Rents.Load(),
	}
}

// FixedBytePool hands out []byte buffers in one of a small number of fixed
// size classes, backed by one sync.Pool per class. Buffers are rented with
// Rent and must be returned with Return once the caller is done with them;
// a returned buffer of the wrong length is discarded rather than pooled.
type FixedBytePool struct {
	mu      sync.RWMutex
	classes map[int]*sync.Pool
	metrics Metrics
}

// New creates an empty FixedBytePool. Size classes are created lazily on
// first Rent for a given size.
func New() *FixedBytePool {
	return &FixedBytePool{classes: make(map[int]*sync.Pool)}
}

// Metrics returns the pool's usage counters.
func (p *FixedBytePool) Metrics() *Metrics {
	return &p.metrics
}

func (p *FixedBytePool) classFor(size int) *sync.Pool {
	p.mu.RLock()
	cls, ok := p.classes[size]
	p.mu.RUnlock()
	if ok {
		return cls
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cls, ok = p.classes[size]; ok {
		return cls
	}
	cls = &sync.Pool{
		New: func() any {
			p.metrics.Misses.Add(1)
			buf := make([]byte, size)
			return &buf
		},
	}
	p.classes[size] = cls
	return cls
}

// Rent returns a buffer of exactly size bytes. When zero is true the
// buffer's contents are cleared before being handed back, which is
// required whenever the caller will read unwritten slots (e.g. a fresh
// container materialization); callers that will overwrite every byte
// before reading may skip it.
func (p *FixedBytePool) Rent(size int, zero bool) []byte {
	if size <= 0 {
		return nil
	}
	cls := p.classFor(size)
	ptr := cls.Get().(*[]byte)
	buf := *ptr
	p.metrics.Rents.Add(1)
	if len(buf) != size {
		// Defensive against a misconfigured pool entry; treat as a miss
		// and allocate fresh rather than hand back a mismatched buffer.
		p.metrics.Misses.Add(1)
		buf = make([]byte, size)
	} else {
		p.metrics.Hits.Add(1)
	}
	if zero {
		for i := range buf {
			buf[i] = 0
		}
	}
	return buf
}

// Return gives buf back to its size class for reuse. Buffers whose length
// does not match any rented size are dropped silently; the garbage
// collector reclaims them normally.
func (p *FixedBytePool) Return(buf []byte) {
	if len(buf) == 0 {
		return
	}
	p.mu.RLock()
	cls, ok := p.classes[len(buf)]
	p.mu.RUnlock()
	if !ok {
		return
	}
	p.metrics.Returns.Add(1)
	cls.Put(&buf)
}
