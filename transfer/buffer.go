package transfer

import (
	"context"
	"sync"
)

// ChunkSize is the size of the shared transfer buffer. Every file and
// listing transfer moves through one buffer of this size, which bounds the
// server's transfer memory to a single fixed region no matter how many
// sessions are connected.
const ChunkSize = 512

// BufferPool hands out the single shared transfer buffer. At most one
// transfer holds the buffer at any instant; claims are granted strictly in
// arrival order so that a slow transfer cannot starve later ones forever.
//
// This serializes all transfers on purpose. The trade-off is documented in
// the server design: throughput is sacrificed for a fixed memory footprint.
type BufferPool struct {
	mu      sync.Mutex
	buf     []byte
	held    bool
	waiters []chan []byte
}

// NewBufferPool creates the pool with one buffer of ChunkSize bytes.
func NewBufferPool() *BufferPool {
	return &BufferPool{buf: make([]byte, ChunkSize)}
}

// Acquire claims the shared buffer, blocking until it is free or ctx is
// done. Waiters are queued first-come-first-served.
func (p *BufferPool) Acquire(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	if !p.held {
		p.held = true
		buf := p.buf
		p.mu.Unlock()
		return buf, nil
	}

	// Capacity 1 so a Release racing with cancellation never blocks.
	ch := make(chan []byte, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case buf := <-ch:
		return buf, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ch {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		p.mu.Unlock()
		// Already granted by a concurrent Release; pass it on.
		p.Release(<-ch)
		return nil, ctx.Err()
	}
}

// Release returns the buffer, handing it to the oldest waiter if any.
func (p *BufferPool) Release(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		ch <- buf
		return
	}
	p.held = false
}

// Held reports whether the buffer is currently claimed. Used by tests to
// assert the exclusivity invariant.
func (p *BufferPool) Held() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}
