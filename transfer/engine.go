package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
)

// ErrAborted is returned when a transfer is cancelled mid-stream, typically
// because the control connection went away.
var ErrAborted = errors.New("transfer aborted")

// Engine streams bytes between files and data sockets through the shared
// buffer pool. Both directions claim the buffer before moving the first
// chunk and release it on every exit path.
type Engine struct {
	pool *BufferPool
}

// NewEngine creates a transfer engine backed by the given pool.
func NewEngine(pool *BufferPool) *Engine {
	return &Engine{pool: pool}
}

// Pool exposes the underlying buffer pool, mainly for tests asserting the
// exclusivity invariant.
func (e *Engine) Pool() *BufferPool {
	return e.pool
}

// Download copies src (an open file) to dst (the data socket) until EOF.
// Returns the byte count written. On error the caller must close both ends;
// nothing is retried.
func (e *Engine) Download(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return e.copyChunked(ctx, dst, src)
}

// Upload copies src (the data socket) to dst (the temp file) until the
// socket signals end-of-stream. Returns the byte count written. The caller
// owns promotion or discard of the temp file.
func (e *Engine) Upload(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return e.copyChunked(ctx, dst, src)
}

// copyChunked is the memory-bounded pipeline: read up to ChunkSize bytes,
// write them out, yield, repeat. The shared buffer is held for the whole
// transfer, which is what serializes transfers system-wide.
func (e *Engine) copyChunked(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf, err := e.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	defer e.pool.Release(buf)

	var written int64
	for {
		if ctx.Err() != nil {
			return written, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nw < n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}

		// Let other sessions run between chunks.
		runtime.Gosched()
	}
}
