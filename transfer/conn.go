package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// DataConn wraps an accepted data connection for the duration of one
// transfer. Every read and write must make progress within the idle
// timeout, and cancelling the context closes the socket, so a transfer can
// never hold the shared buffer past its session. Socket failures other
// than a clean EOF surface as ErrAborted.
type DataConn struct {
	conn        net.Conn
	idleTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewDataConn wraps conn. The watcher goroutine exits when the context is
// cancelled or the connection is closed, whichever comes first.
func NewDataConn(ctx context.Context, conn net.Conn, idleTimeout time.Duration) *DataConn {
	d := &DataConn{conn: conn, idleTimeout: idleTimeout, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			d.Close()
		case <-d.done:
		}
	}()
	return d
}

func (d *DataConn) Read(p []byte) (int, error) {
	if err := d.conn.SetReadDeadline(time.Now().Add(d.idleTimeout)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	n, err := d.conn.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return n, err
}

func (d *DataConn) Write(p []byte) (int, error) {
	if err := d.conn.SetWriteDeadline(time.Now().Add(d.idleTimeout)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	n, err := d.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return n, nil
}

// Close shuts the socket down. Safe to call more than once.
func (d *DataConn) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		err = d.conn.Close()
	})
	return err
}
