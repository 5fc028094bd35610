package transfer

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrAcceptTimeout is returned when no client connects to the passive
// listener within the accept window. The pending transfer must be dropped
// without touching the filesystem.
var ErrAcceptTimeout = errors.New("no data connection arrived")

// ErrNoDataConn is returned when a transfer command is attempted without a
// usable passive listener.
var ErrNoDataConn = errors.New("no passive data channel")

// PassiveListener is the single-use data-channel listener advertised by a
// PASV reply. It accepts exactly one connection and is closed afterwards
// whether or not a connection arrived.
type PassiveListener struct {
	ln   *net.TCPListener
	port int
}

// OpenPassive binds a listener for one data connection. With portStart and
// portEnd both zero the OS picks an ephemeral port; otherwise each port in
// the range is tried in order, mirroring how the server cycles its data
// port range.
func OpenPassive(host string, portStart, portEnd int) (*PassiveListener, error) {
	if portStart == 0 && portEnd == 0 {
		return listenOn(host, 0)
	}

	var lastErr error
	for port := portStart; port <= portEnd; port++ {
		pl, err := listenOn(host, port)
		if err == nil {
			return pl, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free data port in %d-%d: %w", portStart, portEnd, lastErr)
}

func listenOn(host string, port int) (*PassiveListener, error) {
	// tcp4: the PASV reply format can only carry an IPv4 address.
	ln, err := net.Listen("tcp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, err
	}
	tcpLn := ln.(*net.TCPListener)
	return &PassiveListener{
		ln:   tcpLn,
		port: ln.Addr().(*net.TCPAddr).Port,
	}, nil
}

// Port returns the port advertised to the client.
func (p *PassiveListener) Port() int {
	return p.port
}

// Accept waits up to timeout for the client's data connection. The listener
// is closed before returning in every case; a PassiveListener is good for
// one transfer only.
func (p *PassiveListener) Accept(timeout time.Duration) (net.Conn, error) {
	defer p.ln.Close()

	if err := p.ln.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	conn, err := p.ln.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrAcceptTimeout
		}
		return nil, err
	}
	return conn, nil
}

// Close releases the listener without accepting. Safe to call repeatedly.
func (p *PassiveListener) Close() error {
	return p.ln.Close()
}

// EncodePasvAddr renders the classic six-octet PASV payload
// (h1,h2,h3,h4,p1,p2) for the given IPv4 address and port.
func EncodePasvAddr(ip net.IP, port int) string {
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4(127, 0, 0, 1).To4()
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", v4[0], v4[1], v4[2], v4[3], port/256, port%256)
}
