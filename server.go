package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/straga/scrivo-ftp/auth"
	"github.com/straga/scrivo-ftp/protocol"
	"github.com/straga/scrivo-ftp/terminal"
	"github.com/straga/scrivo-ftp/transfer"
)

// FTPServer accepts control connections and runs one session per client.
// All sessions share a single transfer engine, so data moves through one
// fixed-size buffer no matter how many clients are connected.
type FTPServer struct {
	config      *terminal.Config
	logger      *slog.Logger
	authService *auth.Service
	engine      *transfer.Engine

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	closed   bool

	wg sync.WaitGroup
}

// NewFTPServer wires a server from its configuration and credential policy.
func NewFTPServer(config *terminal.Config, checker auth.CredentialChecker, logger *slog.Logger) *FTPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &FTPServer{
		config:      config,
		logger:      logger,
		authService: auth.NewService(checker, config.AuthMode == "open"),
		engine:      transfer.NewEngine(transfer.NewBufferPool()),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Listen binds the control port. Force IPv4 so PASV replies can always
// encode the address.
func (server *FTPServer) Listen() error {
	addr := fmt.Sprintf("%s:%d", server.config.ListenHost, server.config.ListenPort)
	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("failed to start FTP server: %w", err)
	}

	server.mu.Lock()
	server.listener = listener
	server.mu.Unlock()

	server.logger.Info("FTP server listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound control address, or nil before Listen.
func (server *FTPServer) Addr() net.Addr {
	server.mu.Lock()
	defer server.mu.Unlock()
	if server.listener == nil {
		return nil
	}
	return server.listener.Addr()
}

// Serve runs the accept loop until the listener is closed.
func (server *FTPServer) Serve() error {
	server.mu.Lock()
	listener := server.listener
	server.mu.Unlock()
	if listener == nil {
		return errors.New("serve called before listen")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			server.mu.Lock()
			closed := server.closed
			server.mu.Unlock()
			if closed {
				return nil
			}
			server.logger.Error("accept failed", "error", err)
			return err
		}

		server.wg.Add(1)
		go func() {
			defer server.wg.Done()
			server.handleClient(conn)
		}()
	}
}

// ListenAndServe binds the control port and serves until Stop.
func (server *FTPServer) ListenAndServe() error {
	if err := server.Listen(); err != nil {
		return err
	}
	return server.Serve()
}

// Stop closes the listener, cancels running transfers and waits for all
// sessions to finish.
func (server *FTPServer) Stop() error {
	server.mu.Lock()
	server.closed = true
	listener := server.listener
	server.mu.Unlock()

	server.cancel()
	var err error
	if listener != nil {
		err = listener.Close()
	}
	server.wg.Wait()
	return err
}

// handleClient runs the command loop for one control connection.
func (server *FTPServer) handleClient(conn net.Conn) {
	session := newClientSession(server, conn)
	defer session.Close()

	// Server shutdown closes the control connection so the scanner below
	// unblocks; otherwise Stop would wait on idle clients forever.
	go func() {
		<-session.ctx.Done()
		session.Close()
	}()

	session.logger.Info("client connected")
	session.SendResponse(220, "Scrivo FTP service ready")

	handler := protocol.NewCommandHandler(session)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		command := strings.TrimSpace(scanner.Text())

		logged := command
		if strings.HasPrefix(strings.ToUpper(command), "PASS") {
			logged = "PASS [redacted]"
		}
		session.logger.Debug("command", "line", logged)

		handler.HandleCommand(command)
	}

	if err := scanner.Err(); err != nil {
		session.logger.Debug("control connection closed", "error", err)
	}
	session.logger.Info("client disconnected")
}
