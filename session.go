package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/straga/scrivo-ftp/fsutil"
	"github.com/straga/scrivo-ftp/transfer"
)

// ClientSession holds the per-connection state behind one control
// connection. It implements protocol.SessionInterface; the command layer
// never touches sockets or the filesystem directly.
type ClientSession struct {
	server      *FTPServer
	controlConn net.Conn
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// writeMutex serializes replies. A transfer goroutine sends its 150
	// mark on the same connection the command loop replies on.
	writeMutex sync.Mutex

	authenticated bool
	pendingUser   string
	username      string

	currentDir   string
	transferType string
	renameFrom   string

	passive *transfer.PassiveListener

	closeOnce sync.Once
}

func newClientSession(server *FTPServer, conn net.Conn) *ClientSession {
	ctx, cancel := context.WithCancel(server.ctx)
	return &ClientSession{
		server:       server,
		controlConn:  conn,
		logger:       server.logger.With("client", conn.RemoteAddr().String()),
		ctx:          ctx,
		cancel:       cancel,
		currentDir:   "/",
		transferType: "I",
	}
}

// Core session operations

func (session *ClientSession) SendResponse(code int, message string) {
	session.writeMutex.Lock()
	defer session.writeMutex.Unlock()

	if _, err := fmt.Fprintf(session.controlConn, "%d %s\r\n", code, message); err != nil {
		session.logger.Debug("control write failed", "error", err)
	}
}

func (session *ClientSession) SendRaw(lines string) {
	session.writeMutex.Lock()
	defer session.writeMutex.Unlock()

	if _, err := fmt.Fprint(session.controlConn, lines); err != nil {
		session.logger.Debug("control write failed", "error", err)
	}
}

func (session *ClientSession) Logger() *slog.Logger {
	return session.logger
}

// Login state

func (session *ClientSession) IsAuthenticated() bool { return session.authenticated }
func (session *ClientSession) Username() string      { return session.username }

func (session *ClientSession) BeginLogin(username string) bool {
	session.pendingUser = username
	if session.server.authService.BeginLogin(username) {
		session.authenticated = true
		session.username = username
		session.logger.Info("client logged in", "user", username)
		return true
	}
	return false
}

func (session *ClientSession) HasPendingUser() bool { return session.pendingUser != "" }

func (session *ClientSession) CompleteLogin(password string) bool {
	if !session.server.authService.CompleteLogin(session.pendingUser, password) {
		session.logger.Warn("login rejected", "user", session.pendingUser)
		return false
	}
	session.authenticated = true
	session.username = session.pendingUser
	session.logger.Info("client logged in", "user", session.username)
	return true
}

// Navigation state

func (session *ClientSession) CurrentDir() string { return session.currentDir }

func (session *ClientSession) ChangeDir(path string) error {
	virtual, real, err := session.resolve(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(real)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", virtual, os.ErrInvalid)
	}

	session.currentDir = virtual
	return nil
}

func (session *ClientSession) TransferType() string { return session.transferType }
func (session *ClientSession) SetTransferType(transferType string) {
	session.transferType = transferType
}

// Rename pair state

func (session *ClientSession) PrepareRename(fromPath string) error {
	_, real, err := session.resolve(fromPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(real); err != nil {
		return err
	}
	session.renameFrom = real
	return nil
}

func (session *ClientSession) HasRenameFrom() bool { return session.renameFrom != "" }

func (session *ClientSession) CompleteRename(toPath string) error {
	from := session.renameFrom
	session.renameFrom = ""

	_, real, err := session.resolve(toPath)
	if err != nil {
		return err
	}
	return os.Rename(from, real)
}

// Passive data channel

// EnterPassive opens a fresh passive listener. A repeated PASV closes the
// previous listener first, so at most one is live per session.
func (session *ClientSession) EnterPassive() (string, error) {
	session.retirePassive()

	listener, err := transfer.OpenPassive(session.server.config.ListenHost,
		session.server.config.DataPortStart, session.server.config.DataPortEnd)
	if err != nil {
		return "", err
	}
	session.passive = listener

	session.logger.Debug("passive listener open", "port", listener.Port())
	return transfer.EncodePasvAddr(session.pasvIP(), listener.Port()), nil
}

func (session *ClientSession) HasPassive() bool { return session.passive != nil }

// pasvIP picks the address advertised in the PASV reply. The configured
// public host wins; otherwise the client connected to a reachable address
// already, so reuse the control connection's local IP.
func (session *ClientSession) pasvIP() net.IP {
	if host := session.server.config.PublicHost; host != "" {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	if addr, ok := session.controlConn.LocalAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return nil
}

// retirePassive drops any live passive listener. Runs when a transfer
// command finishes, whatever the outcome, and when a new PASV replaces the
// old listener.
func (session *ClientSession) retirePassive() {
	if session.passive != nil {
		session.passive.Close()
		session.passive = nil
	}
}

// openDataConnection consumes the passive listener and waits for the
// client to dial in. The listener is single-use either way. The returned
// connection enforces per-chunk progress deadlines and closes itself when
// the session context is cancelled, so a stalled peer cannot pin the
// shared transfer buffer.
func (session *ClientSession) openDataConnection() (*transfer.DataConn, error) {
	if session.passive == nil {
		return nil, transfer.ErrNoDataConn
	}
	listener := session.passive
	session.passive = nil

	conn, err := listener.Accept(session.server.config.AcceptTimeout)
	if err != nil {
		return nil, err
	}
	return transfer.NewDataConn(session.ctx, conn, session.server.config.AcceptTimeout), nil
}

// Transfers

func (session *ClientSession) SendListing(path string) error {
	defer session.retirePassive()

	if path == "" {
		path = session.currentDir
	}
	virtual, real, err := session.resolve(path)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(real)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var listing bytes.Buffer
	for _, entry := range entries {
		if transfer.IsTempName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mode := "-rw-r--r--"
		if info.IsDir() {
			mode = "drwxr-xr-x"
		}
		fmt.Fprintf(&listing, "%s 1 ftp ftp %12d %s %s\r\n",
			mode, info.Size(), info.ModTime().Format("Jan 02 15:04"), entry.Name())
	}

	session.SendResponse(150, fmt.Sprintf("Opening data connection for listing of %s", virtual))
	dataConn, err := session.openDataConnection()
	if err != nil {
		return err
	}
	defer dataConn.Close()

	_, err = session.server.engine.Download(session.ctx, dataConn, &listing)
	return err
}

func (session *ClientSession) SendFile(path string) error {
	defer session.retirePassive()

	virtual, real, err := session.resolve(path)
	if err != nil {
		return err
	}

	file, err := os.Open(real)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %w", virtual, os.ErrInvalid)
	}

	session.SendResponse(150, fmt.Sprintf("Opening data connection for %s (%d bytes)", virtual, info.Size()))
	dataConn, err := session.openDataConnection()
	if err != nil {
		return err
	}
	defer dataConn.Close()

	sent, err := session.server.engine.Download(session.ctx, dataConn, file)
	if err != nil {
		return err
	}
	session.logger.Info("file sent", "path", virtual, "bytes", sent)
	return nil
}

func (session *ClientSession) ReceiveFile(path string) error {
	defer session.retirePassive()

	virtual, real, err := session.resolve(path)
	if err != nil {
		return err
	}
	if info, err := os.Stat(real); err == nil && info.IsDir() {
		return fmt.Errorf("%s: %w", virtual, os.ErrInvalid)
	}

	session.SendResponse(150, fmt.Sprintf("Ready to receive %s", virtual))
	dataConn, err := session.openDataConnection()
	if err != nil {
		return err
	}
	defer dataConn.Close()

	// The temp file is created only once the client actually dialed in,
	// so a missed data connection leaves no debris behind.
	upload, err := transfer.CreateUpload(real)
	if err != nil {
		return err
	}

	received, err := session.server.engine.Upload(session.ctx, upload, dataConn)
	if err != nil {
		if discardErr := upload.Discard(); discardErr != nil {
			session.logger.Warn("upload discard failed", "error", discardErr)
		}
		return err
	}
	if err := upload.Promote(); err != nil {
		return err
	}

	session.logger.Info("file received", "path", virtual, "bytes", received)
	return nil
}

func (session *ClientSession) DeleteFile(path string) error {
	virtual, real, err := session.resolve(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(real)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %w", virtual, os.ErrInvalid)
	}

	if err := os.Remove(real); err != nil {
		return err
	}
	session.logger.Info("file deleted", "path", virtual)
	return nil
}

// Close tears the session down. Safe to call more than once; the scanner
// loop and a QUIT handler can both get here.
func (session *ClientSession) Close() {
	session.closeOnce.Do(func() {
		session.cancel()

		var result *multierror.Error
		if session.passive != nil {
			result = multierror.Append(result, session.passive.Close())
			session.passive = nil
		}
		result = multierror.Append(result, session.controlConn.Close())

		if err := result.ErrorOrNil(); err != nil {
			session.logger.Debug("session teardown", "error", err)
		}
	})
}

func (session *ClientSession) resolve(clientPath string) (virtual, real string, err error) {
	return fsutil.Resolve(session.server.config.RootDir, session.currentDir, clientPath)
}
