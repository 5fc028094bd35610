package protocol

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straga/scrivo-ftp/fsutil"
	"github.com/straga/scrivo-ftp/transfer"
)

// fakeSession records every reply and collaborator call so handler
// sequencing can be asserted without sockets or files.
type fakeSession struct {
	replies []string
	raw     []string
	calls   []string

	authenticated bool
	pendingUser   string
	username      string
	passwordless  bool
	password      string

	cwd        string
	deniedCwd  bool
	ttype      string
	renameFrom string
	passive    bool

	transferErr error
	closed      bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{cwd: "/", ttype: "I"}
}

func (f *fakeSession) SendResponse(code int, message string) {
	f.replies = append(f.replies, fmt.Sprintf("%d %s", code, message))
}
func (f *fakeSession) SendRaw(lines string) { f.raw = append(f.raw, lines) }
func (f *fakeSession) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeSession) IsAuthenticated() bool { return f.authenticated }
func (f *fakeSession) Username() string      { return f.username }
func (f *fakeSession) BeginLogin(username string) bool {
	f.pendingUser = username
	if f.passwordless {
		f.authenticated = true
		f.username = username
		return true
	}
	return false
}
func (f *fakeSession) HasPendingUser() bool { return f.pendingUser != "" }
func (f *fakeSession) CompleteLogin(password string) bool {
	if password == f.password {
		f.authenticated = true
		f.username = f.pendingUser
		return true
	}
	return false
}

func (f *fakeSession) CurrentDir() string { return f.cwd }
func (f *fakeSession) ChangeDir(path string) error {
	f.calls = append(f.calls, "ChangeDir "+path)
	if f.deniedCwd {
		return fsutil.ErrEscapesRoot
	}
	f.cwd = path
	return nil
}
func (f *fakeSession) TransferType() string       { return f.ttype }
func (f *fakeSession) SetTransferType(t string)   { f.ttype = t }
func (f *fakeSession) HasRenameFrom() bool        { return f.renameFrom != "" }
func (f *fakeSession) PrepareRename(p string) error {
	f.calls = append(f.calls, "PrepareRename "+p)
	f.renameFrom = p
	return nil
}
func (f *fakeSession) CompleteRename(p string) error {
	f.calls = append(f.calls, "CompleteRename "+p)
	f.renameFrom = ""
	return nil
}

func (f *fakeSession) EnterPassive() (string, error) {
	f.calls = append(f.calls, "EnterPassive")
	f.passive = true
	return "127,0,0,1,78,32", nil
}
func (f *fakeSession) HasPassive() bool { return f.passive }

func (f *fakeSession) SendListing(path string) error {
	f.calls = append(f.calls, "SendListing "+path)
	return f.transferErr
}
func (f *fakeSession) SendFile(path string) error {
	f.calls = append(f.calls, "SendFile "+path)
	return f.transferErr
}
func (f *fakeSession) ReceiveFile(path string) error {
	f.calls = append(f.calls, "ReceiveFile "+path)
	return f.transferErr
}
func (f *fakeSession) DeleteFile(path string) error {
	f.calls = append(f.calls, "DeleteFile "+path)
	return f.transferErr
}
func (f *fakeSession) Close() { f.closed = true }

func lastReply(t *testing.T, f *fakeSession) string {
	t.Helper()
	require.NotEmpty(t, f.replies)
	return f.replies[len(f.replies)-1]
}

func TestMalformedLine(t *testing.T) {
	f := newFakeSession()
	NewCommandHandler(f).HandleCommand("   ")
	assert.Equal(t, "500 Command not understood", lastReply(t, f))
	assert.Empty(t, f.calls)
}

func TestUnknownVerb(t *testing.T) {
	f := newFakeSession()
	f.authenticated = true
	NewCommandHandler(f).HandleCommand("MKD somedir")
	assert.Equal(t, "502 Command not implemented", lastReply(t, f))
	assert.Empty(t, f.calls)
}

func TestVerbsAreCaseInsensitive(t *testing.T) {
	f := newFakeSession()
	f.passwordless = true
	h := NewCommandHandler(f)

	h.HandleCommand("user guest")
	assert.Equal(t, "230 User guest logged in", lastReply(t, f))

	h.HandleCommand("pWd")
	assert.Equal(t, `257 "/" is the current directory`, lastReply(t, f))
}

func TestLoginWithPassword(t *testing.T) {
	f := newFakeSession()
	f.password = "secret"
	h := NewCommandHandler(f)

	h.HandleCommand("PASS secret")
	assert.Equal(t, "503 Login with USER first", lastReply(t, f))

	h.HandleCommand("USER alice")
	assert.Equal(t, "331 User alice OK. Password required", lastReply(t, f))

	h.HandleCommand("PASS wrong")
	assert.Equal(t, "530 Login incorrect", lastReply(t, f))
	assert.False(t, f.authenticated)

	h.HandleCommand("PASS secret")
	assert.Equal(t, "230 User alice logged in", lastReply(t, f))
	assert.True(t, f.authenticated)
}

func TestCommandsRequireAuth(t *testing.T) {
	for _, cmd := range []string{
		"SYST", "TYPE I", "PWD", "CWD /docs", "PASV",
		"LIST", "RETR a.txt", "STOR a.txt", "DELE a.txt", "RNFR a", "RNTO b",
	} {
		f := newFakeSession()
		NewCommandHandler(f).HandleCommand(cmd)
		assert.Equal(t, "530 Not logged in", lastReply(t, f), "command %q", cmd)
		assert.Empty(t, f.calls, "command %q must have no side effects", cmd)
	}
}

func TestFeatWorksUnauthenticated(t *testing.T) {
	f := newFakeSession()
	NewCommandHandler(f).HandleCommand("FEAT")
	require.Len(t, f.raw, 1)
	assert.Contains(t, f.raw[0], "211-Features:")
	assert.Contains(t, f.raw[0], "211 End")
}

func TestTypeCommand(t *testing.T) {
	f := newFakeSession()
	f.authenticated = true
	h := NewCommandHandler(f)

	h.HandleCommand("TYPE A")
	assert.Equal(t, "A", f.ttype)
	h.HandleCommand("TYPE i")
	assert.Equal(t, "I", f.ttype)

	h.HandleCommand("TYPE E")
	assert.Equal(t, "504 Command not implemented for that parameter", lastReply(t, f))
	assert.Equal(t, "I", f.ttype)
}

func TestCwdRejectedKeepsState(t *testing.T) {
	f := newFakeSession()
	f.authenticated = true
	f.deniedCwd = true
	NewCommandHandler(f).HandleCommand("CWD /private/../../etc")
	assert.Equal(t, "550 No such file or directory", lastReply(t, f))
	assert.Equal(t, "/", f.cwd)
}

// Transfer commands without a prior PASV must fail with a sequence error
// and perform no filesystem or socket work.
func TestTransfersRequirePassive(t *testing.T) {
	for _, cmd := range []string{"LIST", "RETR a.txt", "STOR a.txt"} {
		f := newFakeSession()
		f.authenticated = true
		NewCommandHandler(f).HandleCommand(cmd)
		assert.Equal(t, "503 Bad sequence of commands, use PASV first", lastReply(t, f), "command %q", cmd)
		assert.Empty(t, f.calls, "command %q must not reach the session", cmd)
	}
}

func TestRetrHappyPath(t *testing.T) {
	f := newFakeSession()
	f.authenticated = true
	h := NewCommandHandler(f)

	h.HandleCommand("PASV")
	assert.Equal(t, "227 Entering Passive Mode (127,0,0,1,78,32)", lastReply(t, f))

	h.HandleCommand("RETR notes.txt")
	assert.Contains(t, f.calls, "SendFile notes.txt")
	assert.Equal(t, "226 Transfer complete", lastReply(t, f))
}

func TestTransferErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{transfer.ErrAcceptTimeout, "425 No data connection"},
		{fmt.Errorf("%w: read tcp: reset", transfer.ErrAborted), "426 Connection closed; transfer aborted"},
		{os.ErrNotExist, "550 No such file or directory"},
		{fsutil.ErrEscapesRoot, "550 No such file or directory"},
		{fmt.Errorf("disk on fire"), "550 Requested action not taken"},
	}
	for _, tt := range tests {
		f := newFakeSession()
		f.authenticated = true
		f.passive = true
		f.transferErr = tt.err
		NewCommandHandler(f).HandleCommand("RETR a.bin")
		assert.Equal(t, tt.want, lastReply(t, f), "error %v", tt.err)
	}
}

func TestRenamePair(t *testing.T) {
	f := newFakeSession()
	f.authenticated = true
	h := NewCommandHandler(f)

	h.HandleCommand("RNTO b.txt")
	assert.Equal(t, "503 Bad sequence of commands, use RNFR first", lastReply(t, f))

	h.HandleCommand("RNFR a.txt")
	assert.Equal(t, "350 Ready for destination name", lastReply(t, f))
	h.HandleCommand("RNTO b.txt")
	assert.Equal(t, "250 File renamed", lastReply(t, f))
	assert.Contains(t, f.calls, "CompleteRename b.txt")
}

func TestQuit(t *testing.T) {
	f := newFakeSession()
	NewCommandHandler(f).HandleCommand("QUIT")
	assert.Equal(t, "221 Goodbye", lastReply(t, f))
	assert.True(t, f.closed)
}
