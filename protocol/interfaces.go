package protocol

import "log/slog"

// SessionInterface is what a command handler needs from the connection that
// carries it. The concrete session lives with the server; handlers get this
// interface so the command layer can be exercised against a fake.
type SessionInterface interface {
	// Core session operations
	SendResponse(code int, message string)
	SendRaw(lines string)
	Logger() *slog.Logger

	// Login state
	IsAuthenticated() bool
	Username() string
	// BeginLogin records the USER step. It reports whether the policy
	// admitted the user without a password.
	BeginLogin(username string) bool
	HasPendingUser() bool
	// CompleteLogin checks the PASS step against the pending user.
	CompleteLogin(password string) bool

	// Navigation state
	CurrentDir() string
	ChangeDir(path string) error
	TransferType() string
	SetTransferType(transferType string)

	// Rename pair state
	PrepareRename(fromPath string) error
	HasRenameFrom() bool
	CompleteRename(toPath string) error

	// Passive data channel
	EnterPassive() (pasvAddr string, err error)
	HasPassive() bool

	// Transfers and filesystem operations. Each sends its own 150 mark
	// once the transfer is underway; the handler turns the result into
	// the final reply.
	SendListing(path string) error
	SendFile(path string) error
	ReceiveFile(path string) error
	DeleteFile(path string) error

	// Close tears the control connection down after QUIT.
	Close()
}
