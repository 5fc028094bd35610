package protocol

import (
	"errors"
	"os"

	"github.com/straga/scrivo-ftp/fsutil"
	"github.com/straga/scrivo-ftp/transfer"
)

// Helper guards shared by the command handlers.

func (h *CommandHandler) withAuth(handler func()) {
	if !h.session.IsAuthenticated() {
		h.session.SendResponse(530, "Not logged in")
		return
	}
	handler()
}

func (h *CommandHandler) withValidParam(param string, handler func()) {
	if param == "" {
		h.session.SendResponse(501, "Syntax error in parameters")
		return
	}
	handler()
}

// withPassive enforces the PASV-before-transfer sequencing. Without a live
// passive listener the command fails before any filesystem or socket work.
func (h *CommandHandler) withPassive(handler func()) {
	if !h.session.HasPassive() {
		h.session.SendResponse(503, "Bad sequence of commands, use PASV first")
		return
	}
	handler()
}

// replyPathError maps resolver and filesystem failures to their reply.
// Sandbox escapes deliberately look like missing files to the client.
func (h *CommandHandler) replyPathError(err error) {
	switch {
	case errors.Is(err, fsutil.ErrEscapesRoot), errors.Is(err, fsutil.ErrInvalidPath):
		h.session.SendResponse(550, "No such file or directory")
	case errors.Is(err, os.ErrNotExist):
		h.session.SendResponse(550, "No such file or directory")
	case errors.Is(err, os.ErrPermission):
		h.session.SendResponse(550, "Permission denied")
	default:
		h.session.SendResponse(550, "Requested action not taken")
	}
}

// replyTransferError maps transfer failures. Errors before the data
// connection exists reply 425/503; mid-stream failures reply 426; anything
// touching paths falls through to the path mapping.
func (h *CommandHandler) replyTransferError(err error) {
	switch {
	case errors.Is(err, transfer.ErrAcceptTimeout):
		h.session.SendResponse(425, "No data connection")
	case errors.Is(err, transfer.ErrNoDataConn):
		h.session.SendResponse(503, "Bad sequence of commands, use PASV first")
	case errors.Is(err, transfer.ErrAborted):
		h.session.SendResponse(426, "Connection closed; transfer aborted")
	case errors.Is(err, fsutil.ErrEscapesRoot), errors.Is(err, fsutil.ErrInvalidPath),
		errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		h.replyPathError(err)
	default:
		h.session.SendResponse(550, "Requested action not taken")
	}
}
