package protocol

import (
	"fmt"
	"strings"
)

// Login commands

// HandleUSER starts the login exchange. Whether a password is required is
// the credential policy's call, not the protocol's.
func (h *CommandHandler) HandleUSER(username string) {
	if username == "" {
		h.session.SendResponse(501, "Syntax error in parameters")
		return
	}

	if h.session.BeginLogin(username) {
		h.session.SendResponse(230, fmt.Sprintf("User %s logged in", username))
		return
	}
	h.session.SendResponse(331, fmt.Sprintf("User %s OK. Password required", username))
}

// HandlePASS finishes the login exchange.
func (h *CommandHandler) HandlePASS(password string) {
	if h.session.IsAuthenticated() {
		h.session.SendResponse(230, "Already logged in")
		return
	}
	if !h.session.HasPendingUser() {
		h.session.SendResponse(503, "Login with USER first")
		return
	}

	if h.session.CompleteLogin(password) {
		h.session.SendResponse(230, fmt.Sprintf("User %s logged in", h.session.Username()))
	} else {
		h.session.SendResponse(530, "Login incorrect")
	}
}

// Basic system commands

// HandleSYST reports the system type.
func (h *CommandHandler) HandleSYST() {
	h.withAuth(func() {
		h.session.SendResponse(215, "UNIX Type: L8")
	})
}

// HandleFEAT advertises supported extensions. The set is static; nothing
// beyond the base command set is negotiated.
func (h *CommandHandler) HandleFEAT() {
	h.session.SendRaw("211-Features:\r\n PASV\r\n211 End\r\n")
}

// HandleTYPE sets the transfer type (ASCII or Binary).
func (h *CommandHandler) HandleTYPE(typeStr string) {
	h.withAuth(func() {
		switch strings.ToUpper(typeStr) {
		case "A":
			h.session.SetTransferType("A")
			h.session.SendResponse(200, "Switching to ASCII mode")
		case "I":
			h.session.SetTransferType("I")
			h.session.SendResponse(200, "Switching to Binary mode")
		default:
			h.session.SendResponse(504, "Command not implemented for that parameter")
		}
	})
}

// Directory commands

// HandlePWD prints the current virtual directory.
func (h *CommandHandler) HandlePWD() {
	h.withAuth(func() {
		h.session.SendResponse(257, fmt.Sprintf(`"%s" is the current directory`, h.session.CurrentDir()))
	})
}

// HandleCWD changes the working directory within the sandbox.
func (h *CommandHandler) HandleCWD(path string) {
	h.withAuth(func() {
		h.withValidParam(path, func() {
			if err := h.session.ChangeDir(path); err != nil {
				h.replyPathError(err)
				return
			}
			h.session.SendResponse(250, fmt.Sprintf(`CWD command successful. "%s" is current directory`, h.session.CurrentDir()))
		})
	})
}

// Connection commands

// HandleQUIT says goodbye and closes the control connection.
func (h *CommandHandler) HandleQUIT() {
	h.session.SendResponse(221, "Goodbye")
	h.session.Close()
}
