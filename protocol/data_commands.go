package protocol

import "fmt"

// Data connection and transfer commands.

// HandlePASV opens a fresh passive listener, replacing any previous one.
func (h *CommandHandler) HandlePASV() {
	h.withAuth(func() {
		pasvAddr, err := h.session.EnterPassive()
		if err != nil {
			h.session.Logger().Warn("passive listener failed", "error", err)
			h.session.SendResponse(425, "Can't open data connection")
			return
		}
		h.session.SendResponse(227, fmt.Sprintf("Entering Passive Mode (%s)", pasvAddr))
	})
}

// HandleLIST sends a directory listing over the data connection.
func (h *CommandHandler) HandleLIST(path string) {
	h.withAuth(func() {
		h.withPassive(func() {
			if err := h.session.SendListing(path); err != nil {
				h.replyTransferError(err)
				return
			}
			h.session.SendResponse(226, "Directory send OK")
		})
	})
}

// HandleRETR streams a file to the client.
func (h *CommandHandler) HandleRETR(path string) {
	h.withAuth(func() {
		h.withValidParam(path, func() {
			h.withPassive(func() {
				if err := h.session.SendFile(path); err != nil {
					h.replyTransferError(err)
					return
				}
				h.session.SendResponse(226, "Transfer complete")
			})
		})
	})
}

// HandleSTOR receives a file from the client. The upload lands on a temp
// path and only reaches the target name once fully written.
func (h *CommandHandler) HandleSTOR(path string) {
	h.withAuth(func() {
		h.withValidParam(path, func() {
			h.withPassive(func() {
				if err := h.session.ReceiveFile(path); err != nil {
					h.replyTransferError(err)
					return
				}
				h.session.SendResponse(226, "Transfer complete")
			})
		})
	})
}
