package protocol

// File management commands.

// HandleDELE removes a file.
func (h *CommandHandler) HandleDELE(path string) {
	h.withAuth(func() {
		h.withValidParam(path, func() {
			if err := h.session.DeleteFile(path); err != nil {
				h.replyPathError(err)
				return
			}
			h.session.SendResponse(250, "File deleted")
		})
	})
}

// HandleRNFR names the source of a rename. The pair completes with RNTO.
func (h *CommandHandler) HandleRNFR(path string) {
	h.withAuth(func() {
		h.withValidParam(path, func() {
			if err := h.session.PrepareRename(path); err != nil {
				h.replyPathError(err)
				return
			}
			h.session.SendResponse(350, "Ready for destination name")
		})
	})
}

// HandleRNTO completes a rename started by RNFR.
func (h *CommandHandler) HandleRNTO(path string) {
	h.withAuth(func() {
		h.withValidParam(path, func() {
			if !h.session.HasRenameFrom() {
				h.session.SendResponse(503, "Bad sequence of commands, use RNFR first")
				return
			}
			if err := h.session.CompleteRename(path); err != nil {
				h.replyPathError(err)
				return
			}
			h.session.SendResponse(250, "File renamed")
		})
	})
}
