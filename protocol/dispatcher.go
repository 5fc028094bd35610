package protocol

import "strings"

// HandleCommand parses one control-connection line and routes it to the
// matching handler. Verbs are case-insensitive; anything outside the
// supported set gets a 502 and leaves the session untouched.
func (h *CommandHandler) HandleCommand(command string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		h.session.SendResponse(500, "Command not understood")
		return
	}

	cmd := strings.ToUpper(parts[0])
	args := ""
	if len(parts) > 1 {
		args = strings.Join(parts[1:], " ")
	}

	switch cmd {
	// Login
	case "USER":
		h.HandleUSER(args)
	case "PASS":
		h.HandlePASS(args)

	// Basic system commands
	case "SYST":
		h.HandleSYST()
	case "FEAT":
		h.HandleFEAT()
	case "TYPE":
		h.HandleTYPE(args)

	// Directory commands
	case "PWD":
		h.HandlePWD()
	case "CWD":
		h.HandleCWD(args)

	// Data connection commands
	case "PASV":
		h.HandlePASV()

	// File transfer commands
	case "LIST":
		h.HandleLIST(args)
	case "RETR":
		h.HandleRETR(args)
	case "STOR":
		h.HandleSTOR(args)

	// File management commands
	case "DELE":
		h.HandleDELE(args)
	case "RNFR":
		h.HandleRNFR(args)
	case "RNTO":
		h.HandleRNTO(args)

	// Connection commands
	case "QUIT":
		h.HandleQUIT()

	default:
		h.session.SendResponse(502, "Command not implemented")
	}
}
