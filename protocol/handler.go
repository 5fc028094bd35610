package protocol

// CommandHandler executes FTP commands against a session. One handler is
// created per control connection.
type CommandHandler struct {
	session SessionInterface
}

// NewCommandHandler creates a command handler bound to the given session.
func NewCommandHandler(session SessionInterface) *CommandHandler {
	return &CommandHandler{session: session}
}
