// Package auth supplies the pluggable credential check used during the
// USER/PASS login exchange. The session state machine never hardcodes an
// acceptance policy: it asks a CredentialChecker, so a deployment can run
// wide open on a LAN, behind a single shared secret, or against a bcrypt
// user file without touching the protocol code.
package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// CredentialChecker validates a username/password pair.
type CredentialChecker interface {
	Check(username, password string) bool
}

// AllowAll accepts every login. Matches the original no-op policy for
// trusted embedded networks.
type AllowAll struct{}

func (AllowAll) Check(username, password string) bool { return true }

// SharedSecret accepts any username presented with the one configured
// password. Username is deliberately ignored; there is a single identity.
type SharedSecret struct {
	Password string
}

func (s SharedSecret) Check(username, password string) bool {
	return subtle.ConstantTimeCompare([]byte(s.Password), []byte(password)) == 1
}

// Service drives the two-step login flow on top of a CredentialChecker.
type Service struct {
	checker CredentialChecker
	// passwordless is set for policies that can admit a user on USER alone.
	passwordless bool
}

// NewService wraps a checker. When passwordless is true, USER completes the
// login immediately (reply 230); otherwise the client is asked for a
// password first (reply 331).
func NewService(checker CredentialChecker, passwordless bool) *Service {
	return &Service{checker: checker, passwordless: passwordless}
}

// BeginLogin handles the USER step. It reports whether the session is
// already authenticated (no PASS needed).
func (s *Service) BeginLogin(username string) bool {
	return s.passwordless && s.checker.Check(username, "")
}

// CompleteLogin handles the PASS step.
func (s *Service) CompleteLogin(username, password string) bool {
	return s.checker.Check(username, password)
}

// HashPassword creates a bcrypt hash for storage in a user file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
