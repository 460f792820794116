package core

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnreachable is returned when the backend cannot be reached
	// at all (connection refused, host or network unreachable, DNS failure).
	ErrBackendUnreachable = errors.New("cannot reach backend")

	// ErrSchemeMismatch is returned when the backend does not speak the
	// configured transport scheme (plain HTTP behind an https:// base URL
	// or the reverse).
	ErrSchemeMismatch = errors.New("backend does not support the configured transport scheme")

	// ErrNoRefreshCredential is returned when a renewal is requested but no
	// renewal credential is stored.
	ErrNoRefreshCredential = errors.New("no refresh credential available")

	// ErrInvalidClaims is returned when a token payload cannot be decoded.
	ErrInvalidClaims = errors.New("invalid token claims")

	// ErrNoExpiryClaim is returned when a decoded token carries no expiry.
	ErrNoExpiryClaim = errors.New("token carries no expiry claim")
)

// TerminalError is a renewal failure that definitively invalidates the
// session: the backend instructed the client to clear its credentials, or
// identified the principal as gone, invalid or inactive. Reason and Message
// may be empty when the backend supplied none; callers fill in their own
// defaults before notifying.
type TerminalError struct {
	Reason  string
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("session terminated (%s): %s", e.Reason, e.Message)
}

// AsTerminal unwraps err into a TerminalError, if it is one. Any renewal
// error that is not terminal is transient and must leave stored credentials
// untouched.
func AsTerminal(err error) (*TerminalError, bool) {
	var te *TerminalError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
