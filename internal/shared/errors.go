package shared

import "errors"

var (
	// ErrNotFound reports a missing user or login record.
	ErrNotFound = errors.New("shared: not found")
	// ErrInvalidCredentials covers unknown users, inactive users and wrong
	// passwords alike so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("shared: invalid credentials")
	// ErrCSRFTokenMissing is returned when the session or request lacks a token.
	ErrCSRFTokenMissing = errors.New("shared: csrf token missing")
	// ErrCSRFTokenMismatch is returned when the request token differs from the session's.
	ErrCSRFTokenMismatch = errors.New("shared: csrf token mismatch")
)
