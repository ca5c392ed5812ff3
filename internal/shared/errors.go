package shared

import "errors"

var (
	// ErrNotFound indicates resource not found. Rows hidden by
	// row-level security surface as this same error on purpose: a caller
	// must not be able to distinguish "filtered" from "does not exist".
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
