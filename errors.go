package hashdrop

import "errors"

var (
	// ErrNotFound is returned when no object exists for a digest
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidDigest is returned when a digest is not 64 lowercase hex characters
	ErrInvalidDigest = errors.New("invalid digest")
	// ErrMissingFields is returned when an upload lacks content, filename or content type
	ErrMissingFields = errors.New("missing required fields")
	// ErrTooLarge is returned when content exceeds the maximum upload size
	ErrTooLarge = errors.New("content too large")
	// ErrHashMismatch is returned when a client supplied digest does not match the content
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrEnvironmentMissing is returned when no environment is bound to a request
	ErrEnvironmentMissing = errors.New("platform context not found")
	// ErrNotConfigured is returned when the environment lacks a required setting
	ErrNotConfigured = errors.New("not configured")
)
