package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
	ErrEndpointInvalid = errors.New("endpoint must be an http or https URL")
)

// Errors for configuration validation.
var (
	ErrConfigRequired = errors.New("config is required")
)

// Errors for input validation.
var (
	ErrNoPaths        = errors.New("no paths provided")
	ErrEmptyPath      = errors.New("path is required")
	ErrFileTooLarge   = errors.New("file exceeds the maximum upload size")
	ErrFilenameMulti  = errors.New("filename override needs exactly one path")
	ErrDigestMismatch = errors.New("server digest does not match local digest")
)
