package http

import "errors"

// ErrMissingParameter is returned when a request omits the digest query parameter.
var ErrMissingParameter = errors.New("missing parameter")
