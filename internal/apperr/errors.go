package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoCredential      = errors.New("no credential configured")
	ErrAmbiguousResponse = errors.New("ambiguous model response")
)
