package domain

import "errors"

var (
	// ErrNotFound is returned when a session or question id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrMalformedInput is returned when an imported catalogue is unusable.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUpstream is returned by the completion collaborator on transport or API failure.
	ErrUpstream = errors.New("upstream error")
	// ErrConflict is returned when a concurrent writer changed the session first.
	ErrConflict = errors.New("concurrent update conflict")
)

var (
	ErrSessionNotFound  = wrapNotFound("session")
	ErrQuestionNotFound = wrapNotFound("question")
)

type notFoundError struct{ what string }

func (e *notFoundError) Error() string { return e.what + " not found" }
func (e *notFoundError) Unwrap() error { return ErrNotFound }

func wrapNotFound(what string) error { return &notFoundError{what: what} }
