package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoStreamedResponse marks a transport call that completed without
	// ever signaling done and without producing any text. Callers can
	// distinguish "model said nothing" from "model errored".
	ErrNoStreamedResponse = errors.New("no streamed response received")
)
