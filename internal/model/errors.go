package model

import (
	"errors"
	"fmt"
)

var (
	ErrTooBig  = errors.New("file too big")
	ErrNoMatch = errors.New("no match")
	ErrNotText = errors.New("not a text file")

	ErrMissingCredential = errors.New("missing credential")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrTransport         = errors.New("transport error")
	ErrEmptyResponse     = errors.New("empty response")

	ErrUnparsableResponse  = errors.New("unparsable response")
	ErrInvalidFindingShape = errors.New("invalid finding shape")

	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response of a remote endpoint.
// Kind is one of ErrUnauthorized, ErrRateLimited or ErrTransport.
type StatusError struct {
	Code    int
	Message string
	Kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Kind, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}
