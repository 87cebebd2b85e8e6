package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a lookup reaches a backend handle
	// that has not finished loading yet.
	ErrNotInitialized = errors.New("Database not initialized")

	// ErrNotFound is returned when the backend has no record for an address.
	ErrNotFound = errors.New("IP address not found in database")
)

// ClientInputError is a problem with the caller's input. Handlers map it to 400.
type ClientInputError struct {
	Message string
}

func (e *ClientInputError) Error() string {
	return e.Message
}

// NewClientInputError creates a ClientInputError with the given message
func NewClientInputError(msg string) *ClientInputError {
	return &ClientInputError{Message: msg}
}

// UpstreamError wraps a failure of something this service depends on:
// the database download, opening the database file, a datastore query or a
// third-party API call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err into an UpstreamError for the operation op
func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
