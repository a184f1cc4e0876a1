// Package shared holds the domain types used across all entity packages:
// identifiers and the error taxonomy.
package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors classify domain failures. Services wrap them in a
// DomainError; the HTTP layer maps the class to a status code.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAdmission     = errors.New("admission rejected")
	ErrInternal      = errors.New("internal error")
)

// DomainError carries a machine-readable code and a human-readable message
// on top of a sentinel classification.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError builds a DomainError classified by the sentinel err.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is classified as a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAdmission reports whether err is an admission rejection (queue depth
// or usage quota).
func IsAdmission(err error) bool {
	return errors.Is(err, ErrAdmission)
}

// ErrorCode returns the DomainError code carried by err, or "" when err
// is not a DomainError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
