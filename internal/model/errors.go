package model

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ValidationError reports a caller error detected before any storage
// access. Validation errors are never retried and never caught
// internally.
type ValidationError struct {
	// Code identifies the error category.
	Code ValidationErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending input ("name", "content", or a
	// foreign-key column), when applicable.
	Field string
}

// ValidationErrorCode categorizes validation errors.
type ValidationErrorCode string

const (
	// ErrCodeMissingName indicates an empty document name.
	ErrCodeMissingName ValidationErrorCode = "MISSING_NAME"

	// ErrCodeMissingContent indicates nil content.
	ErrCodeMissingContent ValidationErrorCode = "MISSING_CONTENT"

	// ErrCodeMissingForeignKey indicates a declared foreign key absent
	// from the insert.
	ErrCodeMissingForeignKey ValidationErrorCode = "MISSING_FOREIGN_KEY"

	// ErrCodeUnknownForeignKey indicates a foreign key that was never
	// declared for the entity type.
	ErrCodeUnknownForeignKey ValidationErrorCode = "UNKNOWN_FOREIGN_KEY"

	// ErrCodeUnversionedInsert indicates the disabled unversioned
	// insert signature was invoked on a versioned model.
	ErrCodeUnversionedInsert ValidationErrorCode = "UNVERSIONED_INSERT"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation returns true if the error is a caller validation error,
// including the disabled-insert misuse error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsMisuse returns true if the error is the disabled unversioned
// insert being invoked on a versioned model.
func IsMisuse(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == ErrCodeUnversionedInsert
	}
	return false
}

func missingField(code ValidationErrorCode, field, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message, Field: field}
}

// isConflict reports whether err is a transient storage conflict the
// versioned insert protocol recovers from by retrying: a uniqueness
// violation from a racing writer, or a busy/locked failure when the
// read-then-write transaction cannot upgrade its snapshot. Everything
// else propagates to the caller.
func isConflict(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint ||
			se.Code == sqlite3.ErrBusy ||
			se.Code == sqlite3.ErrLocked
	}
	return false
}
