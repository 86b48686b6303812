package models

import (
	"fmt"

	"github.com/gofrs/uuid"
)

// ValidationError reports a single malformed or rule-violating input field.
// Reason values are stable machine-readable tokens ("required", "too_long",
// "before_start", "before_creation", "in_future", ...).
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation against a task or subtask id that does
// not exist (never created, or already deleted).
type NotFoundError struct {
	Entity string    `json:"entity"`
	ID     uuid.UUID `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ReferenceError reports a foreign reference (owner user id) that does not
// resolve to an existing row.
type ReferenceError struct {
	Field string    `json:"field"`
	ID    uuid.UUID `json:"id"`
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown id %s", e.Field, e.ID)
}

// StorageError wraps a failed persistence call. The cause is kept for
// logging at the transport layer; the core never retries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
