package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage failures.
//
// Typed errors (NotFoundError, etc.) unwrap to these sentinels so callers
// can use errors.Is for classification and errors.As for details.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource with the same ID already exists.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates the caller supplied invalid parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("storage backend is closed")

	// ErrNotSupported indicates the operation is not supported by this backend.
	ErrNotSupported = errors.New("operation not supported")
)

// NotFoundError reports a missing resource with type and ID context.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceID string) error {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// AlreadyExistsError reports a conflicting resource with type and ID context.
type AlreadyExistsError struct {
	ResourceType string
	ResourceID   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.ResourceType, e.ResourceID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// NewAlreadyExistsError creates an AlreadyExistsError for the given resource.
func NewAlreadyExistsError(resourceType, resourceID string) error {
	return &AlreadyExistsError{ResourceType: resourceType, ResourceID: resourceID}
}

// InvalidInputError reports an invalid parameter with field context.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NewInvalidInputError creates an InvalidInputError for the given field.
func NewInvalidInputError(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err indicates a resource conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidInput reports whether err indicates invalid caller input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
