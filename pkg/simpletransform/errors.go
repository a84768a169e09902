package simpletransform

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrReferenceNotFound indicates a content reference resolved to no object
	ErrReferenceNotFound = errors.New("content reference not found")

	// ErrBackendUnavailable indicates a storage backend is unreachable
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrNotConfigured indicates a fatal configuration problem, such as an
	// unavailable temp root or exhausted directory-creation retries
	ErrNotConfigured = errors.New("not configured")

	// ErrInvalidArgument indicates a missing or malformed caller argument
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedAlgorithm indicates an unknown digest algorithm identifier
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

	// ErrTransformationFailed indicates an unrecoverable transformer error
	ErrTransformationFailed = errors.New("transformation failed")
)

// StorageError represents an error related to storage handler operations
type StorageError struct {
	Backend string
	URI     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for %s on backend %s: %v", e.Op, e.URI, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TransformError represents a failed transformation for one request
type TransformError struct {
	RequestID string
	Err       error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transformation failed for request %s: %v", e.RequestID, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
