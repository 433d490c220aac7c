/*
errors.go - Error taxonomy for policy operations

CATEGORIES:
  1. Authentication - missing identity or session
  2. Validation     - required field missing or malformed (per-field)
  3. Upload         - storage write failures
  4. Persistence    - record insert/update failures
  5. Unexpected     - anything else, normalized at operation boundaries

Nothing in this module propagates a panic to callers; unexpected failures
are converted to an UnexpectedError at the top of each public operation.
*/
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotAuthenticated is returned when an operation requires an owner
	// identity and none is present.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrDocumentRequired is returned when a submission has no attached
	// policy document.
	ErrDocumentRequired = errors.New("document required")

	// ErrRecordNotFound is returned when a policy record does not exist or
	// is not visible to the caller.
	ErrRecordNotFound = errors.New("policy record not found")
)

// =============================================================================
// ERROR TYPES - Use with errors.As()
// =============================================================================

// ValidationError carries per-field validation messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// UploadError wraps a storage write failure.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload failed: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError wraps a record insert/update failure.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failed: %v", e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// UnexpectedError is the normalized form of any failure that does not match
// the taxonomy. Callers show a generic message for it.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string { return fmt.Sprintf("unexpected error: %v", e.Err) }
func (e *UnexpectedError) Unwrap() error { return e.Err }
