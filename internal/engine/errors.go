package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure detected during query execution.
//
// Runtime errors include:
//   - Transport failure: fetching a child resource failed
//   - Shape mismatch: expected object or collection, got scalar or absent
//   - Normalization failure: no property could be extracted from a match
//   - Invariant violation: a contract the engine itself guarantees broke
//
// Everything except invariant violations is locally absorbed: the engine
// favors completing a best-effort traversal over aborting, so these errors
// surface through logs, never through the Result.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// QueryID identifies the affected query.
	QueryID string

	// SubqueryID identifies the subquery (when the failure is scoped to
	// one).
	SubqueryID string

	// Node is the step node name being fetched or qualified.
	Node string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeTransport indicates a child fetch failed (network, status,
	// decode).
	ErrCodeTransport RuntimeErrorCode = "TRANSPORT_ERROR"

	// ErrCodeShape indicates a resource had an unnavigable shape.
	ErrCodeShape RuntimeErrorCode = "SHAPE_ERROR"

	// ErrCodeNormalization indicates a matched resource produced no
	// record.
	ErrCodeNormalization RuntimeErrorCode = "NORMALIZATION_ERROR"

	// ErrCodeInvariant indicates an engine contract was violated; this is
	// a programmer bug and aborts the current execution.
	ErrCodeInvariant RuntimeErrorCode = "INVARIANT_VIOLATION"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.SubqueryID != "" && e.Node != "":
		return fmt.Sprintf("%s: %s (query=%s, subquery=%s, node=%s)", e.Code, e.Message, e.QueryID, e.SubqueryID, e.Node)
	case e.Node != "":
		return fmt.Sprintf("%s: %s (query=%s, node=%s)", e.Code, e.Message, e.QueryID, e.Node)
	default:
		return fmt.Sprintf("%s: %s (query=%s)", e.Code, e.Message, e.QueryID)
	}
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// IsInvariantError returns true if the error is an invariant violation.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvariant
	}
	return false
}

// newInvariantError creates a RuntimeError for a broken engine contract.
func newInvariantError(queryID, subqueryID, message string) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeInvariant,
		Message:    message,
		QueryID:    queryID,
		SubqueryID: subqueryID,
	}
}
