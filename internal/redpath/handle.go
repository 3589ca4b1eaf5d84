package redpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/redpath/internal/query"
	"github.com/roach88/redpath/internal/redfish"
)

// CompileErrorCode categorizes path compilation failures.
type CompileErrorCode string

const (
	// ErrCodeInvalidStep indicates a step without the mandatory
	// Name[Predicate] bracket form.
	ErrCodeInvalidStep CompileErrorCode = "invalid-step"

	// ErrCodeUnknownPredicate indicates predicate text outside the
	// supported grammar.
	ErrCodeUnknownPredicate CompileErrorCode = "unknown-predicate"

	// ErrCodeEmptyPath indicates a path with no steps at all.
	ErrCodeEmptyPath CompileErrorCode = "empty-path"
)

// CompileError reports why a subquery's path failed to compile.
// A compile failure invalidates only the offending subquery; siblings
// proceed.
type CompileError struct {
	Code       CompileErrorCode
	SubqueryID string
	Step       string
	Message    string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: subquery %q step %q: %s", e.Code, e.SubqueryID, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: subquery %q: %s", e.Code, e.SubqueryID, e.Message)
}

// IsCompileError returns true if the error is a path compile error.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// Step is one location step of a compiled path expression: a node name
// paired with the predicate filtering the node set it selects.
type Step struct {
	Node      string
	Predicate Predicate
}

// Outcome is the three-way result of qualifying one handle against one
// candidate resource. Exactly one outcome is produced per qualification.
type Outcome int

const (
	// EndByPredicate: the predicate rejected the resource; the handle is
	// dropped for this branch.
	EndByPredicate Outcome = iota

	// EndOfPath: the predicate accepted and this was the last step; the
	// resource is a match to normalize, and the handle is done on this
	// branch.
	EndOfPath

	// Continue: the predicate accepted and steps remain; the cursor has
	// advanced and the handle stays active on this branch.
	Continue
)

// Handle is the runtime compiled form of one subquery: its step sequence
// plus a cursor identifying the next step to attempt.
//
// Handles are value types. The executor passes them by value through the
// recursion so each branch naturally owns its cursor copy; advancing in
// one branch never leaks into a sibling.
type Handle struct {
	Subquery query.Subquery

	steps  []Step
	cursor int
}

// NewHandle compiles a subquery's path expression into a handle.
//
// The path splits on '/' with empty segments skipped. Every step must be
// of the form Name[Predicate]; the outermost brackets are mandatory, and
// their absence - or predicate text outside the grammar - is a compile
// error carrying the offending subquery's id.
func NewHandle(sq query.Subquery) (Handle, error) {
	steps, err := ParseSteps(sq.ID, sq.Path)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Subquery: sq, steps: steps}, nil
}

// ParseSteps compiles a path expression into location steps. The
// subqueryID only labels errors.
func ParseSteps(subqueryID, path string) ([]Step, error) {
	var steps []Step
	for _, expr := range strings.Split(path, "/") {
		if expr == "" {
			continue
		}
		node, predicateExpr, err := splitStep(subqueryID, expr)
		if err != nil {
			return nil, err
		}
		predicate, ok := compilePredicate(predicateExpr)
		if !ok {
			return nil, &CompileError{
				Code:       ErrCodeUnknownPredicate,
				SubqueryID: subqueryID,
				Step:       expr,
				Message:    fmt.Sprintf("unknown predicate %q", predicateExpr),
			}
		}
		steps = append(steps, Step{Node: node, Predicate: predicate})
	}
	if len(steps) == 0 {
		return nil, &CompileError{
			Code:       ErrCodeEmptyPath,
			SubqueryID: subqueryID,
			Message:    "path has no steps",
		}
	}
	return steps, nil
}

// splitStep separates a location step into node name and predicate text.
// Only checks that the predicate expression is enclosed in square
// brackets.
func splitStep(subqueryID, expr string) (node, predicate string, err error) {
	open := strings.IndexByte(expr, '[')
	end := strings.IndexByte(expr, ']')
	if open < 0 || end < 0 || end < open {
		return "", "", &CompileError{
			Code:       ErrCodeInvalidStep,
			SubqueryID: subqueryID,
			Step:       expr,
			Message:    "invalid location step expression",
		}
	}
	return expr[:open], expr[open+1 : end], nil
}

// NextNode returns the node name the handle demands next, or false when
// the cursor is past the last step (the handle is terminal).
func (h Handle) NextNode() (string, bool) {
	if h.cursor >= len(h.steps) {
		return "", false
	}
	return h.steps[h.cursor].Node, true
}

// Cursor returns the current step index.
func (h Handle) Cursor() int { return h.cursor }

// Len returns the number of compiled steps.
func (h Handle) Len() int { return len(h.steps) }

// Qualify evaluates the current step's predicate against a candidate
// resource and advances the receiver's cursor on Continue.
//
// Call on a local copy: the mutation is scoped to the branch holding that
// copy.
func (h *Handle) Qualify(v redfish.Variant) Outcome {
	step := h.steps[h.cursor]
	if !step.Predicate.Matches(v) {
		return EndByPredicate
	}
	if h.cursor == len(h.steps)-1 {
		return EndOfPath
	}
	h.cursor++
	return Continue
}
