package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxFetches is the default maximum number of child fetches per
// execution. This prevents a runaway traversal of a pathological tree from
// consuming unbounded transport round-trips.
const DefaultMaxFetches = 10000

// fetchBudget tracks child fetches during one execution and enforces a
// maximum.
//
// Each Execute call gets its own budget. The budget is checked before
// every child navigation; once exceeded, traversal stops and the partial
// result is returned.
type fetchBudget struct {
	maxFetches int
	current    int
}

func newFetchBudget(maxFetches int) *fetchBudget {
	return &fetchBudget{maxFetches: maxFetches}
}

// check increments the fetch counter and validates against the limit.
// Returns FetchesExceededError once the budget is exceeded.
func (b *fetchBudget) check(queryID string) error {
	b.current++
	if b.current > b.maxFetches {
		return &FetchesExceededError{
			QueryID: queryID,
			Fetches: b.current,
			Limit:   b.maxFetches,
		}
	}
	return nil
}

// FetchesExceededError is returned internally when an execution exceeds
// its fetch budget. The traversal stops; records produced so far are kept.
type FetchesExceededError struct {
	QueryID string // The query whose traversal exceeded the budget
	Fetches int    // Number of fetches attempted
	Limit   int    // Maximum allowed fetches
}

// Error implements the error interface.
func (e *FetchesExceededError) Error() string {
	return fmt.Sprintf("query %s exceeded max fetches: %d fetches > %d limit",
		e.QueryID, e.Fetches, e.Limit)
}

// IsFetchesExceededError returns true if the error is a
// FetchesExceededError. Uses errors.As to handle wrapped errors.
func IsFetchesExceededError(err error) bool {
	var fe *FetchesExceededError
	return errors.As(err, &fe)
}
