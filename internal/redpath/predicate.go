package redpath

import "github.com/roach88/redpath/internal/redfish"

// Predicate is a boolean selector applied to each candidate resource at a
// path step.
//
// This is a sealed interface - only types in this package implement it.
// Predicates are tagged variants, not free-form strings: the path compiler
// is the single place predicate syntax is parsed, and adding a new
// predicate form adds a new tag->type entry here without changing the
// handle shape.
//
// Predicate types:
//   - SelectAll: accept every member ("*"), currently the sole form
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package

	// Matches reports whether the candidate resource passes the filter.
	Matches(v redfish.Variant) bool
}

// predicateSelectAll is the wire spelling of SelectAll.
const predicateSelectAll = "*"

// SelectAll accepts every member of a node set.
type SelectAll struct{}

func (SelectAll) predicateNode() {}

// Matches implements Predicate. Always true.
func (SelectAll) Matches(redfish.Variant) bool { return true }

// compilePredicate converts predicate text into its tagged form.
// Unknown predicate text is a compile error for the enclosing subquery.
func compilePredicate(expr string) (Predicate, bool) {
	if expr == predicateSelectAll {
		return SelectAll{}, true
	}
	return nil, false
}
