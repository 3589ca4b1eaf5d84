package query

import "fmt"

// ValidationResult contains structural analysis of a query.
//
// Problems are advisory at this layer: the engine drops individual
// malformed subqueries at plan construction and continues with the rest,
// so a query with problems can still execute partially. The CLI's validate
// command surfaces Problems so authors see them all at once.
type ValidationResult struct {
	// Valid is true when no structural problems were found.
	Valid bool

	// Problems lists every structural issue found, one message each.
	Problems []string
}

// Validate checks the structural well-formedness of a query: non-empty
// identifiers, non-empty paths, and fully declared properties.
//
// Path syntax itself (bracket form, predicate grammar) is the path
// compiler's responsibility; Validate does not parse paths.
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{}

	if q.ID == "" {
		v.addProblem("query_id must not be empty")
	}
	if len(q.Subqueries) == 0 {
		v.addProblem("query %q has no subqueries", q.ID)
	}
	for i, sq := range q.Subqueries {
		v.validateSubquery(i, sq)
	}

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateSubquery(i int, sq Subquery) {
	if sq.ID == "" {
		v.addProblem("subquery[%d]: subquery_id must not be empty", i)
	}
	if sq.Path == "" {
		v.addProblem("subquery %q: path must not be empty", sq.ID)
	}
	if len(sq.Properties) == 0 {
		v.addProblem("subquery %q: at least one property is required", sq.ID)
	}
	for j, prop := range sq.Properties {
		if prop.Path == "" {
			v.addProblem("subquery %q: property[%d] path must not be empty", sq.ID, j)
		}
		if prop.Type == PrimitiveUnknown {
			v.addProblem("subquery %q: property %q has no declared type", sq.ID, prop.Path)
		}
	}
}
