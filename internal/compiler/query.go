// Package compiler parses authored query files into the compiled query
// model. Queries are authored in CUE; the compiler uses the CUE SDK's Go
// API directly (not a CLI subprocess) and reports positioned diagnostics.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/redpath/internal/query"
)

// CompileError reports a problem in an authored query file.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// CompileQuery parses a CUE value into a Query.
//
// The CUE value should be the query document itself:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query_id: "Q1", subqueries: { ... }`)
//	q, errs := CompileQuery(v)
//
// Subqueries compile independently: a malformed subquery is reported and
// skipped while its siblings survive, mirroring the engine's own
// per-subquery drop semantics. The returned query contains everything
// that parsed; errs lists everything that did not.
func CompileQuery(v cue.Value) (*query.Query, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var errs []error
	q := &query.Query{}

	idVal := v.LookupPath(cue.ParsePath("query_id"))
	if !idVal.Exists() {
		return nil, []error{&CompileError{
			Field:   "query_id",
			Message: "query_id is required",
			Pos:     v.Pos(),
		}}
	}
	id, err := idVal.String()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}
	q.ID = id

	subVal := v.LookupPath(cue.ParsePath("subqueries"))
	if !subVal.Exists() {
		return q, errs
	}
	iter, err := subVal.Fields()
	if err != nil {
		errs = append(errs, formatCUEError(err))
		return q, errs
	}
	for iter.Next() {
		sq, err := compileSubquery(iter.Label(), iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		q.Subqueries = append(q.Subqueries, *sq)
	}

	return q, errs
}

// compileSubquery parses one subquery struct. The struct label is the
// subquery id.
func compileSubquery(id string, v cue.Value) (*query.Subquery, error) {
	sq := &query.Subquery{ID: id}

	pathVal := v.LookupPath(cue.ParsePath("path"))
	if !pathVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("subqueries.%s.path", id),
			Message: "path is required",
			Pos:     v.Pos(),
		}
	}
	path, err := pathVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	sq.Path = path

	rootsVal := v.LookupPath(cue.ParsePath("root_subquery_ids"))
	if rootsVal.Exists() {
		roots, err := stringList(rootsVal)
		if err != nil {
			return nil, formatCUEError(err)
		}
		sq.RootSubqueryIDs = roots
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("subqueries.%s.properties", id),
			Message: "at least one property is required",
			Pos:     v.Pos(),
		}
	}
	propIter, err := propsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for propIter.Next() {
		prop, err := compileProperty(id, propIter.Value())
		if err != nil {
			return nil, err
		}
		sq.Properties = append(sq.Properties, *prop)
	}
	if len(sq.Properties) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("subqueries.%s.properties", id),
			Message: "at least one property is required",
			Pos:     propsVal.Pos(),
		}
	}

	return sq, nil
}

// compileProperty parses one property entry.
func compileProperty(subqueryID string, v cue.Value) (*query.Property, error) {
	prop := &query.Property{}

	pathVal := v.LookupPath(cue.ParsePath("path"))
	if !pathVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("subqueries.%s.properties", subqueryID),
			Message: "property path is required",
			Pos:     v.Pos(),
		}
	}
	path, err := pathVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	prop.Path = path

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		prop.Name = name
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("subqueries.%s.properties", subqueryID),
			Message: fmt.Sprintf("property %q has no type", path),
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	primitive, err := query.ParsePrimitive(typeName)
	if err != nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("subqueries.%s.properties", subqueryID),
			Message: err.Error(),
			Pos:     typeVal.Pos(),
		}
	}
	prop.Type = primitive

	return prop, nil
}

// stringList extracts a list of strings from a CUE value.
func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError converts a CUE SDK error into a positioned CompileError.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors; keep the first with its
	// position so diagnostics point at the authored file.
	var pos token.Pos
	if cueErrs := cueerrors.Errors(err); len(cueErrs) > 0 {
		if positions := cueerrors.Positions(cueErrs[0]); len(positions) > 0 {
			pos = positions[0]
		}
	}
	return &CompileError{
		Message: err.Error(),
		Pos:     pos,
	}
}
