// Package redfish provides a lazily-navigable view over the Redfish
// resource tree: a hierarchical JSON REST surface exposing server hardware
// state.
//
// The central type is Variant, a handle over one node of the tree. A
// variant is one of three shapes: a singleton object, an iterable
// collection, or a scalar. Navigation never copies the whole tree; child
// lookups and member iteration return further variants, fetching through
// the transport only when a node is an unexpanded reference.
package redfish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/redpath/internal/redfish/transport"
)

// odataID is the Redfish reference property: a child object carrying only
// this key is a link to another resource, not an inline payload.
const odataID = "@odata.id"

// membersProperty is the member array every Redfish collection resource
// carries.
const membersProperty = "Members"

// Variant is a handle over one node of the resource tree.
//
// The zero Variant is "absent": it is neither an object nor iterable, and
// navigation on it yields more absent variants. Callers probe shape with
// IsObject and IsIterable rather than assuming a hierarchy.
type Variant struct {
	t   transport.Transport
	val any
}

// ValueOf wraps an already-decoded JSON value as a Variant with no
// transport attached. References inside the value cannot be chased;
// intended for literal trees in tests and for fully-expanded payloads.
func ValueOf(v any) Variant {
	return Variant{val: v}
}

// ServiceRoot fetches the service root resource and returns a variant
// positioned on it.
func ServiceRoot(ctx context.Context, t transport.Transport) (Variant, error) {
	return fetch(ctx, t, t.RootURI())
}

// Decode parses a raw JSON document, preserving integer precision.
func Decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// IsObject reports whether the variant is a singleton JSON object.
func (v Variant) IsObject() bool {
	_, ok := v.val.(map[string]any)
	return ok
}

// IsIterable reports whether the variant is a collection: either a JSON
// array, or a Redfish collection resource carrying a Members array.
func (v Variant) IsIterable() bool {
	switch val := v.val.(type) {
	case []any:
		return true
	case map[string]any:
		_, ok := val[membersProperty].([]any)
		return ok
	default:
		return false
	}
}

// JSON returns the underlying decoded JSON value.
func (v Variant) JSON() any { return v.val }

// Child navigates to the named member of an object variant.
//
// An absent member, or a non-object parent, returns the zero Variant with
// no error; shape mismatches are not failures at this layer. A transport
// error chasing a reference is returned so the caller can skip the branch.
func (v Variant) Child(ctx context.Context, name string) (Variant, error) {
	obj, ok := v.val.(map[string]any)
	if !ok {
		return Variant{}, nil
	}
	child, ok := obj[name]
	if !ok {
		return Variant{}, nil
	}
	return v.resolve(ctx, child)
}

// Members returns the members of an iterable variant, chasing references
// through the transport. A member that fails to resolve is logged and
// skipped; the remaining members are still returned.
//
// Ordering mirrors the underlying array.
func (v Variant) Members(ctx context.Context) []Variant {
	var raw []any
	switch val := v.val.(type) {
	case []any:
		raw = val
	case map[string]any:
		raw, _ = val[membersProperty].([]any)
	}

	members := make([]Variant, 0, len(raw))
	for i, elem := range raw {
		member, err := v.resolve(ctx, elem)
		if err != nil {
			slog.Warn("skipping collection member",
				"index", i,
				"error", err,
			)
			continue
		}
		members = append(members, member)
	}
	return members
}

// resolve wraps a raw child value as a Variant, fetching through the
// transport when the value is an unexpanded reference.
func (v Variant) resolve(ctx context.Context, child any) (Variant, error) {
	if ref, ok := referenceURI(child); ok && v.t != nil {
		return fetch(ctx, v.t, ref)
	}
	return Variant{t: v.t, val: child}, nil
}

// referenceURI reports whether a value is a bare resource reference: an
// object whose only key is @odata.id.
func referenceURI(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return "", false
	}
	uri, ok := obj[odataID].(string)
	return uri, ok
}

func fetch(ctx context.Context, t transport.Transport, uri string) (Variant, error) {
	res, err := t.Get(ctx, uri)
	if err != nil {
		return Variant{}, fmt.Errorf("fetch %q: %w", uri, err)
	}
	if res.Code >= 400 {
		return Variant{}, fmt.Errorf("fetch %q: status %d", uri, res.Code)
	}
	val, err := Decode(res.Body)
	if err != nil {
		return Variant{}, fmt.Errorf("decode %q: %w", uri, err)
	}
	return Variant{t: t, val: val}, nil
}
