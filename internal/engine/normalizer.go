package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/redpath/internal/query"
	"github.com/roach88/redpath/internal/record"
	"github.com/roach88/redpath/internal/redfish"
)

// Normalizer turns one matched resource into one output record per the
// property requirements of the matching subquery.
//
// It is a single function-shaped dependency so callers can inject
// per-execution customization (e.g. stamping topology-derived fields)
// without touching the executor. Returning ok=false skips the record;
// it never aborts the query or its sibling subqueries.
//
// Implementations must be stateless or internally synchronized; the
// engine treats the normalizer as read-only.
type Normalizer func(v redfish.Variant, sq query.Subquery) (record.Record, bool)

// NormalizeProperties is the default Normalizer.
//
// For each requested property it resolves the dot-separated path by
// descending into the JSON object, then coerces the value to the declared
// primitive. An absent property is omitted from the record; a type
// mismatch drops the property with a logged warning. The record is
// produced unless every property dropped.
func NormalizeProperties(v redfish.Variant, sq query.Subquery) (record.Record, bool) {
	obj, ok := v.JSON().(map[string]any)
	if !ok {
		return nil, false
	}

	rec := make(record.Record, len(sq.Properties))
	for _, prop := range sq.Properties {
		raw, ok := resolvePropertyPath(obj, prop.Path)
		if !ok {
			continue
		}
		val, err := coerce(raw, prop.Type)
		if err != nil {
			slog.Warn("dropping property",
				"subquery_id", sq.ID,
				"property", prop.Path,
				"declared_type", prop.Type.String(),
				"error", err,
			)
			continue
		}
		rec[prop.Key()] = val
	}

	if len(rec) == 0 {
		return nil, false
	}
	return rec, true
}

// resolvePropertyPath walks a dot-separated property path through nested
// JSON objects. "Status.State" descends into Status, then reads State.
func resolvePropertyPath(obj map[string]any, path string) (any, bool) {
	nodes := strings.Split(path, ".")
	var current any = obj
	for _, node := range nodes {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[node]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// coerce converts a decoded JSON value to the declared primitive.
// Numbers arrive as json.Number (the variant layer decodes with
// UseNumber) so int64 precision is preserved.
func coerce(raw any, declared query.Primitive) (record.Value, error) {
	switch declared {
	case query.PrimitiveBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return record.Bool(b), nil

	case query.PrimitiveInt64:
		num, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected integer number, got %T", raw)
		}
		n, err := num.Int64()
		if err != nil {
			return nil, fmt.Errorf("expected integer number, got %q", num)
		}
		return record.Int(n), nil

	case query.PrimitiveString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return record.String(s), nil

	case query.PrimitiveDouble:
		num, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", raw)
		}
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q", num)
		}
		return record.Double(f), nil

	case query.PrimitiveDateTimeOffset:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected RFC 3339 string, got %T", raw)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("unparseable timestamp %q", s)
		}
		return record.Timestamp(t), nil

	default:
		return nil, fmt.Errorf("undeclared primitive type")
	}
}
