package query

import "fmt"

// Primitive identifies the declared output type of a requested property.
//
// Values extracted from a resource are coerced to their declared primitive
// during normalization; a mismatch drops the property, never the query.
type Primitive int

const (
	// PrimitiveUnknown is the zero value; subqueries declaring it fail
	// validation.
	PrimitiveUnknown Primitive = iota

	// PrimitiveBool accepts JSON booleans.
	PrimitiveBool

	// PrimitiveInt64 accepts integral JSON numbers.
	PrimitiveInt64

	// PrimitiveString accepts JSON strings.
	PrimitiveString

	// PrimitiveDouble accepts any JSON number, stored as float64.
	PrimitiveDouble

	// PrimitiveDateTimeOffset accepts RFC 3339 strings, stored as a
	// timestamp.
	PrimitiveDateTimeOffset
)

// String returns the wire-form name of the primitive.
func (p Primitive) String() string {
	switch p {
	case PrimitiveBool:
		return "BOOLEAN"
	case PrimitiveInt64:
		return "INT64"
	case PrimitiveString:
		return "STRING"
	case PrimitiveDouble:
		return "DOUBLE"
	case PrimitiveDateTimeOffset:
		return "DATE_TIME_OFFSET"
	default:
		return "UNKNOWN"
	}
}

// ParsePrimitive converts a wire-form type name into a Primitive.
// Both the enum spelling ("INT64") and the lowercase file spelling
// ("int64") are accepted.
func ParsePrimitive(s string) (Primitive, error) {
	switch s {
	case "BOOLEAN", "boolean", "bool":
		return PrimitiveBool, nil
	case "INT64", "int64":
		return PrimitiveInt64, nil
	case "STRING", "string":
		return PrimitiveString, nil
	case "DOUBLE", "double":
		return PrimitiveDouble, nil
	case "DATE_TIME_OFFSET", "date_time_offset", "datetime":
		return PrimitiveDateTimeOffset, nil
	default:
		return PrimitiveUnknown, fmt.Errorf("unknown primitive type %q", s)
	}
}

// Property names one value to extract from a matched resource.
//
// Path may be nested (dot-separated); resolution walks the JSON object.
// Name, when present, overrides Path as the output record key.
type Property struct {
	Path string
	Name string
	Type Primitive
}

// Key returns the output record key for this property: Name when present,
// else Path.
func (p Property) Key() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Path
}

// Subquery pairs one path expression with the properties to extract from
// matching resources.
//
// ID is caller-chosen; duplicate IDs are treated as aliases and all matches
// fold into the same output bucket. RootSubqueryIDs are pass-through
// grouping metadata: the engine preserves them verbatim into the result and
// never interprets them.
type Subquery struct {
	ID              string
	Path            string
	Properties      []Property
	RootSubqueryIDs []string
}

// Query is the compiled, in-memory form of a declarative platform query.
// Immutable once compiled.
type Query struct {
	ID         string
	Subqueries []Subquery
}
