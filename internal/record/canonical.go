package record

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing and golden
// comparison. This is the ONLY serialization that should be used when two
// results must compare bytewise equal.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Doubles use shortest round-trip formatting
//  5. No null (returns error)
//
// Timestamps serialize as RFC 3339 strings, so a canonical record is stable
// across processes.
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case String:
		return marshalCanonicalString(string(val)), nil
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Double:
		return marshalCanonicalDouble(float64(val))
	case Timestamp:
		return marshalCanonicalString(time.Time(val).Format(time.RFC3339Nano)), nil
	case Record:
		return marshalCanonicalRecord(val)
	case string:
		return marshalCanonicalString(val), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case int:
		return []byte(strconv.Itoa(val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case float64:
		return marshalCanonicalDouble(val)
	case []any:
		return marshalCanonicalSlice(val)
	case []Record:
		anys := make([]any, len(val))
		for i, r := range val {
			anys[i] = r
		}
		return marshalCanonicalSlice(anys)
	case []string:
		anys := make([]any, len(val))
		for i, s := range val {
			anys[i] = s
		}
		return marshalCanonicalSlice(anys)
	case map[string]any:
		return marshalCanonicalMap(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalDouble formats a float with the shortest representation
// that round-trips, mirroring the ES6 number serialization RFC 8785 builds
// on for the values this engine produces.
func marshalCanonicalDouble(f float64) ([]byte, error) {
	if f != f || f > 1.7976931348623157e308 || f < -1.7976931348623157e308 {
		return nil, fmt.Errorf("non-finite double is forbidden in canonical JSON: %v", f)
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// marshalCanonicalString serializes a string per RFC 8785: NFC normalized,
// then escaped directly rather than through encoding/json, whose encoder
// HTML-escapes <, > and & and escapes U+2028/U+2029 for JavaScript
// embedding. Only the quote, the backslash, and control characters below
// U+0020 are escaped; every other rune is written literally as UTF-8.
func marshalCanonicalString(s string) []byte {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	buf.Grow(len(normalized) + 2)
	buf.WriteByte('"')
	for _, r := range normalized {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\t':
			buf.WriteString(`\t`)
		case '\n':
			buf.WriteString(`\n`)
		case '\f':
			buf.WriteString(`\f`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return buf.Bytes()
}

// marshalCanonicalSlice marshals a slice to canonical JSON.
func marshalCanonicalSlice(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// marshalCanonicalRecord marshals a Record with RFC 8785 key ordering.
func marshalCanonicalRecord(r Record) ([]byte, error) {
	m := make(map[string]any, len(r))
	for k, v := range r {
		m[k] = v
	}
	return marshalCanonicalMap(m)
}

// marshalCanonicalMap marshals a map to canonical JSON with RFC 8785 key
// ordering.
func marshalCanonicalMap(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		buf.Write(marshalCanonicalString(k))
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(m[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
