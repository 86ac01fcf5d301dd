package crypto

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CanonicalMap is an opaque, caller-supplied key/value payload (used
// for transaction_data and document_hashes). It renders itself as
// sorted-key JSON so canonical output is deterministic regardless of
// Go's randomized map iteration order.
type CanonicalMap map[string]any

// Field is one entry of a canonical object, written in the exact order
// given — canonical objects are NOT sorted by key, only nested maps
// are (see §4.3: "field order is the order given").
type Field struct {
	Key   string
	Value any
}

// EncodeObject renders fields as a canonical JSON object, preserving
// field order exactly as given and rendering nested values
// deterministically.
func EncodeObject(fields []Field) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeString(f.Key))
		b.WriteByte(':')
		b.WriteString(encodeValue(f.Value))
	}
	b.WriteByte('}')
	return b.String()
}

// FormatTimestamp renders t as ISO-8601 with millisecond precision in
// UTC, per §4.3. This is the only timestamp format this module emits
// or accepts in canonical form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseTimestamp parses a §4.3 canonical timestamp, failing closed
// (per the timestamp-precision Open Question) rather than accepting a
// looser format that could have dropped sub-second precision.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000Z", s)
}

func encodeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return encodeString(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		// encoding/json decodes every JSON number inside a map[string]any
		// as float64, so a transaction_data/document_hashes value that
		// round-trips through storage arrives here as float64 even if it
		// was constructed as a Go int. FormatFloat with precision -1
		// emits the shortest decimal that round-trips, which is always
		// free of trailing zeros (5.0 renders as "5", not "5.0").
		return strconv.FormatFloat(val, 'f', -1, 64)
	case *int64:
		if val == nil {
			return "null"
		}
		return strconv.FormatInt(*val, 10)
	case *int:
		if val == nil {
			return "null"
		}
		return strconv.FormatInt(int64(*val), 10)
	case time.Time:
		return encodeString(FormatTimestamp(val))
	case CanonicalMap:
		return encodeSortedMap(val)
	case map[string]any:
		return encodeSortedMap(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, v := range val {
			m[k] = v
		}
		return encodeSortedMap(m)
	case []string:
		parts := make([]string, len(val))
		for i, s := range val {
			parts[i] = encodeString(s)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return encodeString(fmt.Sprintf("%v", val))
	}
}

// encodeSortedMap renders a map with keys sorted lexicographically, so
// nested structured payloads hash identically across hosts regardless
// of map iteration order.
func encodeSortedMap(m map[string]any) string {
	if m == nil {
		return "null"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeString(k))
		b.WriteByte(':')
		b.WriteString(encodeValue(m[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// encodeString renders a Go string as a JSON string literal.
func encodeString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
