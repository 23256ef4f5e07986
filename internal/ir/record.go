package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Record is a single cached entity: field name to JSON-shaped value.
//
// Record is an alias so that values decoded by encoding/json (nested
// map[string]any) are records without conversion.
type Record = map[string]any

// Default field names used when a collection does not override them.
const (
	DefaultIDField     = "id"
	DefaultTempIDField = "__id"

	// TempFlag marks a record that lives in the temp index.
	TempFlag = "__isTemp"
)

// KeyOf returns the map key used to index a record by the given id value.
//
// Strings are used as is. Integral numbers of any Go numeric type render
// in decimal, so 3, int64(3), float64(3) and "3" all address the same
// entry. Returns false for nil, which means "no id".
func KeyOf(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		return id, true
	case int:
		return strconv.FormatInt(int64(id), 10), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint:
		return strconv.FormatUint(uint64(id), 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		if f, err := id.Float64(); err == nil {
			return formatFloat(f), true
		}
		return id.String(), true
	case float64:
		return formatFloat(id), true
	case float32:
		return formatFloat(float64(id)), true
	case bool:
		return strconv.FormatBool(id), true
	default:
		return fmt.Sprint(v), true
	}
}

// MustKey is KeyOf for callers that have already checked the id is present.
// A nil id yields the empty string.
func MustKey(v any) string {
	k, _ := KeyOf(v)
	return k
}

// IDOf returns the value stored at field, or nil when it is missing or null.
func IDOf(r Record, field string) any {
	if r == nil {
		return nil
	}
	return r[field]
}

// HasID reports whether the record carries a non-null value at field.
func HasID(r Record, field string) bool {
	return IDOf(r, field) != nil
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Number converts any Go numeric value (and json.Number) to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Int converts a numeric value to int, rejecting fractional values.
func Int(v any) (int, bool) {
	f, ok := Number(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
