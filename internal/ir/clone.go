package ir

import "reflect"

// Clone returns a deep copy of a JSON-shaped value. Maps and slices are
// copied recursively; scalars are returned as is.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneRecord(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// CloneRecord deep-copies a record. A nil record clones to nil.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = Clone(v)
	}
	return out
}

// CloneRecords deep-copies a list of records.
func CloneRecords(rs []Record) []Record {
	if rs == nil {
		return nil
	}
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = CloneRecord(r)
	}
	return out
}

// Merge deep-assigns source onto dest in place and returns dest.
//
// Fields absent from source are left untouched. When both sides hold an
// object at the same key the objects are merged recursively so the nested
// map keeps its identity; arrays and scalars are replaced by a copy of the
// source value.
func Merge(dest, source Record) Record {
	if dest == nil {
		dest = make(Record, len(source))
	}
	for k, sv := range source {
		dv, exists := dest[k]
		if exists {
			dm, dok := dv.(map[string]any)
			sm, sok := sv.(map[string]any)
			if dok && sok && dm != nil {
				Merge(dm, sm)
				continue
			}
		}
		dest[k] = Clone(sv)
	}
	return dest
}

// Overwrite makes dest deeply equal to source while keeping the dest map
// and every nested map present on both sides. Keys missing from source are
// deleted from dest at every level.
func Overwrite(dest, source Record) Record {
	if dest == nil {
		return CloneRecord(source)
	}
	overwrite(dest, source)
	return dest
}

func overwrite(dest, source map[string]any) {
	for k := range dest {
		if _, ok := source[k]; !ok {
			delete(dest, k)
		}
	}
	for k, sv := range source {
		dm, dok := dest[k].(map[string]any)
		sm, sok := sv.(map[string]any)
		if dok && sok && dm != nil && sm != nil {
			overwrite(dm, sm)
			continue
		}
		dest[k] = Clone(sv)
	}
}

// Equal reports whether two JSON-shaped values are deeply equal, treating
// numbers of different Go types as equal when their values match.
func Equal(a, b any) bool {
	if an, ok := Number(a); ok {
		bn, ok := Number(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case []string:
		return Equal(StringsToAny(av), b)
	}
	if bs, ok := b.([]string); ok {
		return Equal(a, StringsToAny(bs))
	}
	return reflect.DeepEqual(a, b)
}

// StringsToAny widens a string slice to the JSON array shape.
func StringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
