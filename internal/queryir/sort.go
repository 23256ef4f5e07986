package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/roach88/svcstore/internal/ir"
)

// Sort is an ordered list of $sort keys.
//
// A Go map has no key order, so a $sort given as map[string]any with more
// than one key is ordered by field name. Callers that care about order
// either build a Sort directly or decode the query with DecodeQuery, which
// keeps the order written in the JSON text.
type Sort []SortKey

// MarshalJSON writes the sort as an object in field order.
func (s Sort) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k.Field)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(k.Dir))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a sort object keeping the key order of the input.
func (s *Sort) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return invalidFilter("$sort", "must be an object")
	}
	out := Sort{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		field := tok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		dir, err := sortDirection(field, raw)
		if err != nil {
			return err
		}
		out = append(out, SortKey{Field: field, Dir: dir})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	*s = out
	return nil
}

// Document returns the sort as a plain map for canonical encoding.
func (s Sort) Document() map[string]any {
	doc := make(map[string]any, len(s))
	for _, k := range s {
		doc[k.Field] = k.Dir
	}
	return doc
}

// ParseSort converts any accepted $sort shape into a Sort.
func ParseSort(v any) (Sort, error) {
	switch s := v.(type) {
	case Sort:
		return s, nil
	case []SortKey:
		return Sort(s), nil
	case map[string]any:
		out := make(Sort, 0, len(s))
		for _, field := range ir.SortedKeys(s) {
			dir, err := sortDirection(field, s[field])
			if err != nil {
				return nil, err
			}
			out = append(out, SortKey{Field: field, Dir: dir})
		}
		return out, nil
	case map[string]int:
		out := make(Sort, 0, len(s))
		for _, field := range ir.SortedKeys(s) {
			dir, err := sortDirection(field, s[field])
			if err != nil {
				return nil, err
			}
			out = append(out, SortKey{Field: field, Dir: dir})
		}
		return out, nil
	default:
		return nil, invalidFilter("$sort", "unsupported sort value %T", v)
	}
}

func sortDirection(field string, v any) (int, error) {
	var f float64
	switch d := v.(type) {
	case string:
		n, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return 0, invalidFilter("$sort", "direction for %q must be 1 or -1", field)
		}
		f = n
	default:
		n, ok := ir.Number(v)
		if !ok {
			return 0, invalidFilter("$sort", "direction for %q must be 1 or -1", field)
		}
		f = n
	}
	if f == 0 || math.IsNaN(f) {
		return 0, invalidFilter("$sort", "direction for %q must be 1 or -1", field)
	}
	if f > 0 {
		return 1, nil
	}
	return -1, nil
}

// Fields lists the sort fields in order.
func (s Sort) Fields() []string {
	out := make([]string, len(s))
	for i, k := range s {
		out[i] = k.Field
	}
	return out
}

// String renders the sort for logs.
func (s Sort) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = fmt.Sprintf("%s:%d", k.Field, k.Dir)
	}
	return fmt.Sprint(parts)
}

// Equal reports whether two sorts are identical.
func (s Sort) Equal(o Sort) bool {
	return slices.Equal(s, o)
}
