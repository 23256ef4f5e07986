package query

import (
	"strconv"
	"strings"
)

// resolve returns every value reachable at path from v. An empty path
// yields v itself. Arrays met along the way fan out over their elements;
// a numeric segment also indexes directly into an array.
func resolve(v any, path string) (values []any, found bool) {
	if path == "" {
		return []any{v}, true
	}
	out := []any{}
	walk(v, strings.Split(path, "."), &out, &found)
	return out, found
}

func walk(v any, parts []string, out *[]any, found *bool) {
	if len(parts) == 0 {
		*out = append(*out, v)
		*found = true
		return
	}
	head, rest := parts[0], parts[1:]
	switch node := v.(type) {
	case map[string]any:
		child, ok := node[head]
		if !ok {
			return
		}
		walk(child, rest, out, found)
	case []any:
		if idx, err := strconv.Atoi(head); err == nil {
			if idx >= 0 && idx < len(node) {
				walk(node[idx], rest, out, found)
			}
			return
		}
		for _, elem := range node {
			if _, isDoc := elem.(map[string]any); isDoc {
				walk(elem, parts, out, found)
			}
		}
	}
}

// lookup returns the first value at path, used for sorting.
func lookup(v any, path string) (any, bool) {
	values, found := resolve(v, path)
	if !found || len(values) == 0 {
		return nil, false
	}
	return values[0], true
}
