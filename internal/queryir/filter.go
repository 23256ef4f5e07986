package queryir

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/svcstore/internal/ir"
)

// Reserved filter keys split off the query document.
const (
	KeySort   = "$sort"
	KeyLimit  = "$limit"
	KeySkip   = "$skip"
	KeySelect = "$select"
)

// FilterKeys lists the reserved pagination keys.
var FilterKeys = []string{KeySort, KeyLimit, KeySkip, KeySelect}

// DefaultOperators are accepted in every query.
var DefaultOperators = []string{"$in", "$nin", "$lt", "$lte", "$gt", "$gte", "$ne", "$or", "$and"}

// AdditionalOperators are accepted in every local query on top of the
// defaults.
var AdditionalOperators = []string{"$elemMatch"}

// builtins are the operators the backends evaluate natively.
var builtins = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$exists": true, "$regex": true, "$options": true,
	"$all": true, "$size": true, "$elemMatch": true, "$not": true,
	"$and": true, "$or": true, "$nor": true,
}

// Options configures which operators a query may use.
type Options struct {
	// Operators extends DefaultOperators and AdditionalOperators.
	Operators []string
}

func (o Options) allowed() map[string]bool {
	set := make(map[string]bool, len(DefaultOperators)+len(AdditionalOperators)+len(o.Operators))
	for _, list := range [][]string{DefaultOperators, AdditionalOperators, o.Operators} {
		for _, op := range list {
			set[op] = true
		}
	}
	if set["$regex"] {
		set["$options"] = true
	}
	return set
}

// FilterQuery splits a query document into a predicate and its pagination
// filters. Operators outside the allowed set are rejected with a
// *QueryError.
func FilterQuery(q map[string]any, opts Options) (Predicate, Filters, error) {
	filters, err := parseFilters(q)
	if err != nil {
		return nil, Filters{}, err
	}
	p := &parser{allowed: opts.allowed()}
	pred, err := p.document(Omit(q, FilterKeys...))
	if err != nil {
		return nil, Filters{}, err
	}
	return pred, filters, nil
}

// Omit returns a shallow copy of q without the given keys. The input is
// never modified. A nil query yields an empty one.
func Omit(q map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(q))
	for k, v := range q {
		if !slices.Contains(keys, k) {
			out[k] = v
		}
	}
	return out
}

func parseFilters(q map[string]any) (Filters, error) {
	var f Filters
	if v, ok := q[KeySort]; ok && v != nil {
		s, err := ParseSort(v)
		if err != nil {
			return Filters{}, err
		}
		f.Sort = s
	}
	if v, ok := q[KeyLimit]; ok && v != nil {
		n, err := parseCount(KeyLimit, v)
		if err != nil {
			return Filters{}, err
		}
		f.Limit = &n
	}
	if v, ok := q[KeySkip]; ok && v != nil {
		n, err := parseCount(KeySkip, v)
		if err != nil {
			return Filters{}, err
		}
		f.Skip = &n
	}
	if v, ok := q[KeySelect]; ok && v != nil {
		fields, err := parseSelect(v)
		if err != nil {
			return Filters{}, err
		}
		f.Select = fields
	}
	return f, nil
}

// parseCount accepts non-negative integers, including numeric strings as
// they arrive from URL query strings.
func parseCount(key string, v any) (int, error) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, invalidFilter(key, "must be a non-negative integer")
		}
		v = n
	}
	n, ok := ir.Int(v)
	if !ok || n < 0 {
		return 0, invalidFilter(key, "must be a non-negative integer")
	}
	return n, nil
}

func parseSelect(v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return slices.Clone(s), nil
	case []any:
		out := make([]string, 0, len(s))
		for _, f := range s {
			name, ok := f.(string)
			if !ok {
				return nil, invalidFilter(KeySelect, "field names must be strings")
			}
			out = append(out, name)
		}
		return out, nil
	case string:
		return []string{s}, nil
	default:
		return nil, invalidFilter(KeySelect, "must be a list of field names")
	}
}

type parser struct {
	allowed map[string]bool
}

func (p *parser) check(op string) error {
	if !p.allowed[op] {
		return invalidOperator(op)
	}
	return nil
}

// document parses a filter document. Keys are visited in sorted order so
// the resulting tree is deterministic.
func (p *parser) document(doc map[string]any) (Predicate, error) {
	and := &And{}
	for _, key := range ir.SortedKeys(doc) {
		val := doc[key]
		var (
			pred Predicate
			err  error
		)
		switch {
		case key == "$and" || key == "$or" || key == "$nor":
			pred, err = p.logical(key, val)
		case strings.HasPrefix(key, "$"):
			err = invalidOperator(key)
		default:
			pred, err = p.field(key, val)
		}
		if err != nil {
			return nil, err
		}
		and.Predicates = append(and.Predicates, pred)
	}
	if len(and.Predicates) == 1 {
		return and.Predicates[0], nil
	}
	return and, nil
}

func (p *parser) logical(key string, val any) (Predicate, error) {
	if err := p.check(key); err != nil {
		return nil, err
	}
	items, ok := val.([]any)
	if !ok {
		if docs, isDocs := val.([]map[string]any); isDocs {
			items = make([]any, len(docs))
			for i, d := range docs {
				items[i] = d
			}
		} else {
			return nil, invalidValue(key, "must be an array of query documents")
		}
	}
	preds := make([]Predicate, 0, len(items))
	for i, item := range items {
		doc, ok := item.(map[string]any)
		if !ok {
			return nil, invalidValue(key, "element %d is not a query document", i)
		}
		pred, err := p.document(doc)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	switch key {
	case "$or":
		return &Or{Predicates: preds}, nil
	case "$nor":
		return &Nor{Predicates: preds}, nil
	default:
		return &And{Predicates: preds}, nil
	}
}

// isOperatorDoc reports whether every key of v is a $-operator.
func isOperatorDoc(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

// field parses the condition on one path: a literal (implicit $eq) or an
// operator document.
func (p *parser) field(path string, val any) (Predicate, error) {
	ops, ok := isOperatorDoc(val)
	if !ok {
		return &Compare{Path: path, Op: OpEq, Value: val}, nil
	}
	and := &And{}
	for _, op := range ir.SortedKeys(ops) {
		if op == "$options" {
			if _, hasRegex := ops["$regex"]; !hasRegex {
				return nil, invalidValue(op, "$options requires $regex")
			}
			continue
		}
		if err := p.check(op); err != nil {
			return nil, err
		}
		pred, err := p.operator(path, op, ops[op], ops)
		if err != nil {
			return nil, err
		}
		and.Predicates = append(and.Predicates, pred)
	}
	if len(and.Predicates) == 1 {
		return and.Predicates[0], nil
	}
	return and, nil
}

func (p *parser) operator(path, op string, arg any, siblings map[string]any) (Predicate, error) {
	switch op {
	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		return &Compare{Path: path, Op: Op(op), Value: arg}, nil
	case "$in", "$nin":
		values, err := array(op, arg)
		if err != nil {
			return nil, err
		}
		return &In{Path: path, Values: values, Negate: op == "$nin"}, nil
	case "$exists":
		want, ok := truthy(arg)
		if !ok {
			return nil, invalidValue(op, "must be a boolean")
		}
		return &Exists{Path: path, Want: want}, nil
	case "$regex":
		opts, _ := siblings["$options"].(string)
		return compileRegex(path, arg, opts)
	case "$all":
		values, err := array(op, arg)
		if err != nil {
			return nil, err
		}
		return &All{Path: path, Values: values}, nil
	case "$size":
		n, ok := ir.Int(arg)
		if !ok || n < 0 {
			return nil, invalidValue(op, "must be a non-negative integer")
		}
		return &Size{Path: path, N: n}, nil
	case "$elemMatch":
		doc, ok := arg.(map[string]any)
		if !ok {
			return nil, invalidValue(op, "must be a query document")
		}
		var (
			inner Predicate
			err   error
		)
		if _, isOps := isOperatorDoc(doc); isOps {
			inner, err = p.field("", doc)
		} else {
			inner, err = p.document(doc)
		}
		if err != nil {
			return nil, err
		}
		return &ElemMatch{Path: path, Filter: inner}, nil
	case "$not":
		var (
			inner Predicate
			err   error
		)
		if s, ok := arg.(string); ok {
			inner, err = compileRegex(path, s, "")
		} else {
			if _, isOps := isOperatorDoc(arg); !isOps {
				return nil, invalidValue(op, "must be an operator document or pattern")
			}
			inner, err = p.field(path, arg)
		}
		if err != nil {
			return nil, err
		}
		return &Not{Predicate: inner}, nil
	case "$and", "$or", "$nor":
		return nil, invalidValue(op, "logical operators are only valid at document level")
	default:
		return &Custom{Path: path, Name: op, Arg: arg}, nil
	}
}

func array(op string, v any) ([]any, error) {
	switch a := v.(type) {
	case []any:
		return a, nil
	case []string:
		return ir.StringsToAny(a), nil
	case []int:
		out := make([]any, len(a))
		for i, n := range a {
			out[i] = n
		}
		return out, nil
	default:
		return nil, invalidValue(op, "must be an array")
	}
}

func truthy(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	default:
		if n, ok := ir.Number(v); ok {
			return n != 0, true
		}
		return false, false
	}
}

func compileRegex(path string, arg any, options string) (Predicate, error) {
	pattern, ok := arg.(string)
	if !ok {
		return nil, invalidValue("$regex", "pattern must be a string")
	}
	flags := ""
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			if !strings.ContainsRune(flags, o) {
				flags += string(o)
			}
		default:
			return nil, invalidValue("$options", "unsupported regex option %q", o)
		}
	}
	expr := pattern
	if flags != "" {
		expr = fmt.Sprintf("(?%s)%s", flags, pattern)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, invalidValue("$regex", "invalid pattern: %v", err)
	}
	return &Regex{Path: path, Pattern: pattern, Options: flags, Re: re}, nil
}

// DecodeQuery decodes a JSON query document. Unlike json.Unmarshal into a
// map, a $sort object keeps the field order written in the input.
func DecodeQuery(data []byte) (map[string]any, error) {
	var q map[string]any
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	if q == nil {
		q = map[string]any{}
	}
	if _, ok := q[KeySort].(map[string]any); ok {
		var holder struct {
			Sort Sort `json:"$sort"`
		}
		if err := json.Unmarshal(data, &holder); err != nil {
			return nil, fmt.Errorf("decode query: %w", err)
		}
		q[KeySort] = holder.Sort
	}
	return q, nil
}

// SelectFields returns the $select list of q, or nil when q has none or
// it is malformed.
func SelectFields(q map[string]any) []string {
	v, ok := q[KeySelect]
	if !ok || v == nil {
		return nil
	}
	fields, err := parseSelect(v)
	if err != nil {
		return nil
	}
	return fields
}
