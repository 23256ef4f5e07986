package query

import (
	"fmt"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
)

// OperatorFunc implements a custom operator. It is called once per
// candidate value at the predicate's path (array elements included) and
// matches when any call returns true. value is nil when the path is
// missing.
type OperatorFunc func(value, arg any) bool

// Matcher evaluates one predicate against records.
type Matcher struct {
	pred queryir.Predicate
	ops  map[string]OperatorFunc
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithOperator registers the implementation of a custom operator.
func WithOperator(name string, fn OperatorFunc) MatcherOption {
	return func(m *Matcher) {
		m.ops[name] = fn
	}
}

// WithOperators registers several custom operators at once.
func WithOperators(ops map[string]OperatorFunc) MatcherOption {
	return func(m *Matcher) {
		for name, fn := range ops {
			m.ops[name] = fn
		}
	}
}

// NewMatcher prepares pred for evaluation. It fails when the predicate uses
// a custom operator with no registered implementation.
func NewMatcher(pred queryir.Predicate, opts ...MatcherOption) (*Matcher, error) {
	m := &Matcher{pred: pred, ops: map[string]OperatorFunc{}}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.check(pred); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matcher) check(p queryir.Predicate) error {
	switch pred := p.(type) {
	case *queryir.Custom:
		if _, ok := m.ops[pred.Name]; !ok {
			return &queryir.QueryError{
				Code:    queryir.ErrCodeInvalidOperator,
				Key:     pred.Name,
				Message: "operator is allowed but has no implementation",
			}
		}
	case *queryir.ElemMatch:
		return m.check(pred.Filter)
	case *queryir.Not:
		return m.check(pred.Predicate)
	case *queryir.And:
		return m.checkAll(pred.Predicates)
	case *queryir.Or:
		return m.checkAll(pred.Predicates)
	case *queryir.Nor:
		return m.checkAll(pred.Predicates)
	}
	return nil
}

func (m *Matcher) checkAll(preds []queryir.Predicate) error {
	for _, p := range preds {
		if err := m.check(p); err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether record satisfies the predicate.
func (m *Matcher) Match(record ir.Record) bool {
	return m.match(m.pred, record)
}

// Filter returns the records that match, preserving order. The result
// never aliases the input slice.
func (m *Matcher) Filter(records []ir.Record) []ir.Record {
	out := make([]ir.Record, 0, len(records))
	for _, r := range records {
		if m.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Matcher) match(p queryir.Predicate, v any) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case *queryir.Compare:
		values, found := resolve(v, pred.Path)
		return compareMatch(values, found, pred.Op, pred.Value)
	case *queryir.In:
		values, found := resolve(v, pred.Path)
		hit := false
		for _, want := range pred.Values {
			if eqMatch(values, found, want) {
				hit = true
				break
			}
		}
		return hit != pred.Negate
	case *queryir.Exists:
		_, found := resolve(v, pred.Path)
		return found == pred.Want
	case *queryir.Regex:
		values, _ := resolve(v, pred.Path)
		for _, val := range expand(values) {
			if s, ok := val.(string); ok && pred.Re.MatchString(s) {
				return true
			}
		}
		return false
	case *queryir.All:
		if len(pred.Values) == 0 {
			return false
		}
		values, found := resolve(v, pred.Path)
		for _, want := range pred.Values {
			if !eqMatch(values, found, want) {
				return false
			}
		}
		return true
	case *queryir.Size:
		values, _ := resolve(v, pred.Path)
		for _, val := range values {
			if arr := toArray(val); arr != nil && len(arr) == pred.N {
				return true
			}
		}
		return false
	case *queryir.ElemMatch:
		values, _ := resolve(v, pred.Path)
		for _, val := range values {
			for _, elem := range toArray(val) {
				if m.match(pred.Filter, elem) {
					return true
				}
			}
		}
		return false
	case *queryir.Not:
		return !m.match(pred.Predicate, v)
	case *queryir.And:
		for _, sub := range pred.Predicates {
			if !m.match(sub, v) {
				return false
			}
		}
		return true
	case *queryir.Or:
		for _, sub := range pred.Predicates {
			if m.match(sub, v) {
				return true
			}
		}
		return false
	case *queryir.Nor:
		for _, sub := range pred.Predicates {
			if m.match(sub, v) {
				return false
			}
		}
		return true
	case *queryir.Custom:
		fn := m.ops[pred.Name]
		values, found := resolve(v, pred.Path)
		if !found {
			return fn(nil, pred.Arg)
		}
		for _, val := range expand(values) {
			if fn(val, pred.Arg) {
				return true
			}
		}
		return false
	default:
		panic(fmt.Sprintf("query: unknown predicate type %T", p))
	}
}

// expand returns values plus the elements of any array among them.
func expand(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
		out = append(out, toArray(v)...)
	}
	return out
}

// eqMatch implements equality: a missing path equals null, and an array
// matches when it equals want or contains an element equal to want.
func eqMatch(values []any, found bool, want any) bool {
	if !found {
		return want == nil
	}
	for _, v := range values {
		if ir.Equal(v, want) {
			return true
		}
		for _, elem := range toArray(v) {
			if ir.Equal(elem, want) {
				return true
			}
		}
	}
	return false
}

func compareMatch(values []any, found bool, op queryir.Op, want any) bool {
	switch op {
	case queryir.OpEq:
		return eqMatch(values, found, want)
	case queryir.OpNe:
		return !eqMatch(values, found, want)
	}
	if want == nil {
		if op == queryir.OpGte || op == queryir.OpLte {
			return eqMatch(values, found, nil)
		}
		return false
	}
	for _, v := range expand(values) {
		if !sameBracket(v, want) {
			continue
		}
		c := Compare(v, want)
		switch op {
		case queryir.OpGt:
			if c > 0 {
				return true
			}
		case queryir.OpGte:
			if c >= 0 {
				return true
			}
		case queryir.OpLt:
			if c < 0 {
				return true
			}
		case queryir.OpLte:
			if c <= 0 {
				return true
			}
		}
	}
	return false
}
