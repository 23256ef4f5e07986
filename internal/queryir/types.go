package queryir

import (
	"regexp"
)

// Predicate is a filter condition over a record.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "$eq"
	OpNe  Op = "$ne"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
)

// Compare tests the value at Path against a literal.
//
// Path uses dot notation ("author.name"). An empty Path refers to the value
// under test itself, which is how element predicates inside $elemMatch are
// expressed.
type Compare struct {
	Path  string
	Op    Op
	Value any
}

func (*Compare) predicateNode() {}

// In tests membership of the value at Path in Values ($in), or its absence
// when Negate is set ($nin).
type In struct {
	Path   string
	Values []any
	Negate bool
}

func (*In) predicateNode() {}

// Exists tests whether Path is present (Want=true) or absent.
type Exists struct {
	Path string
	Want bool
}

func (*Exists) predicateNode() {}

// Regex matches string values at Path.
type Regex struct {
	Path    string
	Pattern string
	Options string
	Re      *regexp.Regexp
}

func (*Regex) predicateNode() {}

// All requires the array at Path to contain every element of Values.
type All struct {
	Path   string
	Values []any
}

func (*All) predicateNode() {}

// Size requires the array at Path to have exactly N elements.
type Size struct {
	Path string
	N    int
}

func (*Size) predicateNode() {}

// ElemMatch requires at least one element of the array at Path to satisfy
// Filter. Paths inside Filter are relative to the element.
type ElemMatch struct {
	Path   string
	Filter Predicate
}

func (*ElemMatch) predicateNode() {}

// Not negates a field-level predicate.
type Not struct {
	Predicate Predicate
}

func (*Not) predicateNode() {}

// And matches when every predicate matches. An empty And matches anything.
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// Or matches when at least one predicate matches.
type Or struct {
	Predicates []Predicate
}

func (*Or) predicateNode() {}

// Nor matches when no predicate matches.
type Nor struct {
	Predicates []Predicate
}

func (*Nor) predicateNode() {}

// Custom is an operator allowed by the collection but not built in. The
// evaluating backend resolves Name to an implementation.
type Custom struct {
	Path string
	Name string
	Arg  any
}

func (*Custom) predicateNode() {}

// SortKey orders by one field. Dir is 1 for ascending, -1 for descending.
type SortKey struct {
	Field string
	Dir   int
}

// Filters holds the reserved pagination keys split off a query document.
// Nil fields were absent from the query.
type Filters struct {
	Sort   Sort
	Limit  *int
	Skip   *int
	Select []string
}

// HasSort reports whether a $sort was given.
func (f Filters) HasSort() bool {
	return f.Sort != nil
}
