// Package querysql compiles query predicates and filters to parameterized
// SQLite SQL over JSON documents.
//
// Records live as JSON text in a data column. Field paths become JSON
// paths bound as parameters; literal values are always bound, never
// interpolated. Every statement orders deterministically: by the $sort
// keys (type bracket first, then value) and finally by insertion sequence.
//
// Semantics follow the in-memory matcher for the compilable fragment:
// a field holding an array matches when the array contains a matching
// element, comparisons only match values of the literal's type bracket,
// and a missing field equals null. Paths address object members and array
// indexes; they do not fan out through arrays of documents. Predicates the
// compiler cannot express (custom operators, array or object literals,
// nested $elemMatch) fail with ErrUnsupported, and callers evaluate them
// in memory instead.
package querysql
