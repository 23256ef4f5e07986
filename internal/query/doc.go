// Package query evaluates queryir predicates against in-memory records.
//
// It is the local backend used by the cache's find/count getters and by
// the in-memory transport. Matching follows MongoDB semantics: dot paths
// descend into nested objects and across arrays, a field holding an array
// matches when any element matches, and a missing field equals null.
//
// Ordering across types follows the same precedence the server side uses:
// missing < null < numbers < strings < booleans < arrays < objects.
package query
