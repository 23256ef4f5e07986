// Package queryir parses MongoDB-style query documents into an abstract
// predicate tree plus the four reserved pagination filters.
//
// The IR is the boundary between query documents and the engines that
// evaluate them:
//
//	[query document] → [queryir] → [query: in-memory matcher]
//	                             → [querysql: SQLite compiler]
//
// Both backends consume the same tree, so a query evaluated locally against
// the cache and remotely against the reference service agree on results.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, which keeps type switches in the
// backends exhaustive:
//
//	switch p := pred.(type) {
//	case *Compare:
//	case *In:
//	case *And:
//	...
//	}
//
// OPERATORS:
//
// The built-in set accepted by default is $in, $nin, $lt, $lte, $gt, $gte,
// $ne, $or, $and and $elemMatch. Everything else the backends understand
// ($eq, $exists, $regex with $options, $all, $size, $not, $nor) must be
// allowed per collection through Options.Operators. Allowed names that are
// not built in become Custom nodes that the caller must supply an
// implementation for.
package queryir
