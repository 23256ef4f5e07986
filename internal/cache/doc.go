// Package cache implements the normalized per-collection record cache.
//
// A Collection holds three indexes of records for one remote service:
// keyed by real id, keyed by temp id (records not yet persisted), and
// editable copies keyed by either. On top of those it keeps a pagination
// ledger per query identifier and a pending/error ledger per CRUD verb,
// and answers find/count/get locally with MongoDB query semantics.
//
// CONCURRENCY:
//
// Every operation takes the collection lock, so reads and writes from the
// action layer and the real-time event loop interleave safely. Operations
// are idempotent and order-tolerant; a late response simply overwrites
// (last write wins).
//
// OWNERSHIP:
//
// The cached maps never leave the lock. Mutations store copies of the
// records they are handed, and getters return deep copies taken under the
// read lock, which the caller owns and may edit freely. Cached records
// change only through mutations; copies change through EditCopy and reach
// the record through CommitCopy.
//
// NOTIFICATION:
//
// Subscribers registered with Subscribe see every change. Watchers
// registered with Watch for one key see changes to that entry, plus any
// change that touched many entries at once (Change.Whole).
package cache
