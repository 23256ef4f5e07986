// Package store is the SQLite-backed reference service: a document table
// of JSON records per service path, exposed as a transport.Service.
//
// # Schema
//
//   - records(seq, service, id, data): one row per record. seq is the
//     insertion order and the final ORDER BY tiebreak, id the string key
//     of the record's id (ir.KeyOf), data the canonical JSON text.
//   - counters(service, next): the next auto-assigned numeric id.
//
// # Queries
//
// Finds compile to SQL through querysql. Queries outside the SQL fragment
// (custom operators, array or object literals) are evaluated by loading the
// service's rows and running the in-memory query plan, so every valid
// query is answered.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite has a single writer
package store
