// Package transport defines the remote service collaborator consumed by
// the actions layer, its error type and the real-time event frames.
//
// Implementations live in subpackages: memory (in-process, for tests and
// the CLI), rest (HTTP JSON client) and ws (WebSocket event source). The
// SQLite-backed reference service in internal/store also satisfies
// Service.
package transport
