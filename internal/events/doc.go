// Package events applies real-time service events to cached collections.
//
// A Loop owns a FIFO queue. Producers (WebSocket sources, in-process
// emitters, HTTP handlers) enqueue events from any goroutine; Run drains
// the queue from exactly one goroutine and hands each event to the handler
// registered for its service path. Handlers are the collection-backed
// service.Service values, whose collection operations make redelivered
// and reordered events harmless.
//
// Thread-safety model:
//   - Enqueue, Register, Attach: safe from any goroutine
//   - Run: must be called from exactly one goroutine
package events
