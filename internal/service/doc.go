// Package service glues a cache.Collection to a transport.Service.
//
// Every action follows the same lifecycle: mark the verb (and the affected
// id) pending, call the transport without holding any cache lock, fold the
// response into the collection (and the pagination ledger for finds), then
// clear the pending marks. A failed call records a serialized copy of the
// error for the verb, clears the pending marks and returns the transport's
// error unchanged.
//
// Real-time events are applied through HandleEvent with the same
// collection operations, so an event racing an action's response for the
// same record converges on the same state.
package service
