package transport

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/svcstore/internal/ir"
)

// Result is what Find returns: a page, or a bare list for services that
// do not paginate.
type Result = ir.FindResult

// Paginate configures server-side pagination.
type Paginate struct {
	// Default is the page size when a query has no $limit.
	Default int `json:"default" yaml:"default" toml:"default"`
	// Max caps $limit. Zero means no cap.
	Max int `json:"max" yaml:"max" toml:"max"`
}

// Limit returns the page size for a requested $limit, nil when absent.
func (p Paginate) Limit(requested *int) int {
	limit := p.Default
	if requested != nil {
		limit = *requested
	}
	if p.Max > 0 && limit > p.Max {
		limit = p.Max
	}
	return limit
}

// Service is a remote collection exposing the six CRUD verbs. All methods
// block until the remote call finishes or ctx is done.
type Service interface {
	Find(ctx context.Context, params ir.Params) (Result, error)
	Get(ctx context.Context, id any, params ir.Params) (ir.Record, error)
	Create(ctx context.Context, data ir.Record, params ir.Params) (ir.Record, error)
	Update(ctx context.Context, id any, data ir.Record, params ir.Params) (ir.Record, error)
	Patch(ctx context.Context, id any, data ir.Record, params ir.Params) (ir.Record, error)
	Remove(ctx context.Context, id any, params ir.Params) (ir.Record, error)
}

// EventName is a real-time event kind.
type EventName string

const (
	EventCreated EventName = "created"
	EventUpdated EventName = "updated"
	EventPatched EventName = "patched"
	EventRemoved EventName = "removed"
)

// Valid reports whether n is one of the four event kinds.
func (n EventName) Valid() bool {
	switch n {
	case EventCreated, EventUpdated, EventPatched, EventRemoved:
		return true
	}
	return false
}

// Event is one real-time notification, also the WebSocket frame shape.
type Event struct {
	Service string    `json:"service"`
	Name    EventName `json:"event"`
	Data    ir.Record `json:"data"`
}

// Emitter is implemented by services that publish real-time events.
type Emitter interface {
	On(fn func(Event)) (cancel func())
}

// Listeners is a ready-made Emitter for services to embed. The zero value
// is usable.
type Listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

// On registers fn for every emitted event.
func (l *Listeners) On(fn func(Event)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = map[int]func(Event){}
	}
	l.next++
	id := l.next
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// Emit delivers ev to every listener in registration order.
func (l *Listeners) Emit(ev Event) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
