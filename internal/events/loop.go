package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/svcstore/internal/transport"
)

// Handler applies events for one service path. *service.Service
// implements it.
type Handler interface {
	ServicePath() string
	HandleEvent(ev transport.Event) bool
}

// Stats counts what the loop did with the events it dequeued.
type Stats struct {
	Applied int
	Dropped int
}

// Loop is the single-writer event dispatcher.
type Loop struct {
	queue *queue
	log   *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	stats    Stats
	onError  func(transport.Event, error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		lp.log = l
	}
}

// WithErrorHandler is called, from the Run goroutine, for every event that
// was not applied.
func WithErrorHandler(fn func(transport.Event, error)) Option {
	return func(lp *Loop) {
		lp.onError = fn
	}
}

// New creates a Loop with no handlers.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue:    newQueue(),
		log:      slog.Default(),
		handlers: map[string]Handler{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register routes events for h.ServicePath() to h, replacing any earlier
// handler for that path.
func (l *Loop) Register(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[h.ServicePath()] = h
}

// Enqueue submits an event. It returns false after the loop has stopped.
func (l *Loop) Enqueue(ev transport.Event) bool {
	return l.queue.enqueue(ev)
}

// Attach enqueues every event src emits until the returned cancel is
// called.
func (l *Loop) Attach(src transport.Emitter) (cancel func()) {
	return src.On(func(ev transport.Event) {
		l.Enqueue(ev)
	})
}

// Pending returns the number of queued events.
func (l *Loop) Pending() int {
	return l.queue.len()
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// Run dispatches queued events in FIFO order until ctx is cancelled or
// Stop is called. Events that cannot be applied are logged and dropped;
// the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("event loop starting")

	for {
		if ev, ok := l.queue.tryDequeue(); ok {
			l.dispatch(ev)
			continue
		}

		select {
		case <-ctx.Done():
			l.log.Info("event loop stopping: context cancelled")
			l.queue.close()
			return ctx.Err()
		case <-l.queue.wait():
			if l.queue.len() == 0 && l.closed() {
				l.log.Info("event loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run drains what is already queued and returns.
func (l *Loop) Stop() {
	l.queue.close()
}

func (l *Loop) closed() bool {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()
	return l.queue.closed
}

func (l *Loop) dispatch(ev transport.Event) {
	err := l.apply(ev)

	l.mu.Lock()
	if err == nil {
		l.stats.Applied++
	} else {
		l.stats.Dropped++
	}
	onError := l.onError
	l.mu.Unlock()

	if err == nil {
		return
	}
	l.log.Debug("event not applied",
		"service", ev.Service,
		"event", string(ev.Name),
		"error", err,
	)
	if onError != nil {
		onError(ev, err)
	}
}

func (l *Loop) apply(ev transport.Event) error {
	if !ev.Name.Valid() {
		return &DispatchError{Code: ErrCodeInvalidEvent, Service: ev.Service, Event: string(ev.Name)}
	}
	l.mu.RLock()
	h, ok := l.handlers[ev.Service]
	l.mu.RUnlock()
	if !ok {
		return &DispatchError{Code: ErrCodeUnknownService, Service: ev.Service, Event: string(ev.Name)}
	}
	if !h.HandleEvent(ev) {
		return &DispatchError{Code: ErrCodeIgnored, Service: ev.Service, Event: string(ev.Name)}
	}
	return nil
}
