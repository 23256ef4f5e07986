package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
)

var (
	// ErrNoTransport is returned by New without a transport.
	ErrNoTransport = errors.New("service has no transport")

	// ErrNoCollection is returned by New without a collection.
	ErrNoCollection = errors.New("service has no collection")

	// ErrNotModel is returned when instance handles are requested from a
	// collection configured for plain data.
	ErrNotModel = errors.New("collection does not use the model variant")
)

// MetricsRecorder observes the outcome and latency of remote calls.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) Observe(context.Context, string, bool, time.Duration) {}

// EventFilter decides whether a real-time event's record is applied.
type EventFilter func(record ir.Record) bool

// HandleEvents holds optional per-event filters. A nil filter accepts.
type HandleEvents struct {
	Created EventFilter
	Updated EventFilter
	Patched EventFilter
	Removed EventFilter
}

func (h HandleEvents) filter(name transport.EventName) EventFilter {
	switch name {
	case transport.EventCreated:
		return h.Created
	case transport.EventUpdated:
		return h.Updated
	case transport.EventPatched:
		return h.Patched
	case transport.EventRemoved:
		return h.Removed
	}
	return nil
}

// AfterFindFunc post-processes a find result before it is returned.
type AfterFindFunc func(ctx context.Context, res transport.Result) (transport.Result, error)

// Options configures a Service.
type Options struct {
	// PreferUpdate makes Instance.Save use update instead of patch for
	// records that already have an id.
	PreferUpdate bool

	// EnableEvents makes HandleEvent apply events. When false events are
	// ignored.
	EnableEvents bool

	// HandleEvents filters events by kind.
	HandleEvents HandleEvents

	// AfterFind runs on every successful find.
	AfterFind AfterFindFunc
}

// Option configures a Service.
type Option func(*Service)

// WithOptions sets the service options.
func WithOptions(o Options) Option {
	return func(s *Service) {
		s.opts = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithMetricsRecorder sets the recorder for remote call metrics.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// Service runs the CRUD actions of one collection.
type Service struct {
	coll    *cache.Collection
	remote  transport.Service
	opts    Options
	log     *slog.Logger
	metrics MetricsRecorder
}

// New binds a collection to its transport.
func New(coll *cache.Collection, remote transport.Service, opts ...Option) (*Service, error) {
	if coll == nil {
		return nil, ErrNoCollection
	}
	if remote == nil {
		return nil, ErrNoTransport
	}
	s := &Service{
		coll:    coll,
		remote:  remote,
		log:     slog.Default(),
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Collection returns the bound collection.
func (s *Service) Collection() *cache.Collection {
	return s.coll
}

// ServicePath returns the collection's service path.
func (s *Service) ServicePath() string {
	return s.coll.ServicePath()
}

// Options returns the service options.
func (s *Service) Options() Options {
	return s.opts
}

// call runs fn as one tracked remote call for verb. ids, when given, are
// marked pending for id-scoped verbs for the duration of the call.
func (s *Service) call(ctx context.Context, verb cache.Verb, ids []any, fn func() error) error {
	s.coll.SetPending(verb)
	if len(ids) > 0 {
		s.coll.SetIDPending(verb, ids...)
	}
	defer func() {
		if len(ids) > 0 {
			s.coll.UnsetIDPending(verb, ids...)
		}
		s.coll.UnsetPending(verb)
	}()
	start := time.Now()

	err := fn()

	s.metrics.Observe(ctx, s.ServicePath()+"."+string(verb), err == nil, time.Since(start))
	if err != nil {
		s.coll.SetError(verb, err)
		s.log.Debug("remote call failed",
			"service", s.ServicePath(),
			"verb", string(verb),
			"error", err,
		)
		return err
	}
	s.coll.ClearError(verb)
	return nil
}
