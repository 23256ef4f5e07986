package metrics

import (
	"context"
	"time"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
)

// Service wraps a transport.Service and records every call as
// "<name>.<verb>". Events of the wrapped service pass through.
type Service struct {
	name  string
	inner transport.Service
	rec   *Recorder
}

var (
	_ transport.Service = (*Service)(nil)
	_ transport.Emitter = (*Service)(nil)
)

// Instrument wraps svc so its calls are recorded under name.
func (r *Recorder) Instrument(name string, svc transport.Service) *Service {
	return &Service{name: name, inner: svc, rec: r}
}

// On forwards to the wrapped service when it emits events.
func (s *Service) On(fn func(transport.Event)) (cancel func()) {
	if em, ok := s.inner.(transport.Emitter); ok {
		return em.On(fn)
	}
	return func() {}
}

func (s *Service) observe(ctx context.Context, verb string, start time.Time, err error) {
	s.rec.Observe(ctx, s.name+"."+verb, err == nil, time.Since(start))
}

func (s *Service) Find(ctx context.Context, params ir.Params) (res transport.Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "find", start, err) }(time.Now())
	return s.inner.Find(ctx, params)
}

func (s *Service) Get(ctx context.Context, id any, params ir.Params) (rec ir.Record, err error) {
	defer func(start time.Time) { s.observe(ctx, "get", start, err) }(time.Now())
	return s.inner.Get(ctx, id, params)
}

func (s *Service) Create(ctx context.Context, data ir.Record, params ir.Params) (rec ir.Record, err error) {
	defer func(start time.Time) { s.observe(ctx, "create", start, err) }(time.Now())
	return s.inner.Create(ctx, data, params)
}

func (s *Service) Update(ctx context.Context, id any, data ir.Record, params ir.Params) (rec ir.Record, err error) {
	defer func(start time.Time) { s.observe(ctx, "update", start, err) }(time.Now())
	return s.inner.Update(ctx, id, data, params)
}

func (s *Service) Patch(ctx context.Context, id any, data ir.Record, params ir.Params) (rec ir.Record, err error) {
	defer func(start time.Time) { s.observe(ctx, "patch", start, err) }(time.Now())
	return s.inner.Patch(ctx, id, data, params)
}

func (s *Service) Remove(ctx context.Context, id any, params ir.Params) (rec ir.Record, err error) {
	defer func(start time.Time) { s.observe(ctx, "remove", start, err) }(time.Now())
	return s.inner.Remove(ctx, id, params)
}
