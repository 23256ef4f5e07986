package service

import (
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
)

// HandleEvent applies a real-time event to the collection and reports
// whether it was applied. Events are ignored unless EnableEvents is set,
// when they belong to another service, or when the kind's filter rejects
// the record.
func (s *Service) HandleEvent(ev transport.Event) bool {
	if !s.opts.EnableEvents || ev.Service != s.ServicePath() || ev.Data == nil {
		return false
	}
	if f := s.opts.HandleEvents.filter(ev.Name); f != nil && !f(ev.Data) {
		return false
	}

	switch ev.Name {
	case transport.EventCreated, transport.EventUpdated, transport.EventPatched:
		s.coll.AddOrUpdate(ir.CloneRecord(ev.Data))
	case transport.EventRemoved:
		if ev.Data[s.coll.IDField()] == nil {
			return false
		}
		s.coll.RemoveItem(ev.Data)
	default:
		return false
	}
	s.log.Debug("applied event",
		"service", ev.Service,
		"event", string(ev.Name),
		"id", ev.Data[s.coll.IDField()],
	)
	return true
}

// Listen subscribes HandleEvent to an emitting service.
func (s *Service) Listen(src transport.Emitter) (cancel func()) {
	return src.On(func(ev transport.Event) {
		s.HandleEvent(ev)
	})
}
