package events

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/service"
	"github.com/roach88/svcstore/internal/transport"
	"github.com/roach88/svcstore/internal/transport/memory"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	path   string
	accept bool

	mu  sync.Mutex
	got []transport.Event
}

func (h *recordingHandler) ServicePath() string { return h.path }

func (h *recordingHandler) HandleEvent(ev transport.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, ev)
	return h.accept
}

func (h *recordingHandler) events() []transport.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]transport.Event(nil), h.got...)
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	for _, id := range []int{1, 2, 3} {
		require.True(t, q.enqueue(transport.Event{Data: ir.Record{"id": id}}))
	}

	for _, want := range []int{1, 2, 3} {
		ev, ok := q.tryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, ev.Data["id"])
	}
	_, ok := q.tryDequeue()
	assert.False(t, ok)
}

func TestQueueClosed(t *testing.T) {
	q := newQueue()
	q.close()
	q.close()

	assert.False(t, q.enqueue(transport.Event{}))
	_, open := <-q.wait()
	assert.False(t, open)
}

func TestLoopDispatchesInOrder(t *testing.T) {
	h := &recordingHandler{path: "todos", accept: true}
	l := New(WithLogger(quiet()))
	l.Register(h)

	for i := 0; i < 5; i++ {
		l.Enqueue(transport.Event{Service: "todos", Name: transport.EventPatched, Data: ir.Record{"id": i}})
	}
	l.Stop()
	require.NoError(t, l.Run(context.Background()))

	got := h.events()
	require.Len(t, got, 5)
	for i, ev := range got {
		assert.Equal(t, i, ev.Data["id"])
	}
	assert.Equal(t, Stats{Applied: 5}, l.Stats())
}

func TestLoopDropsUnroutableEvents(t *testing.T) {
	h := &recordingHandler{path: "todos", accept: false}
	var errs []error
	l := New(WithLogger(quiet()), WithErrorHandler(func(_ transport.Event, err error) {
		errs = append(errs, err)
	}))
	l.Register(h)

	l.Enqueue(transport.Event{Service: "users", Name: transport.EventCreated, Data: ir.Record{"id": 1}})
	l.Enqueue(transport.Event{Service: "todos", Name: "renamed", Data: ir.Record{"id": 1}})
	l.Enqueue(transport.Event{Service: "todos", Name: transport.EventCreated, Data: ir.Record{"id": 1}})
	l.Stop()
	require.NoError(t, l.Run(context.Background()))

	require.Len(t, errs, 3)
	assert.True(t, IsDispatchError(errs[0], ErrCodeUnknownService))
	assert.True(t, IsDispatchError(errs[1], ErrCodeInvalidEvent))
	assert.True(t, IsDispatchError(errs[2], ErrCodeIgnored))
	assert.Equal(t, Stats{Dropped: 3}, l.Stats())
}

func TestLoopStopsOnCancel(t *testing.T) {
	l := New(WithLogger(quiet()))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, l.Enqueue(transport.Event{}))
}

func TestLoopAppliesRemoteEventsToCollection(t *testing.T) {
	remote := memory.New(memory.Options{Name: "todos"})
	coll, err := cache.New(cache.Options{ServicePath: "todos"}, cache.WithLogger(quiet()))
	require.NoError(t, err)
	svc, err := service.New(coll, remote,
		service.WithOptions(service.Options{EnableEvents: true}),
		service.WithLogger(quiet()),
	)
	require.NoError(t, err)

	l := New(WithLogger(quiet()))
	l.Register(svc)
	cancel := l.Attach(remote)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = l.Run(ctx) }()

	_, err = remote.Create(ctx, ir.Record{"description": "from elsewhere"}, ir.Params{})
	require.NoError(t, err)
	_, err = remote.Patch(ctx, 0, ir.Record{"isComplete": true}, ir.Params{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return l.Stats().Applied == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, ir.Record{"id": 0, "description": "from elsewhere", "isComplete": true}, coll.Get(0, ir.Params{}))

	_, err = remote.Remove(ctx, 0, ir.Params{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Stats().Applied == 3 }, time.Second, time.Millisecond)
	assert.Empty(t, coll.IDs())
}
