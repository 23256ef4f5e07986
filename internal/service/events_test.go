package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
	"github.com/roach88/svcstore/internal/transport/memory"
)

func TestHandleEventDisabled(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})

	applied := f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventCreated, Data: ir.Record{"id": 1}})

	assert.False(t, applied)
	assert.Empty(t, f.coll.IDs())
}

func TestHandleEventKinds(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{}, WithOptions(Options{EnableEvents: true}))

	require.True(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventCreated, Data: ir.Record{"id": 1, "a": 1}}))
	require.True(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventPatched, Data: ir.Record{"id": 1, "b": 2}}))
	assert.Equal(t, ir.Record{"id": 1, "a": 1, "b": 2}, f.coll.Get(1, ir.Params{}))

	require.True(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventRemoved, Data: ir.Record{"id": 1}}))
	assert.Empty(t, f.coll.IDs())

	assert.False(t, f.svc.HandleEvent(transport.Event{Service: "other", Name: transport.EventCreated, Data: ir.Record{"id": 2}}))
	assert.False(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: "renamed", Data: ir.Record{"id": 2}}))
	assert.False(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventRemoved, Data: ir.Record{"x": 1}}))
	assert.Empty(t, f.coll.IDs())
}

func TestHandleEventFilters(t *testing.T) {
	onlyComplete := func(r ir.Record) bool { return r["isComplete"] == true }
	f := newFixture(t, cache.Options{}, memory.Options{}, WithOptions(Options{
		EnableEvents: true,
		HandleEvents: HandleEvents{Created: onlyComplete},
	}))

	assert.False(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventCreated, Data: ir.Record{"id": 1, "isComplete": false}}))
	assert.True(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventCreated, Data: ir.Record{"id": 2, "isComplete": true}}))
	assert.True(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventPatched, Data: ir.Record{"id": 3, "isComplete": false}}))

	assert.Equal(t, []string{"2", "3"}, f.coll.IDs())
}

func TestListenFollowsRemoteWrites(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{}, WithOptions(Options{EnableEvents: true}))
	ctx := context.Background()
	cancel := f.svc.Listen(f.remote)

	_, err := f.remote.Service.Patch(ctx, 2, ir.Record{"isComplete": true}, ir.Params{})
	require.NoError(t, err)
	assert.Equal(t, true, f.coll.Get(2, ir.Params{})["isComplete"])

	cancel()
	_, err = f.remote.Service.Patch(ctx, 3, ir.Record{"isComplete": true}, ir.Params{})
	require.NoError(t, err)
	assert.Nil(t, f.coll.Get(3, ir.Params{}))
}

func TestEventDataIsCloned(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{}, WithOptions(Options{EnableEvents: true}))
	data := ir.Record{"id": 1, "a": 1}

	require.True(t, f.svc.HandleEvent(transport.Event{Service: "todos", Name: transport.EventCreated, Data: data}))
	data["a"] = 2

	assert.Equal(t, 1, f.coll.Get(1, ir.Params{})["a"])
}
