package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/testutil"
	"github.com/roach88/svcstore/internal/transport"
	"github.com/roach88/svcstore/internal/transport/memory"
)

// remote wraps the memory service so tests can fail or hold calls.
type remote struct {
	*memory.Service

	mu    sync.Mutex
	fail  map[string]error
	gate  chan struct{}
	calls map[string]int
}

func newRemote(opts memory.Options) *remote {
	return &remote{
		Service: memory.New(opts),
		fail:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (r *remote) before(ctx context.Context, verb string) error {
	r.mu.Lock()
	r.calls[verb]++
	gate := r.gate
	err := r.fail[verb]
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (r *remote) failWith(verb string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[verb] = err
}

func (r *remote) hold() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = make(chan struct{})
	return r.gate
}

func (r *remote) count(verb string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[verb]
}

func (r *remote) Find(ctx context.Context, p ir.Params) (transport.Result, error) {
	if err := r.before(ctx, "find"); err != nil {
		return transport.Result{}, err
	}
	return r.Service.Find(ctx, p)
}

func (r *remote) Get(ctx context.Context, id any, p ir.Params) (ir.Record, error) {
	if err := r.before(ctx, "get"); err != nil {
		return nil, err
	}
	return r.Service.Get(ctx, id, p)
}

func (r *remote) Create(ctx context.Context, d ir.Record, p ir.Params) (ir.Record, error) {
	if err := r.before(ctx, "create"); err != nil {
		return nil, err
	}
	return r.Service.Create(ctx, d, p)
}

func (r *remote) Patch(ctx context.Context, id any, d ir.Record, p ir.Params) (ir.Record, error) {
	if err := r.before(ctx, "patch"); err != nil {
		return nil, err
	}
	return r.Service.Patch(ctx, id, d, p)
}

func (r *remote) Remove(ctx context.Context, id any, p ir.Params) (ir.Record, error) {
	if err := r.before(ctx, "remove"); err != nil {
		return nil, err
	}
	return r.Service.Remove(ctx, id, p)
}

type fixture struct {
	svc    *Service
	coll   *cache.Collection
	remote *remote
}

func newFixture(t *testing.T, copts cache.Options, mopts memory.Options, opts ...Option) fixture {
	t.Helper()
	if copts.ServicePath == "" {
		copts.ServicePath = "todos"
	}
	mopts.Name = copts.ServicePath
	coll, err := cache.New(copts,
		cache.WithTempIDs(cache.NewFixedGenerator("t1", "t2", "t3")),
		cache.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	r := newRemote(mopts)
	r.Seed(testutil.Todos()...)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	svc, err := New(coll, r, opts...)
	require.NoError(t, err)
	return fixture{svc: svc, coll: coll, remote: r}
}

func TestNewRequiresCollaborators(t *testing.T) {
	coll, err := cache.New(cache.Options{ServicePath: "todos"})
	require.NoError(t, err)

	_, err = New(coll, nil)
	assert.ErrorIs(t, err, ErrNoTransport)
	_, err = New(nil, memory.New(memory.Options{}))
	assert.ErrorIs(t, err, ErrNoCollection)
}

func TestFindStoresRecordsAndPagination(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{Paginate: &memory.Paginate{Default: 10, Max: 50}})
	ctx := context.Background()

	res, err := f.svc.Find(ctx, ir.Params{Query: map[string]any{"$limit": 1, "$skip": 8}})
	require.NoError(t, err)

	require.Len(t, res.Page.Data, 1)
	assert.Equal(t, "Do the ninth", res.Page.Data[0]["description"])
	assert.Equal(t, []string{"8"}, f.coll.IDs())
	assertRecordEqual(t, f.coll.Get(8, ir.Params{}), res.Page.Data[0])

	p := f.coll.Pagination("default")
	require.NotNil(t, p)
	assert.Equal(t, `{"$limit":1,"$skip":8}`, p.MostRecent.PageID)
	assert.Equal(t, 10, p.MostRecent.Total)
	assert.False(t, f.coll.IsPending(cache.VerbFind))
}

func TestFindUnpaginatedAutoRemove(t *testing.T) {
	f := newFixture(t, cache.Options{AutoRemove: true}, memory.Options{})
	ctx := context.Background()
	f.coll.AddItem(ir.Record{"id": 99, "description": "gone on the server"})

	_, err := f.svc.Find(ctx, ir.Params{})
	require.NoError(t, err)

	assert.Len(t, f.coll.IDs(), 10)
	assert.Nil(t, f.coll.Get(99, ir.Params{}))
	assert.Nil(t, f.coll.Pagination("default"))
}

func TestAfterFind(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{}, WithOptions(Options{
		AfterFind: func(_ context.Context, res transport.Result) (transport.Result, error) {
			res.Page.Data = res.Page.Data[:1]
			return res, nil
		},
	}))

	res, err := f.svc.Find(context.Background(), ir.Params{})
	require.NoError(t, err)

	assert.Len(t, res.Page.Data, 1)
	assert.Len(t, f.coll.IDs(), 10)
}

func TestFindFailure(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	boom := transport.GeneralError("database offline")
	f.remote.failWith("find", boom)

	_, err := f.svc.Find(context.Background(), ir.Params{})

	assert.ErrorIs(t, err, boom)
	assert.False(t, f.coll.IsPending(cache.VerbFind))
	st := f.coll.Error(cache.VerbFind)
	require.NotNil(t, st)
	assert.Equal(t, "GeneralError", st.Name)
	assert.Equal(t, 500, st.Code)
}

func TestCount(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{Paginate: &memory.Paginate{Default: 2}})

	n, err := f.svc.Count(context.Background(), ir.Params{Query: map[string]any{"id": map[string]any{"$gte": 4}}})
	require.NoError(t, err)

	assert.Equal(t, 6, n)
	assert.Empty(t, f.coll.IDs())
}

func TestGet(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	ctx := context.Background()

	r, err := f.svc.Get(ctx, 3, ir.Params{})
	require.NoError(t, err)
	assert.Equal(t, "Do the fourth", r["description"])
	assertRecordEqual(t, r, f.coll.Get(3, ir.Params{}))

	_, err = f.svc.Get(ctx, 42, ir.Params{})
	assert.True(t, transport.IsNotFound(err))
	assert.Equal(t, "No record found for id '42'", f.coll.Error(cache.VerbGet).Message)
}

func TestGetSkipRequestIfExists(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	ctx := context.Background()
	f.coll.AddItem(ir.Record{"id": 3, "description": "cached"})

	r, err := f.svc.Get(ctx, 3, ir.Params{SkipRequestIfExists: true})
	require.NoError(t, err)
	assert.Equal(t, "cached", r["description"])
	assert.Equal(t, 0, f.remote.count("get"))

	_, err = f.svc.Get(ctx, 4, ir.Params{SkipRequestIfExists: true})
	require.NoError(t, err)
	assert.Equal(t, 1, f.remote.count("get"))
}

func TestCreatePromotesTemp(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{StartID: 100})
	ctx := context.Background()
	temp := f.coll.AddItem(ir.Record{"description": "draft"})

	r, err := f.svc.Create(ctx, temp, ir.Params{})
	require.NoError(t, err)

	assert.Equal(t, 100, r["id"])
	assert.Empty(t, f.coll.Temps())
	promoted := f.coll.Get(100, ir.Params{})
	assertRecordEqual(t, promoted, r)
	assert.Equal(t, temp["__id"], promoted["__id"])
	assert.Equal(t, "draft", promoted["description"])
	assert.NotContains(t, promoted, ir.TempFlag)

	stored, err := f.remote.Service.Get(ctx, 100, ir.Params{})
	require.NoError(t, err)
	assert.NotContains(t, stored, "__id")
	assert.NotContains(t, stored, ir.TempFlag)
}

func TestCreatePendingUntilSettled(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	gate := f.remote.hold()
	temp := f.coll.AddItem(ir.Record{"description": "draft"})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Create(context.Background(), temp, ir.Params{})
		done <- err
	}()

	require.Eventually(t, func() bool { return f.remote.count("create") == 1 }, time.Second, time.Millisecond)
	assert.True(t, f.coll.IsPending(cache.VerbCreate))
	assert.True(t, f.coll.IsCreatePendingByID("t1"))

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, f.coll.IsPending(cache.VerbCreate))
	assert.False(t, f.coll.IsCreatePendingByID("t1"))
}

func TestCreateRacingCreatedEvent(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{StartID: 100}, WithOptions(Options{EnableEvents: true}))
	f.svc.Listen(f.remote)
	temp := f.coll.AddItem(ir.Record{"description": "draft"})

	// The memory service emits "created" before Create returns, so the
	// event lands first.
	r, err := f.svc.Create(context.Background(), temp, ir.Params{})
	require.NoError(t, err)

	assert.Equal(t, []string{"100"}, f.coll.IDs())
	assert.Empty(t, f.coll.Temps())
	assert.Equal(t, "draft", r["description"])
}

func TestCreateMany(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{StartID: 10})

	out, err := f.svc.CreateMany(context.Background(), []ir.Record{{"a": 1}, {"a": 2}}, ir.Params{})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, []string{"10", "11"}, f.coll.IDs())
}

func TestPatchUsesParamsData(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	ctx := context.Background()
	_, err := f.svc.Get(ctx, 1, ir.Params{})
	require.NoError(t, err)

	r, err := f.svc.Patch(ctx, 1, ir.Record{"description": "ignored"}, ir.Params{Data: ir.Record{"isComplete": true}})
	require.NoError(t, err)

	assert.Equal(t, true, r["isComplete"])
	assert.Equal(t, "Do the second", r["description"])
	assert.False(t, f.coll.IsPatchPendingByID(1))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, cache.Options{ReplaceItems: true}, memory.Options{})
	ctx := context.Background()
	_, err := f.svc.Get(ctx, 1, ir.Params{})
	require.NoError(t, err)

	r, err := f.svc.Update(ctx, 1, ir.Record{"description": "replaced"}, ir.Params{})
	require.NoError(t, err)

	assert.Equal(t, ir.Record{"id": 1, "description": "replaced"}, r)
	assert.Equal(t, r, f.coll.Get(1, ir.Params{}))
}

func TestRemove(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	ctx := context.Background()
	_, err := f.svc.Find(ctx, ir.Params{})
	require.NoError(t, err)

	_, err = f.svc.Remove(ctx, 0, ir.Params{})
	require.NoError(t, err)

	assert.Len(t, f.coll.IDs(), 9)
	assert.Nil(t, f.coll.Get(0, ir.Params{}))
}

func TestRemoveFailureKeepsRecords(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	ctx := context.Background()
	_, err := f.svc.Find(ctx, ir.Params{})
	require.NoError(t, err)
	boom := errors.New("remove failed")
	f.remote.failWith("remove", boom)

	_, err = f.svc.Remove(ctx, 0, ir.Params{})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, f.coll.IDs(), 10)
	st := f.coll.Error(cache.VerbRemove)
	require.NotNil(t, st)
	assert.Equal(t, "remove failed", st.Message)
	assert.False(t, f.coll.IsRemovePendingByID(0))
	assert.False(t, f.coll.IsPending(cache.VerbRemove))
}

func TestSuccessClearsPreviousError(t *testing.T) {
	f := newFixture(t, cache.Options{}, memory.Options{})
	ctx := context.Background()
	f.remote.failWith("find", errors.New("flaky"))
	_, err := f.svc.Find(ctx, ir.Params{})
	require.Error(t, err)

	f.remote.failWith("find", nil)
	_, err = f.svc.Find(ctx, ir.Params{})
	require.NoError(t, err)

	assert.Nil(t, f.coll.Error(cache.VerbFind))
}

type recorded struct {
	op      string
	success bool
}

type captureRecorder struct {
	mu  sync.Mutex
	got []recorded
}

func (c *captureRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, recorded{op, success})
}

func TestMetricsRecorder(t *testing.T) {
	rec := &captureRecorder{}
	f := newFixture(t, cache.Options{}, memory.Options{}, WithMetricsRecorder(rec))
	ctx := context.Background()

	_, _ = f.svc.Get(ctx, 1, ir.Params{})
	_, _ = f.svc.Get(ctx, 42, ir.Params{})

	assert.Equal(t, []recorded{{"todos.get", true}, {"todos.get", false}}, rec.got)
}

func assertRecordEqual(t *testing.T, want, got ir.Record) {
	t.Helper()
	require.NotNil(t, want)
	require.NotNil(t, got)
	assert.True(t, ir.Equal(want, got), "want %v, got %v", want, got)
}
