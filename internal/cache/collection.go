package cache

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/svcstore/internal/ir"
)

// Collection is the cache for one remote service.
type Collection struct {
	mu sync.RWMutex

	opts     Options
	registry *Registry
	clock    Clock
	tempIDs  TempIDGenerator
	log      *slog.Logger

	keyed  *index
	temps  *index
	copies *index // only when KeepCopiesInStore

	ledger  *ledger
	pending *tracker

	subMu    sync.Mutex
	nextSub  int
	subs     map[int]func(Change)
	watchers map[int]watcher
}

type watcher struct {
	key string
	fn  func(Change)
}

// New creates a collection and registers it in its registry. Without
// WithRegistry the collection gets a private registry.
func New(opts Options, options ...Option) (*Collection, error) {
	if opts.ServicePath == "" {
		return nil, ErrMissingServicePath
	}
	c := &Collection{
		opts:     opts.withDefaults(),
		keyed:    newIndex(),
		temps:    newIndex(),
		ledger:   newLedger(),
		pending:  newTracker(),
		subs:     map[int]func(Change){},
		watchers: map[int]watcher{},
	}
	for _, opt := range options {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry()
	}
	if c.clock == nil {
		c.clock = WallClock{}
	}
	if c.tempIDs == nil {
		c.tempIDs = UUIDv7Generator{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.opts.KeepCopiesInStore {
		c.copies = newIndex()
	}
	if err := c.registry.register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Options returns the collection's configuration with defaults applied.
func (c *Collection) Options() Options {
	return c.opts
}

// ServicePath returns the collection's service path.
func (c *Collection) ServicePath() string {
	return c.opts.ServicePath
}

// IDField returns the real id field name.
func (c *Collection) IDField() string {
	return c.opts.IDField
}

// TempIDField returns the temp id field name.
func (c *Collection) TempIDField() string {
	return c.opts.TempIDField
}

// IsModel reports whether the collection uses the model-wrapped variant.
func (c *Collection) IsModel() bool {
	return c.opts.Model != nil
}

// Registry returns the registry the collection belongs to.
func (c *Collection) Registry() *Registry {
	return c.registry
}

// copyIndex returns the copy store. Callers must hold c.mu.
func (c *Collection) copyIndex() *index {
	if c.copies != nil {
		return c.copies
	}
	return c.registry.copyIndex(c.opts.ServicePath)
}

// wrap applies the model variant to a record entering the cache.
func (c *Collection) wrap(r ir.Record) ir.Record {
	m := c.opts.Model
	if m == nil {
		return r
	}
	if len(m.Defaults) > 0 {
		for k, v := range m.Defaults {
			if _, ok := r[k]; !ok {
				r[k] = ir.Clone(v)
			}
		}
	}
	if m.Setup != nil {
		if out := m.Setup(r); out != nil {
			r = out
		}
	}
	return r
}

// ChangeKind names the part of the collection a change touched.
type ChangeKind string

const (
	ChangeItems      ChangeKind = "items"
	ChangeTemps      ChangeKind = "temps"
	ChangeCopies     ChangeKind = "copies"
	ChangePagination ChangeKind = "pagination"
	ChangePending    ChangeKind = "pending"
)

// Change describes one mutation. Key is set when exactly one entry
// changed; Whole is set when the call touched many entries at once.
type Change struct {
	ServicePath string
	Kind        ChangeKind
	Key         string
	Whole       bool
}

// Subscribe registers fn for every change. The returned function cancels
// the subscription.
func (c *Collection) Subscribe(fn func(Change)) (cancel func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Watch registers fn for changes to the record, temp or copy stored under
// id, and for changes that replaced many entries in one call.
func (c *Collection) Watch(id any, fn func(Change)) (cancel func()) {
	key := ir.MustKey(id)
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	n := c.nextSub
	c.watchers[n] = watcher{key: key, fn: fn}
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.watchers, n)
	}
}

// changeFor builds the change for a set of touched keys, or false when
// nothing changed.
func (c *Collection) changeFor(kind ChangeKind, keys []string) (Change, bool) {
	switch len(keys) {
	case 0:
		return Change{}, false
	case 1:
		return Change{ServicePath: c.opts.ServicePath, Kind: kind, Key: keys[0]}, true
	default:
		return Change{ServicePath: c.opts.ServicePath, Kind: kind, Whole: true}, true
	}
}

// notify delivers changes. It must be called without c.mu held so that
// observers may read the collection.
func (c *Collection) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	c.subMu.Lock()
	subIDs := make([]int, 0, len(c.subs))
	for id := range c.subs {
		subIDs = append(subIDs, id)
	}
	slices.Sort(subIDs)
	subs := make([]func(Change), 0, len(subIDs))
	for _, id := range subIDs {
		subs = append(subs, c.subs[id])
	}
	watchIDs := make([]int, 0, len(c.watchers))
	for id := range c.watchers {
		watchIDs = append(watchIDs, id)
	}
	slices.Sort(watchIDs)
	watchers := make([]watcher, 0, len(watchIDs))
	for _, id := range watchIDs {
		watchers = append(watchers, c.watchers[id])
	}
	c.subMu.Unlock()

	for _, ch := range changes {
		for _, fn := range subs {
			fn(ch)
		}
		if ch.Kind == ChangePagination || ch.Kind == ChangePending {
			continue
		}
		for _, w := range watchers {
			if ch.Whole || ch.Key == w.key {
				w.fn(ch)
			}
		}
	}
}
