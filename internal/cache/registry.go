package cache

import (
	"fmt"
	"sync"

	"github.com/roach88/svcstore/internal/ir"
)

// Registry is the per-store directory of collections and of the copies
// kept outside them (KeepCopiesInStore=false).
//
// Create one Registry per top-level store and pass it to every collection
// with WithRegistry. Close tears it down with the store.
//
// Thread-safety: the registry's own maps are guarded by its mutex. A copy
// index is only ever touched by the collection that owns its service path,
// under that collection's lock.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	copies      map[string]*index
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: map[string]*Collection{},
		copies:      map[string]*index{},
	}
}

func (r *Registry) register(c *Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[c.opts.ServicePath]; exists {
		return fmt.Errorf("register %q: %w", c.opts.ServicePath, ErrDuplicateServicePath)
	}
	r.collections[c.opts.ServicePath] = c
	return nil
}

func (r *Registry) copyIndex(servicePath string) *index {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.copies[servicePath]
	if !ok {
		idx = newIndex()
		r.copies[servicePath] = idx
	}
	return idx
}

// Collection returns the collection registered under servicePath.
func (r *Registry) Collection(servicePath string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[servicePath]
	return c, ok
}

// ServicePaths lists the registered service paths in sorted order.
func (r *Registry) ServicePaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ir.SortedKeys(r.collections)
}

// Close forgets every collection and copy.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections = map[string]*Collection{}
	r.copies = map[string]*index{}
}
