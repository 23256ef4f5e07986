package cache

import (
	"fmt"

	"github.com/roach88/svcstore/internal/ir"
)

// source returns the canonical record for a key: keyed records first,
// then temps. Callers must hold c.mu.
func (c *Collection) source(key string) (ir.Record, bool) {
	if r, ok := c.keyed.get(key); ok {
		return r, true
	}
	return c.temps.get(key)
}

// CreateCopy stores a deep clone of the record or temp stored under id as
// its copy and returns a snapshot of the copy. An existing copy is
// refreshed from the source. Edit the stored copy with EditCopy.
func (c *Collection) CreateCopy(id any) (ir.Record, error) {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil, fmt.Errorf("create copy: %w", ErrRecordNotFound)
	}

	c.mu.Lock()
	src, found := c.source(key)
	if !found {
		c.mu.Unlock()
		return nil, fmt.Errorf("create copy %s[%s]: %w", c.opts.ServicePath, key, ErrRecordNotFound)
	}
	copies := c.copyIndex()
	cp, exists := copies.get(key)
	if exists {
		ir.Overwrite(cp, ir.CloneRecord(src))
	} else {
		cp = c.wrap(ir.CloneRecord(src))
		copies.set(key, cp)
	}
	out := ir.CloneRecord(cp)
	c.mu.Unlock()

	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangeCopies, Key: key})
	return out, nil
}

// EditCopy runs edit on the copy stored under id while holding the
// collection lock and returns a snapshot of the result. The copy keeps
// its id and temp id. edit must not call back into the collection.
func (c *Collection) EditCopy(id any, edit func(cp ir.Record)) (ir.Record, error) {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil, fmt.Errorf("edit copy: %w", ErrRecordNotFound)
	}
	c.mu.Lock()
	cp, exists := c.copyIndex().get(key)
	if !exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("edit copy %s[%s]: %w", c.opts.ServicePath, key, ErrRecordNotFound)
	}
	kept := ir.Record{}
	for _, f := range []string{c.opts.IDField, c.opts.TempIDField} {
		if v, ok := cp[f]; ok {
			kept[f] = v
		}
	}
	edit(cp)
	for f, v := range kept {
		cp[f] = v
	}
	out := ir.CloneRecord(cp)
	c.mu.Unlock()

	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangeCopies, Key: key})
	return out, nil
}

// ResetCopy discards local edits: the copy is overwritten with the source
// record's current fields. Fails with ErrStaleCopy when the source is gone.
// Resetting an id without a copy does nothing.
func (c *Collection) ResetCopy(id any) error {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil
	}
	c.mu.Lock()
	cp, exists := c.copyIndex().get(key)
	if !exists {
		c.mu.Unlock()
		return nil
	}
	src, found := c.source(key)
	if !found {
		c.mu.Unlock()
		return staleCopy(c.opts.ServicePath, key)
	}
	ir.Overwrite(cp, ir.CloneRecord(src))
	c.mu.Unlock()

	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangeCopies, Key: key})
	return nil
}

// CommitCopy publishes local edits: the source record is overwritten with
// the copy's fields, keeping the source map's identity. Nothing is sent to
// the server. Fails with ErrStaleCopy when the source is gone.
func (c *Collection) CommitCopy(id any) error {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil
	}
	c.mu.Lock()
	cp, exists := c.copyIndex().get(key)
	if !exists {
		c.mu.Unlock()
		return nil
	}
	kind := ChangeItems
	src, found := c.keyed.get(key)
	if !found {
		src, found = c.temps.get(key)
		kind = ChangeTemps
	}
	if !found {
		c.mu.Unlock()
		return staleCopy(c.opts.ServicePath, key)
	}
	ir.Overwrite(src, ir.CloneRecord(cp))
	c.mu.Unlock()

	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: kind, Key: key})
	return nil
}

// ClearCopy discards the copy stored under id.
func (c *Collection) ClearCopy(id any) {
	key, ok := ir.KeyOf(id)
	if !ok {
		return
	}
	c.mu.Lock()
	removed := c.copyIndex().del(key)
	c.mu.Unlock()

	if removed {
		c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangeCopies, Key: key})
	}
}

// GetCopyByID returns a snapshot of the copy stored under id, or nil.
func (c *Collection) GetCopyByID(id any) ir.Record {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, found := c.copyIndex().get(key)
	if !found {
		return nil
	}
	return ir.CloneRecord(cp)
}

// Copies lists snapshots of the copies in key order.
func (c *Collection) Copies() []ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ir.CloneRecords(c.copyIndex().values())
}

// CopiesByID returns a snapshot of the copies keyed by id.
func (c *Collection) CopiesByID() map[string]ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyIndex().snapshot()
}
