package cache

import (
	"log/slog"

	"github.com/roach88/svcstore/internal/ir"
)

// AddItem adds one record. See AddItems.
func (c *Collection) AddItem(item ir.Record) ir.Record {
	out := c.AddItems([]ir.Record{item})
	if len(out) == 0 {
		return nil
	}
	return out[0]
}

// AddItems stores copies of records, overwriting any entry with the same
// key.
//
// A record with a value at the id field is stored under that id and loses
// any stale temp flag. When it still carries the temp id of a cached temp,
// that temp is dropped and its copy moves to the id, as in UpdateTemp. A
// record without an id is temporary: it keeps its temp id or is assigned a
// new one, is flagged, and is stored under the temp id. Returns copies of
// the stored records in input order.
func (c *Collection) AddItems(items []ir.Record) []ir.Record {
	c.mu.Lock()
	stored, keyed, temps, copies := c.addItemsLocked(items)
	stored = ir.CloneRecords(stored)
	c.mu.Unlock()

	var changes []Change
	if ch, ok := c.changeFor(ChangeItems, keyed); ok {
		changes = append(changes, ch)
	}
	if ch, ok := c.changeFor(ChangeTemps, temps); ok {
		changes = append(changes, ch)
	}
	if ch, ok := c.changeFor(ChangeCopies, copies); ok {
		changes = append(changes, ch)
	}
	c.notify(changes...)
	return stored
}

func (c *Collection) addItemsLocked(items []ir.Record) (stored []ir.Record, keyed, temps, copies []string) {
	stored = make([]ir.Record, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		item = ir.CloneRecord(item)
		id := item[c.opts.IDField]
		if id != nil {
			delete(item, ir.TempFlag)
		}
		item = c.wrap(item)

		if id == nil {
			tempID := item[c.opts.TempIDField]
			if tempID == nil {
				tempID = c.tempIDs.Generate()
				item[c.opts.TempIDField] = tempID
			}
			item[ir.TempFlag] = true
			key := ir.MustKey(tempID)
			c.temps.set(key, item)
			temps = appendUnique(temps, key)
		} else {
			key := ir.MustKey(id)
			tempKey, dropped, moved := c.releaseTempLocked(item, key, id)
			if dropped {
				temps = appendUnique(temps, tempKey)
			}
			if moved {
				copies = appendUnique(copies, key)
			}
			c.keyed.set(key, item)
			keyed = appendUnique(keyed, key)
		}
		stored = append(stored, item)
	}
	return stored, keyed, temps, copies
}

// UpdateItem updates one record. See UpdateItems.
func (c *Collection) UpdateItem(item ir.Record) {
	_ = c.UpdateItems([]ir.Record{item})
}

// UpdateItems applies server versions of records. The records are copied,
// never stored themselves.
//
// For a cached id the record is replaced (ReplaceItems) or deep-merged in
// place, which keeps fields absent from the update and the cached map
// itself. An id that is not cached is inserted only with AddOnUpsert;
// otherwise the update is dropped so evicted records are not resurrected.
// Records without an id are ignored. A nil list is a programming error.
func (c *Collection) UpdateItems(items []ir.Record) error {
	if items == nil {
		return ErrInvalidMutationInput
	}
	c.mu.Lock()
	touched, temps, copies := c.updateItemsLocked(items)
	c.mu.Unlock()

	var changes []Change
	if ch, ok := c.changeFor(ChangeItems, touched); ok {
		changes = append(changes, ch)
	}
	if ch, ok := c.changeFor(ChangeTemps, temps); ok {
		changes = append(changes, ch)
	}
	if ch, ok := c.changeFor(ChangeCopies, copies); ok {
		changes = append(changes, ch)
	}
	c.notify(changes...)
	return nil
}

func (c *Collection) updateItemsLocked(items []ir.Record) (touched, temps, copies []string) {
	for _, item := range items {
		if item == nil {
			continue
		}
		id := item[c.opts.IDField]
		if id == nil {
			continue
		}
		item = ir.CloneRecord(item)
		delete(item, ir.TempFlag)
		key := ir.MustKey(id)

		existing, ok := c.keyed.get(key)
		switch {
		case ok && c.opts.ReplaceItems:
			c.keyed.set(key, c.wrap(item))
		case ok:
			ir.Merge(existing, item)
		case c.opts.AddOnUpsert:
			c.keyed.set(key, c.wrap(item))
		default:
			continue
		}
		touched = appendUnique(touched, key)
		tempKey, dropped, moved := c.releaseTempLocked(item, key, id)
		if dropped {
			temps = appendUnique(temps, tempKey)
		}
		if moved {
			copies = appendUnique(copies, key)
		}
	}
	return touched, temps, copies
}

// UpdateTemp promotes the temp record stored under tempID to id.
//
// The temp record gets its real id, loses its temp flag and replaces
// whatever is keyed at id (a real-time created event may have inserted it
// first). A copy kept under tempID moves to id as well. Calling it again
// with the same arguments changes nothing.
func (c *Collection) UpdateTemp(id, tempID any) {
	key, ok := ir.KeyOf(id)
	if !ok {
		return
	}
	tempKey := ir.MustKey(tempID)

	var changes []Change
	c.mu.Lock()
	if temp, found := c.temps.get(tempKey); found {
		temp[c.opts.IDField] = id
		delete(temp, ir.TempFlag)
		c.temps.del(tempKey)
		c.keyed.set(key, temp)
		changes = append(changes,
			Change{ServicePath: c.opts.ServicePath, Kind: ChangeTemps, Key: tempKey},
			Change{ServicePath: c.opts.ServicePath, Kind: ChangeItems, Key: key},
		)
	}
	if c.moveCopyLocked(tempKey, key, id) {
		changes = append(changes, Change{ServicePath: c.opts.ServicePath, Kind: ChangeCopies, Key: key})
	}
	c.mu.Unlock()

	c.log.Debug("promoted temp record",
		slog.String("service", c.opts.ServicePath),
		slog.String("temp_id", tempKey),
		slog.String("id", key),
	)
	c.notify(changes...)
}

// releaseTempLocked drops the temp that a record carrying a real id was
// created from, found under the record's temp id, and moves its copy to
// key.
func (c *Collection) releaseTempLocked(item ir.Record, key string, id any) (tempKey string, dropped, moved bool) {
	tempKey, ok := ir.KeyOf(item[c.opts.TempIDField])
	if !ok {
		return "", false, false
	}
	dropped = c.temps.del(tempKey)
	moved = c.moveCopyLocked(tempKey, key, id)
	return tempKey, dropped, moved
}

// moveCopyLocked re-keys the copy stored under tempKey to key and gives it
// the real id.
func (c *Collection) moveCopyLocked(tempKey, key string, id any) bool {
	if tempKey == key {
		return false
	}
	copies := c.copyIndex()
	cp, found := copies.get(tempKey)
	if !found {
		return false
	}
	cp[c.opts.IDField] = id
	delete(cp, ir.TempFlag)
	copies.del(tempKey)
	copies.set(key, cp)
	return true
}

// RemoveItem deletes the record with the given id, or the id of the given
// record, together with its copy. A nil id is ignored.
func (c *Collection) RemoveItem(idOrRecord any) {
	id := c.idOf(idOrRecord)
	key, ok := ir.KeyOf(id)
	if !ok {
		return
	}
	c.mu.Lock()
	removed := c.removeLocked(key)
	c.mu.Unlock()

	if removed {
		c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangeItems, Key: key})
	}
}

// RemoveItems deletes several records by id or by record. Whether the list
// holds ids or records is decided by its first element. A nil list is a
// programming error.
func (c *Collection) RemoveItems(idsOrRecords []any) error {
	if idsOrRecords == nil {
		return ErrInvalidMutationInput
	}
	_, records := firstIsRecord(idsOrRecords)

	var touched []string
	c.mu.Lock()
	for _, v := range idsOrRecords {
		id := v
		if records {
			id = c.idOf(v)
		}
		key, ok := ir.KeyOf(id)
		if !ok {
			continue
		}
		if c.removeLocked(key) {
			touched = appendUnique(touched, key)
		}
	}
	c.mu.Unlock()

	if ch, ok := c.changeFor(ChangeItems, touched); ok {
		c.notify(ch)
	}
	return nil
}

// RemoveRecords is RemoveItems for a list of records.
func (c *Collection) RemoveRecords(records []ir.Record) error {
	if records == nil {
		return ErrInvalidMutationInput
	}
	items := make([]any, len(records))
	for i, r := range records {
		items[i] = r
	}
	return c.RemoveItems(items)
}

func (c *Collection) removeLocked(key string) bool {
	removed := c.keyed.del(key)
	if c.copyIndex().del(key) {
		removed = true
	}
	return removed
}

// RemoveTemps drops temp records by temp id.
func (c *Collection) RemoveTemps(tempIDs []any) {
	var touched []string
	c.mu.Lock()
	for _, tempID := range tempIDs {
		key, ok := ir.KeyOf(tempID)
		if !ok {
			continue
		}
		if temp, found := c.temps.get(key); found {
			if temp[c.opts.IDField] != nil {
				delete(temp, ir.TempFlag)
			}
			c.temps.del(key)
			touched = appendUnique(touched, key)
		}
	}
	c.mu.Unlock()

	if ch, ok := c.changeFor(ChangeTemps, touched); ok {
		c.notify(ch)
	}
}

// ClearAll empties records, temps and copies.
func (c *Collection) ClearAll() {
	c.mu.Lock()
	c.keyed.reset()
	c.temps.reset()
	c.copyIndex().reset()
	c.mu.Unlock()

	c.notify(
		Change{ServicePath: c.opts.ServicePath, Kind: ChangeItems, Whole: true},
		Change{ServicePath: c.opts.ServicePath, Kind: ChangeTemps, Whole: true},
		Change{ServicePath: c.opts.ServicePath, Kind: ChangeCopies, Whole: true},
	)
}

// Merge deep-assigns source onto dest in place. dest is a record the
// caller owns, such as one returned by a getter; cached records change
// through UpdateItems, MergeInstance and EditCopy.
func (c *Collection) Merge(dest, source ir.Record) {
	ir.Merge(dest, source)
}

// MergeInstance deep-assigns item onto the cached record with the same id.
// Unknown ids are ignored.
func (c *Collection) MergeInstance(item ir.Record) {
	key, ok := ir.KeyOf(item[c.opts.IDField])
	if !ok {
		return
	}
	c.mu.Lock()
	existing, found := c.keyed.get(key)
	if found {
		ir.Merge(existing, ir.CloneRecord(item))
	}
	c.mu.Unlock()

	if found {
		c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangeItems, Key: key})
	}
}

// AddOrUpdate stores a record returned by the server: updated when its id
// is cached, added otherwise. Returns a copy of the stored record. Records
// without an id are returned untouched and not stored.
func (c *Collection) AddOrUpdate(item ir.Record) ir.Record {
	key, ok := ir.KeyOf(item[c.opts.IDField])
	if !ok {
		return item
	}
	c.mu.RLock()
	_, found := c.keyed.get(key)
	c.mu.RUnlock()

	if !found {
		return c.AddItem(item)
	}
	c.UpdateItem(item)
	if cur := c.Get(key, ir.Params{}); cur != nil {
		return cur
	}
	return ir.CloneRecord(item)
}

// AddOrUpdateList stores the records of a find response. Records without
// an id are skipped. With AutoRemove, an unpaginated response is taken as
// the complete list and cached records missing from it are removed.
func (c *Collection) AddOrUpdateList(items []ir.Record, paginated bool) {
	var toAdd, toUpdate []ir.Record
	seen := map[string]bool{}

	c.mu.RLock()
	for _, item := range items {
		key, ok := ir.KeyOf(item[c.opts.IDField])
		if !ok {
			continue
		}
		seen[key] = true
		if _, found := c.keyed.get(key); found {
			toUpdate = append(toUpdate, item)
		} else {
			toAdd = append(toAdd, item)
		}
	}
	var toRemove []any
	if !paginated && c.opts.AutoRemove {
		for _, key := range c.keyed.keys() {
			if !seen[key] {
				toRemove = append(toRemove, key)
			}
		}
	}
	c.mu.RUnlock()

	if len(toRemove) > 0 {
		c.log.Debug("auto-removing records missing from list",
			slog.String("service", c.opts.ServicePath),
			slog.Int("count", len(toRemove)),
		)
		_ = c.RemoveItems(toRemove)
	}
	c.AddItems(toAdd)
	if toUpdate != nil {
		_ = c.UpdateItems(toUpdate)
	}
}

// idOf returns the id of a record, or v itself when it is not a record.
func (c *Collection) idOf(v any) any {
	if r, ok := v.(map[string]any); ok {
		return r[c.opts.IDField]
	}
	return v
}

func firstIsRecord(items []any) (any, bool) {
	if len(items) == 0 {
		return nil, false
	}
	_, ok := items[0].(map[string]any)
	return items[0], ok
}

func appendUnique(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
