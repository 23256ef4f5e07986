package service

import (
	"context"
	"fmt"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
)

// Instance is a handle on one record of a model collection, exposing the
// save, clone and commit capabilities of the model variant.
//
// The handle owns a snapshot of the record (or of its copy, for a clone).
// Edits to Data stay local until Save or Commit; Refresh reloads it.
type Instance struct {
	svc   *Service
	data  ir.Record
	clone bool
}

// NewInstance adds data to a model collection and returns a handle on the
// stored record. Data without an id is stored as a temp.
func (s *Service) NewInstance(data ir.Record) (*Instance, error) {
	if !s.coll.IsModel() {
		return nil, ErrNotModel
	}
	if data == nil {
		data = ir.Record{}
	}
	return &Instance{svc: s, data: s.coll.AddItem(data)}, nil
}

// Instance returns a handle on the cached record or temp stored under id.
// A missing record yields cache.ErrRecordNotFound.
func (s *Service) Instance(id any) (*Instance, error) {
	if !s.coll.IsModel() {
		return nil, ErrNotModel
	}
	r := s.coll.Get(id, ir.Params{})
	if r == nil {
		return nil, fmt.Errorf("instance %s[%v]: %w", s.ServicePath(), id, cache.ErrRecordNotFound)
	}
	return &Instance{svc: s, data: r}, nil
}

// Data returns the handle's record.
func (i *Instance) Data() ir.Record {
	return i.data
}

// ID returns the record's id, or nil for a temp.
func (i *Instance) ID() any {
	return i.data[i.svc.coll.IDField()]
}

// key is the id, or the temp id for a temp.
func (i *Instance) key() any {
	if id := i.ID(); id != nil {
		return id
	}
	return i.data[i.svc.coll.TempIDField()]
}

// IsTemp reports whether the record has no id yet.
func (i *Instance) IsTemp() bool {
	return i.ID() == nil
}

// IsClone reports whether the handle points at a copy.
func (i *Instance) IsClone() bool {
	return i.clone
}

// Refresh reloads Data from the collection in place, so references to
// the map see the current values.
func (i *Instance) Refresh() error {
	var cur ir.Record
	if i.clone {
		cur = i.svc.coll.GetCopyByID(i.key())
	} else {
		cur = i.svc.coll.Get(i.key(), ir.Params{})
	}
	if cur == nil {
		return fmt.Errorf("refresh %s[%v]: %w", i.svc.ServicePath(), i.key(), cache.ErrRecordNotFound)
	}
	ir.Overwrite(i.data, cur)
	return nil
}

// Save creates a temp record, or updates (PreferUpdate) or patches one
// with an id. A clone is committed first so the canonical record is sent.
func (i *Instance) Save(ctx context.Context) (*Instance, error) {
	source := i.data
	if i.clone {
		committed, err := i.Commit()
		if err != nil {
			return nil, err
		}
		source = committed.data
	}

	var (
		r   ir.Record
		err error
	)
	switch {
	case source[i.svc.coll.IDField()] == nil:
		r, err = i.svc.Create(ctx, source, ir.Params{})
	case i.svc.opts.PreferUpdate:
		r, err = i.svc.Update(ctx, i.ID(), source, ir.Params{})
	default:
		r, err = i.svc.Patch(ctx, i.ID(), source, ir.Params{})
	}
	if err != nil {
		return nil, err
	}
	return &Instance{svc: i.svc, data: r}, nil
}

// Clone returns a handle on an editable copy of the record.
func (i *Instance) Clone() (*Instance, error) {
	cp, err := i.svc.coll.CreateCopy(i.key())
	if err != nil {
		return nil, err
	}
	return &Instance{svc: i.svc, data: cp, clone: true}, nil
}

// Commit stores a clone's Data as the copy, writes it to the canonical
// record and returns a handle on that record. On a non-clone it returns
// the instance itself.
func (i *Instance) Commit() (*Instance, error) {
	if !i.clone {
		return i, nil
	}
	edited := ir.CloneRecord(i.data)
	if _, err := i.svc.coll.EditCopy(i.key(), func(cp ir.Record) {
		ir.Overwrite(cp, edited)
	}); err != nil {
		return nil, err
	}
	if err := i.svc.coll.CommitCopy(i.key()); err != nil {
		return nil, err
	}
	r := i.svc.coll.Get(i.key(), ir.Params{})
	if r == nil {
		return nil, fmt.Errorf("commit %s[%v]: %w", i.svc.ServicePath(), i.key(), cache.ErrRecordNotFound)
	}
	return &Instance{svc: i.svc, data: r}, nil
}

// Reset discards a clone's edits, both in Data and in the stored copy.
func (i *Instance) Reset() error {
	if !i.clone {
		return nil
	}
	if err := i.svc.coll.ResetCopy(i.key()); err != nil {
		return err
	}
	return i.Refresh()
}

// Remove deletes the record remotely, or locally for a temp.
func (i *Instance) Remove(ctx context.Context) error {
	if i.IsTemp() {
		i.svc.coll.RemoveTemps([]any{i.key()})
		return nil
	}
	_, err := i.svc.Remove(ctx, i.ID(), ir.Params{})
	return err
}
