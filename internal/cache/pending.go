package cache

import (
	"errors"
	"fmt"

	"github.com/roach88/svcstore/internal/ir"
)

// Verb is a CRUD verb tracked by the request lifecycle tracker.
type Verb string

const (
	VerbFind   Verb = "find"
	VerbGet    Verb = "get"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbPatch  Verb = "patch"
	VerbRemove Verb = "remove"
)

// Verbs lists every tracked verb.
var Verbs = []Verb{VerbFind, VerbGet, VerbCreate, VerbUpdate, VerbPatch, VerbRemove}

// IDScoped reports whether the verb tracks pending ids.
func (v Verb) IDScoped() bool {
	switch v {
	case VerbCreate, VerbUpdate, VerbPatch, VerbRemove:
		return true
	}
	return false
}

// ErrorState is a value copy of a failed request's error. It holds no
// reference to the original error.
type ErrorState struct {
	Name      string   `json:"name"`
	Message   string   `json:"message"`
	Code      int      `json:"code,omitempty"`
	ClassName string   `json:"className,omitempty"`
	Data      any      `json:"data,omitempty"`
	Stack     []string `json:"stack,omitempty"`
}

// Error implements error so a stored state can be returned or logged.
func (e *ErrorState) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// SerializeError copies err into an ErrorState. Errors may describe
// themselves further through ErrorName, StatusCode, ErrorClassName and
// ErrorData methods; Stack lists the messages of the wrapped chain.
func SerializeError(err error) *ErrorState {
	if err == nil {
		return nil
	}
	st := &ErrorState{Name: "Error", Message: err.Error()}

	var named interface{ ErrorName() string }
	if errors.As(err, &named) && named.ErrorName() != "" {
		st.Name = named.ErrorName()
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		st.Code = coded.StatusCode()
	}
	var classed interface{ ErrorClassName() string }
	if errors.As(err, &classed) {
		st.ClassName = classed.ErrorClassName()
	}
	var withData interface{ ErrorData() any }
	if errors.As(err, &withData) {
		st.Data = ir.Clone(withData.ErrorData())
	}
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		st.Stack = append(st.Stack, e.Error())
	}
	return st
}

type tracker struct {
	pending    map[Verb]bool
	pendingIDs map[Verb]map[string]any
	errs       map[Verb]*ErrorState
}

func newTracker() *tracker {
	t := &tracker{
		pending:    map[Verb]bool{},
		pendingIDs: map[Verb]map[string]any{},
		errs:       map[Verb]*ErrorState{},
	}
	for _, v := range Verbs {
		if v.IDScoped() {
			t.pendingIDs[v] = map[string]any{}
		}
	}
	return t
}

// SetPending marks verb as in flight.
func (c *Collection) SetPending(verb Verb) {
	c.setPending(verb, true)
}

// UnsetPending marks verb as idle.
func (c *Collection) UnsetPending(verb Verb) {
	c.setPending(verb, false)
}

func (c *Collection) setPending(verb Verb, on bool) {
	c.mu.Lock()
	c.pending.pending[verb] = on
	c.mu.Unlock()
	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangePending, Key: string(verb)})
}

// IsPending reports whether verb is in flight.
func (c *Collection) IsPending(verb Verb) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending.pending[verb]
}

// SetIDPending adds ids to the pending set of an id-scoped verb. Only
// string and numeric ids are tracked; duplicates collapse.
func (c *Collection) SetIDPending(verb Verb, ids ...any) {
	c.updateIDPending(verb, ids, true)
}

// UnsetIDPending removes ids from the pending set of an id-scoped verb.
func (c *Collection) UnsetIDPending(verb Verb, ids ...any) {
	c.updateIDPending(verb, ids, false)
}

func (c *Collection) updateIDPending(verb Verb, ids []any, on bool) {
	c.mu.Lock()
	set, ok := c.pending.pendingIDs[verb]
	if !ok {
		c.mu.Unlock()
		return
	}
	for _, id := range ids {
		if !trackableID(id) {
			continue
		}
		key := ir.MustKey(id)
		if _, dup := set[key]; on && !dup {
			set[key] = id
		} else if !on {
			delete(set, key)
		}
	}
	c.mu.Unlock()
	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangePending, Key: string(verb)})
}

func trackableID(id any) bool {
	if _, ok := id.(string); ok {
		return true
	}
	_, ok := ir.Number(id)
	return ok
}

// PendingIDs lists the ids pending for verb in key order.
func (c *Collection) PendingIDs(verb Verb) []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.pending.pendingIDs[verb]
	out := make([]any, 0, len(set))
	for _, k := range ir.SortedKeys(set) {
		out = append(out, set[k])
	}
	return out
}

// SetError records err as the last failure of verb.
func (c *Collection) SetError(verb Verb, err error) {
	st := SerializeError(err)
	c.mu.Lock()
	c.pending.errs[verb] = st
	c.mu.Unlock()
	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangePending, Key: string(verb)})
}

// ClearError forgets the last failure of verb.
func (c *Collection) ClearError(verb Verb) {
	c.mu.Lock()
	c.pending.errs[verb] = nil
	c.mu.Unlock()
	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangePending, Key: string(verb)})
}

// Error returns a copy of the last failure of verb, or nil.
func (c *Collection) Error(verb Verb) *ErrorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.pending.errs[verb]
	if st == nil {
		return nil
	}
	out := *st
	return &out
}

func (c *Collection) isIDPending(verb Verb, id any) bool {
	key, ok := ir.KeyOf(id)
	if !ok {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, pending := c.pending.pendingIDs[verb][key]
	return pending
}

// IsCreatePendingByID reports whether a create for id is in flight.
func (c *Collection) IsCreatePendingByID(id any) bool { return c.isIDPending(VerbCreate, id) }

// IsUpdatePendingByID reports whether an update for id is in flight.
func (c *Collection) IsUpdatePendingByID(id any) bool { return c.isIDPending(VerbUpdate, id) }

// IsPatchPendingByID reports whether a patch for id is in flight.
func (c *Collection) IsPatchPendingByID(id any) bool { return c.isIDPending(VerbPatch, id) }

// IsRemovePendingByID reports whether a remove for id is in flight.
func (c *Collection) IsRemovePendingByID(id any) bool { return c.isIDPending(VerbRemove, id) }

// IsSavePendingByID reports whether a create, update or patch for id is in
// flight.
func (c *Collection) IsSavePendingByID(id any) bool {
	return c.IsCreatePendingByID(id) || c.IsUpdatePendingByID(id) || c.IsPatchPendingByID(id)
}

// IsPendingByID reports whether any write for id is in flight.
func (c *Collection) IsPendingByID(id any) bool {
	return c.IsSavePendingByID(id) || c.IsRemovePendingByID(id)
}
