package cache

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/roach88/svcstore/internal/ir"
)

// index maps keys to records and iterates in a stable order: keys that
// look like array indexes ("0", "17") ascending numerically, then every
// other key in first-insertion order. Replacing an entry keeps its slot.
type index struct {
	items map[string]ir.Record
	seq   map[string]uint64
	next  uint64
}

func newIndex() *index {
	return &index{
		items: map[string]ir.Record{},
		seq:   map[string]uint64{},
	}
}

func (x *index) get(k string) (ir.Record, bool) {
	r, ok := x.items[k]
	return r, ok
}

func (x *index) set(k string, r ir.Record) {
	if _, ok := x.seq[k]; !ok {
		x.next++
		x.seq[k] = x.next
	}
	x.items[k] = r
}

func (x *index) del(k string) bool {
	if _, ok := x.items[k]; !ok {
		return false
	}
	delete(x.items, k)
	delete(x.seq, k)
	return true
}

func (x *index) len() int {
	return len(x.items)
}

func (x *index) reset() {
	x.items = map[string]ir.Record{}
	x.seq = map[string]uint64{}
}

func (x *index) keys() []string {
	keys := make([]string, 0, len(x.items))
	for k := range x.items {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		an, aIdx := arrayIndex(a)
		bn, bIdx := arrayIndex(b)
		switch {
		case aIdx && bIdx:
			return cmp.Compare(an, bn)
		case aIdx:
			return -1
		case bIdx:
			return 1
		default:
			return cmp.Compare(x.seq[a], x.seq[b])
		}
	})
	return keys
}

func (x *index) values() []ir.Record {
	keys := x.keys()
	out := make([]ir.Record, len(keys))
	for i, k := range keys {
		out[i] = x.items[k]
	}
	return out
}

// snapshot returns a deep copy of the key to record map.
func (x *index) snapshot() map[string]ir.Record {
	out := make(map[string]ir.Record, len(x.items))
	for k, v := range x.items {
		out[k] = ir.CloneRecord(v)
	}
	return out
}

func arrayIndex(k string) (uint64, bool) {
	if k == "" || (len(k) > 1 && k[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(k, 10, 32)
	if err != nil || n == 1<<32-1 {
		return 0, false
	}
	return n, true
}
