package cache

import (
	"fmt"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/query"
	"github.com/roach88/svcstore/internal/queryir"
)

// Find evaluates params against the cache and returns one page.
//
// Candidates are the cached records, plus temps when params.Temps is set,
// with copies substituted for their records when params.Copies is set.
// ParamsForServer keys are dropped from the query before it is parsed.
// The page holds copies of the cached records.
func (c *Collection) Find(params ir.Params) (ir.Page, error) {
	plan, err := c.plan(params)
	if err != nil {
		return ir.Page{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	res := plan.Run(c.candidatesLocked(params.Temps, params.Copies))
	return ir.Page{Total: res.Total, Limit: res.Limit, Skip: res.Skip, Data: ir.CloneRecords(res.Data)}, nil
}

// Count returns how many records match params, ignoring pagination.
func (c *Collection) Count(params ir.Params) (int, error) {
	params.Query = queryir.Omit(params.Query, queryir.FilterKeys...)
	page, err := c.Find(params)
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

func (c *Collection) plan(params ir.Params) (query.Plan, error) {
	q := queryir.Omit(params.Query, c.opts.ParamsForServer...)
	pred, filters, err := queryir.FilterQuery(q, queryir.Options{Operators: c.opts.Whitelist})
	if err != nil {
		return query.Plan{}, fmt.Errorf("find %s: %w", c.opts.ServicePath, err)
	}
	m, err := query.NewMatcher(pred, query.WithOperators(c.opts.Operators))
	if err != nil {
		return query.Plan{}, fmt.Errorf("find %s: %w", c.opts.ServicePath, err)
	}
	return query.Plan{
		Matcher:  m,
		Filters:  filters,
		IDField:  c.opts.IDField,
		SortFunc: params.SortFunc,
	}, nil
}

func (c *Collection) candidatesLocked(temps, copies bool) []ir.Record {
	switch {
	case temps && copies:
		return c.itemsTempsAndClonesLocked()
	case temps:
		return append(c.keyed.values(), c.temps.values()...)
	case copies:
		return c.withCopiesLocked(c.keyed.values(), c.opts.IDField)
	default:
		return c.keyed.values()
	}
}

// withCopiesLocked substitutes each record's copy, found under the value
// of field, for the record.
func (c *Collection) withCopiesLocked(records []ir.Record, field string) []ir.Record {
	copies := c.copyIndex()
	out := make([]ir.Record, len(records))
	for i, r := range records {
		out[i] = r
		if key, ok := ir.KeyOf(r[field]); ok {
			if cp, found := copies.get(key); found {
				out[i] = cp
			}
		}
	}
	return out
}

func (c *Collection) itemsTempsAndClonesLocked() []ir.Record {
	copies := c.copyIndex()
	records := append(c.keyed.values(), c.temps.values()...)
	out := make([]ir.Record, len(records))
	for i, r := range records {
		out[i] = r
		id := r[c.opts.IDField]
		if id == nil {
			id = r[c.opts.TempIDField]
		}
		if key, ok := ir.KeyOf(id); ok {
			if cp, found := copies.get(key); found {
				out[i] = cp
			}
		}
	}
	return out
}

// Get returns a copy of the record or temp stored under id, projected by
// the query's $select, or nil when there is none.
func (c *Collection) Get(id any, params ir.Params) ir.Record {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil
	}
	fields := queryir.SelectFields(params.Query)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, found := c.keyed.get(key); found {
		if fields != nil {
			r = query.SelectOne(r, fields, c.opts.IDField)
		}
		return ir.CloneRecord(r)
	}
	if r, found := c.temps.get(key); found {
		if fields != nil {
			r = query.SelectOne(r, fields, c.opts.TempIDField)
		}
		return ir.CloneRecord(r)
	}
	return nil
}

// List returns copies of the cached records in key order.
func (c *Collection) List() []ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ir.CloneRecords(c.keyed.values())
}

// Temps returns copies of the temp records in key order.
func (c *Collection) Temps() []ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ir.CloneRecords(c.temps.values())
}

// IDs returns the keys of the cached records in key order.
func (c *Collection) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keyed.keys()
}

// KeyedByID returns a snapshot of the cached records keyed by id.
func (c *Collection) KeyedByID() map[string]ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keyed.snapshot()
}

// TempsByID returns a snapshot of the temp records keyed by temp id.
func (c *Collection) TempsByID() map[string]ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.temps.snapshot()
}

// ItemsAndTemps lists cached records followed by temps.
func (c *Collection) ItemsAndTemps() []ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ir.CloneRecords(c.candidatesLocked(true, false))
}

// ItemsAndClones lists cached records with copies substituted.
func (c *Collection) ItemsAndClones() []ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ir.CloneRecords(c.candidatesLocked(false, true))
}

// ItemsTempsAndClones lists cached records and temps with copies
// substituted. A record's copy is looked up by its id, or by its temp id
// when it has no id.
func (c *Collection) ItemsTempsAndClones() []ir.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ir.CloneRecords(c.candidatesLocked(true, true))
}
