package query

import (
	"slices"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
)

// Result is one evaluated page.
type Result struct {
	// Total counts the matching records before pagination.
	Total int
	// Limit is the requested $limit, or 0 when none was given.
	Limit int
	// Skip is the requested $skip, or 0 when none was given.
	Skip int
	Data []ir.Record
}

// Plan bundles everything needed to evaluate one query locally.
type Plan struct {
	Matcher *Matcher
	Filters queryir.Filters
	IDField string
	// SortFunc, when set, replaces Filters.Sort.
	SortFunc func(a, b ir.Record) int
}

// Run filters, counts, sorts, paginates and projects candidates, in that
// order. The candidates slice is not modified.
func (p Plan) Run(candidates []ir.Record) Result {
	data := p.Matcher.Filter(candidates)
	total := len(data)

	switch {
	case p.SortFunc != nil:
		slices.SortStableFunc(data, p.SortFunc)
	case p.Filters.HasSort():
		SortRecords(data, p.Filters.Sort)
	}

	data = Paginate(data, p.Filters.Skip, p.Filters.Limit)

	if p.Filters.Select != nil {
		data = Select(data, p.Filters.Select, p.IDField)
	}

	res := Result{Total: total, Data: data}
	if p.Filters.Limit != nil {
		res.Limit = *p.Filters.Limit
	}
	if p.Filters.Skip != nil {
		res.Skip = *p.Filters.Skip
	}
	return res
}

// SortRecords stable-sorts records in place by the given keys.
func SortRecords(records []ir.Record, s queryir.Sort) {
	slices.SortStableFunc(records, Sorter(s))
}

// Sorter returns a comparison function for s. Equal keys compare as 0 so
// a stable sort keeps their original relative order.
func Sorter(s queryir.Sort) func(a, b ir.Record) int {
	return func(a, b ir.Record) int {
		for _, key := range s {
			av, aok := lookup(a, key.Field)
			bv, bok := lookup(b, key.Field)
			if c := compareValues(av, aok, bv, bok); c != 0 {
				return c * key.Dir
			}
		}
		return 0
	}
}

// Paginate slices records: [skip, skip+limit) when both are set, [skip:]
// or [:limit] when only one is. Bounds are clamped to the slice.
func Paginate(records []ir.Record, skip, limit *int) []ir.Record {
	start, end := 0, len(records)
	if skip != nil {
		start = min(*skip, len(records))
	}
	if limit != nil {
		end = min(start+*limit, len(records))
	}
	return records[start:end]
}

// Select projects each record onto fields plus idField.
func Select(records []ir.Record, fields []string, idField string) []ir.Record {
	out := make([]ir.Record, len(records))
	for i, r := range records {
		out[i] = SelectOne(r, fields, idField)
	}
	return out
}

// SelectOne projects a single record. Fields the record lacks are omitted.
// A nil record stays nil.
func SelectOne(r ir.Record, fields []string, idField string) ir.Record {
	if r == nil {
		return nil
	}
	out := make(ir.Record, len(fields)+1)
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	if v, ok := r[idField]; ok && idField != "" {
		out[idField] = v
	}
	return out
}
