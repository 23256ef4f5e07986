package service

import (
	"context"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
	"github.com/roach88/svcstore/internal/transport"
)

// Find queries the remote service and folds the result into the cache.
// The returned records are copies of the cached ones.
func (s *Service) Find(ctx context.Context, params ir.Params) (transport.Result, error) {
	var res transport.Result
	err := s.call(ctx, cache.VerbFind, nil, func() error {
		remote, err := s.remote.Find(ctx, params)
		if err != nil {
			return err
		}
		res, err = s.HandleFindResponse(ctx, params, remote)
		return err
	})
	if err != nil {
		return transport.Result{}, err
	}
	return res, nil
}

// HandleFindResponse stores a find result: records are added or updated,
// paginated results are recorded in the ledger under params' qid, and the
// result's records are swapped for the cached ones before AfterFind runs.
func (s *Service) HandleFindResponse(ctx context.Context, params ir.Params, res transport.Result) (transport.Result, error) {
	s.coll.AddOrUpdateList(res.Page.Data, res.Paginated)

	if res.Paginated {
		if err := s.coll.UpdatePaginationForQuery(params.QidOrDefault(), res.Page, params.Query); err != nil {
			return transport.Result{}, err
		}
	}
	res.Page.Data = s.fromCache(res.Page.Data)

	if s.opts.AfterFind != nil {
		return s.opts.AfterFind(ctx, res)
	}
	return res, nil
}

// fromCache maps records to their cached versions. Records without an id
// are returned as they are.
func (s *Service) fromCache(records []ir.Record) []ir.Record {
	out := make([]ir.Record, len(records))
	for i, r := range records {
		out[i] = r
		if id := r[s.coll.IDField()]; id != nil {
			if cached := s.coll.Get(id, ir.Params{}); cached != nil {
				out[i] = cached
			}
		}
	}
	return out
}

// Count asks the remote service for the number of matching records with
// a zero-length page.
func (s *Service) Count(ctx context.Context, params ir.Params) (int, error) {
	q := queryir.Omit(params.Query)
	q[queryir.KeyLimit] = 0
	res, err := s.Find(ctx, params.WithQuery(q))
	if err != nil {
		return 0, err
	}
	if res.Paginated {
		return res.Page.Total, nil
	}
	return len(res.Page.Data), nil
}

// Get fetches one record and stores it. With SkipRequestIfExists (on the
// collection or in params) a cached record is returned without a call.
func (s *Service) Get(ctx context.Context, id any, params ir.Params) (ir.Record, error) {
	if s.coll.Options().SkipRequestIfExists || params.SkipRequestIfExists {
		if cached := s.coll.Get(id, ir.Params{}); cached != nil {
			return cached, nil
		}
	}
	var out ir.Record
	err := s.call(ctx, cache.VerbGet, nil, func() error {
		r, err := s.remote.Get(ctx, id, params)
		if err != nil {
			return err
		}
		out = s.coll.AddOrUpdate(r)
		return nil
	})
	return out, err
}

// Create sends data to the remote service. When data is a temp record the
// temp is promoted to the id the server assigned.
func (s *Service) Create(ctx context.Context, data ir.Record, params ir.Params) (ir.Record, error) {
	tempID := data[s.coll.TempIDField()]
	var ids []any
	if tempID != nil {
		ids = []any{tempID}
	}

	var out ir.Record
	err := s.call(ctx, cache.VerbCreate, ids, func() error {
		r, err := s.remote.Create(ctx, s.cleanData(data), params)
		if err != nil {
			return err
		}
		if tempID != nil {
			if id := r[s.coll.IDField()]; id != nil {
				s.coll.UpdateTemp(id, tempID)
			}
		}
		out = s.coll.AddOrUpdate(r)
		if tempID != nil {
			s.coll.RemoveTemps([]any{tempID})
		}
		return nil
	})
	return out, err
}

// CreateMany creates each record in turn and stops at the first failure,
// returning the records created so far.
func (s *Service) CreateMany(ctx context.Context, items []ir.Record, params ir.Params) ([]ir.Record, error) {
	out := make([]ir.Record, 0, len(items))
	for _, item := range items {
		r, err := s.Create(ctx, item, params)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Update replaces the remote record and stores the server's version.
func (s *Service) Update(ctx context.Context, id any, data ir.Record, params ir.Params) (ir.Record, error) {
	var out ir.Record
	err := s.call(ctx, cache.VerbUpdate, []any{id}, func() error {
		r, err := s.remote.Update(ctx, id, s.cleanData(data), params)
		if err != nil {
			return err
		}
		out = s.coll.AddOrUpdate(r)
		return nil
	})
	return out, err
}

// Patch merges data into the remote record and stores the server's
// version. params.Data, when set, is sent instead of data.
func (s *Service) Patch(ctx context.Context, id any, data ir.Record, params ir.Params) (ir.Record, error) {
	if params.Data != nil {
		data = params.Data
	}
	var out ir.Record
	err := s.call(ctx, cache.VerbPatch, []any{id}, func() error {
		r, err := s.remote.Patch(ctx, id, s.cleanData(data), params)
		if err != nil {
			return err
		}
		out = s.coll.AddOrUpdate(r)
		return nil
	})
	return out, err
}

// Remove deletes the remote record and drops it from the cache.
func (s *Service) Remove(ctx context.Context, id any, params ir.Params) (ir.Record, error) {
	var out ir.Record
	err := s.call(ctx, cache.VerbRemove, []any{id}, func() error {
		r, err := s.remote.Remove(ctx, id, params)
		if err != nil {
			return err
		}
		s.coll.RemoveItem(id)
		out = r
		return nil
	})
	return out, err
}

// cleanData copies a payload without the local temp bookkeeping fields.
func (s *Service) cleanData(data ir.Record) ir.Record {
	if data == nil {
		return nil
	}
	out := ir.CloneRecord(data)
	delete(out, s.coll.TempIDField())
	delete(out, ir.TempFlag)
	return out
}
