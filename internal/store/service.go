package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/query"
	"github.com/roach88/svcstore/internal/queryir"
	"github.com/roach88/svcstore/internal/querysql"
	"github.com/roach88/svcstore/internal/transport"
)

// ServiceOptions configures one service path of the store.
type ServiceOptions struct {
	Name     string
	IDField  string
	StartID  int
	Paginate *transport.Paginate
	// Whitelist extends the operators queries may use.
	Whitelist []string
	// Operators implements custom whitelisted operators. Queries using
	// them are evaluated in memory.
	Operators map[string]query.OperatorFunc
}

// Service serves one service path from the store. It implements
// transport.Service and emits an event after every write.
type Service struct {
	transport.Listeners

	store *Store
	opts  ServiceOptions
	log   *slog.Logger
}

// Service returns the service for opts.Name. A nil log uses the store's
// logger.
func (s *Store) Service(opts ServiceOptions, log *slog.Logger) *Service {
	if opts.IDField == "" {
		opts.IDField = ir.DefaultIDField
	}
	if log == nil {
		log = s.log
	}
	return &Service{store: s, opts: opts, log: log}
}

// Name returns the service path.
func (s *Service) Name() string {
	return s.opts.Name
}

// Find answers params.Query in SQL, or in memory when the query is
// outside the SQL fragment.
func (s *Service) Find(ctx context.Context, params ir.Params) (transport.Result, error) {
	pred, filters, err := queryir.FilterQuery(params.Query, queryir.Options{Operators: s.opts.Whitelist})
	if err != nil {
		return transport.Result{}, err
	}
	if p := s.opts.Paginate; p != nil {
		limit := p.Limit(filters.Limit)
		filters.Limit = &limit
	}

	res, err := s.findSQL(ctx, pred, filters)
	if errors.Is(err, querysql.ErrUnsupported) {
		s.log.Debug("query evaluated in memory", "service", s.opts.Name, "reason", err)
		res, err = s.findMemory(ctx, pred, filters)
	}
	if err != nil {
		return transport.Result{}, err
	}

	if fields := filters.Select; fields != nil {
		res.Data = query.Select(res.Data, fields, s.opts.IDField)
	}
	if s.opts.Paginate == nil {
		return ir.ListResult(res.Data), nil
	}
	return ir.PageResult(ir.Page{Total: res.Total, Limit: res.Limit, Skip: res.Skip, Data: res.Data}), nil
}

func (s *Service) findSQL(ctx context.Context, pred queryir.Predicate, filters queryir.Filters) (query.Result, error) {
	c := querysql.NewCompiler()
	sel, err := c.Select(s.opts.Name, pred, filters)
	if err != nil {
		return query.Result{}, err
	}
	count, err := c.Count(s.opts.Name, pred)
	if err != nil {
		return query.Result{}, err
	}

	data, err := s.store.Records(ctx, sel)
	if err != nil {
		return query.Result{}, err
	}
	total, err := s.store.Count(ctx, count)
	if err != nil {
		return query.Result{}, err
	}

	res := query.Result{Total: total, Data: data}
	if filters.Limit != nil {
		res.Limit = *filters.Limit
	}
	if filters.Skip != nil {
		res.Skip = *filters.Skip
	}
	return res, nil
}

func (s *Service) findMemory(ctx context.Context, pred queryir.Predicate, filters queryir.Filters) (query.Result, error) {
	m, err := query.NewMatcher(pred, query.WithOperators(s.opts.Operators))
	if err != nil {
		return query.Result{}, transport.BadRequest("%s", err.Error())
	}
	all, err := s.store.All(ctx, s.opts.Name)
	if err != nil {
		return query.Result{}, err
	}
	filters.Select = nil
	return query.Plan{Matcher: m, Filters: filters, IDField: s.opts.IDField}.Run(all), nil
}

// Get returns the record stored under id, projected by $select.
func (s *Service) Get(ctx context.Context, id any, params ir.Params) (ir.Record, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Lookup(ctx, s.opts.Name, key)
	if err != nil {
		return nil, err
	}
	if fields := queryir.SelectFields(params.Query); fields != nil {
		return query.SelectOne(r, fields, s.opts.IDField), nil
	}
	return r, nil
}

// Create stores data, assigning the next id when it has none.
func (s *Service) Create(ctx context.Context, data ir.Record, _ ir.Params) (ir.Record, error) {
	if data == nil {
		return nil, transport.BadRequest("create needs data")
	}
	r, err := s.store.Insert(ctx, s.opts.Name, s.opts.IDField, s.opts.StartID, ir.CloneRecord(data))
	if err != nil {
		return nil, err
	}
	s.emit(transport.EventCreated, r)
	return r, nil
}

// Update replaces the record stored under id. The id is kept.
func (s *Service) Update(ctx context.Context, id any, data ir.Record, _ ir.Params) (ir.Record, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Modify(ctx, s.opts.Name, key, func(old ir.Record) (ir.Record, error) {
		next := ir.CloneRecord(data)
		if next == nil {
			next = ir.Record{}
		}
		next[s.opts.IDField] = old[s.opts.IDField]
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(transport.EventUpdated, r)
	return r, nil
}

// Patch merges data into the record stored under id. The id is kept.
func (s *Service) Patch(ctx context.Context, id any, data ir.Record, _ ir.Params) (ir.Record, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Modify(ctx, s.opts.Name, key, func(old ir.Record) (ir.Record, error) {
		idValue := old[s.opts.IDField]
		ir.Merge(old, data)
		old[s.opts.IDField] = idValue
		return old, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(transport.EventPatched, r)
	return r, nil
}

// Remove deletes the record stored under id and returns it.
func (s *Service) Remove(ctx context.Context, id any, _ ir.Params) (ir.Record, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Delete(ctx, s.opts.Name, key)
	if err != nil {
		return nil, err
	}
	s.emit(transport.EventRemoved, r)
	return r, nil
}

// Seed inserts records without emitting events.
func (s *Service) Seed(ctx context.Context, records ...ir.Record) error {
	for _, r := range records {
		if _, err := s.store.Insert(ctx, s.opts.Name, s.opts.IDField, s.opts.StartID, ir.CloneRecord(r)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) key(id any) (string, error) {
	key, ok := ir.KeyOf(id)
	if !ok {
		return "", transport.BadRequest("invalid id %v", id)
	}
	return key, nil
}

func (s *Service) emit(name transport.EventName, r ir.Record) {
	s.Emit(transport.Event{Service: s.opts.Name, Name: name, Data: ir.CloneRecord(r)})
}
