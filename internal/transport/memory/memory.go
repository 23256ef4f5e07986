// Package memory is an in-process transport.Service over a map, evaluating
// queries with the same engine the cache uses.
package memory

import (
	"context"
	"sync"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/query"
	"github.com/roach88/svcstore/internal/queryir"
	"github.com/roach88/svcstore/internal/transport"
)

// Paginate configures server-side pagination.
type Paginate = transport.Paginate

// Options configures a Service.
type Options struct {
	// Name is the service path reported in events.
	Name string
	// IDField defaults to "id".
	IDField string
	// StartID is the first auto-assigned id.
	StartID int
	// Paginate enables paged find results. Nil returns bare lists.
	Paginate *Paginate
	// Whitelist and Operators extend the accepted query operators.
	Whitelist []string
	Operators map[string]query.OperatorFunc
}

// Service stores records in memory. Safe for concurrent use.
type Service struct {
	transport.Listeners

	mu      sync.Mutex
	opts    Options
	records map[string]ir.Record
	order   []string
	nextID  int
}

var _ transport.Service = (*Service)(nil)

// New creates an empty service.
func New(opts Options) *Service {
	if opts.IDField == "" {
		opts.IDField = ir.DefaultIDField
	}
	return &Service{
		opts:    opts,
		records: map[string]ir.Record{},
		nextID:  opts.StartID,
	}
}

// Seed inserts records without emitting events. Records without an id get
// one assigned.
func (s *Service) Seed(records ...ir.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.insertLocked(ir.CloneRecord(r))
	}
}

// Find evaluates params.Query over the stored records.
func (s *Service) Find(ctx context.Context, params ir.Params) (transport.Result, error) {
	if err := ctx.Err(); err != nil {
		return transport.Result{}, err
	}
	pred, filters, err := queryir.FilterQuery(params.Query, queryir.Options{Operators: s.opts.Whitelist})
	if err != nil {
		return transport.Result{}, err
	}
	m, err := query.NewMatcher(pred, query.WithOperators(s.opts.Operators))
	if err != nil {
		return transport.Result{}, transport.BadRequest("%s", err.Error())
	}

	if p := s.opts.Paginate; p != nil {
		limit := p.Limit(filters.Limit)
		filters.Limit = &limit
	}

	s.mu.Lock()
	res := query.Plan{Matcher: m, Filters: filters, IDField: s.opts.IDField}.Run(s.listLocked())
	data := ir.CloneRecords(res.Data)
	s.mu.Unlock()

	if s.opts.Paginate == nil {
		return ir.ListResult(data), nil
	}
	return ir.PageResult(ir.Page{Total: res.Total, Limit: res.Limit, Skip: res.Skip, Data: data}), nil
}

// Get returns the record stored under id, projected by $select.
func (s *Service) Get(ctx context.Context, id any, params ir.Params) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if fields := queryir.SelectFields(params.Query); fields != nil {
		return ir.CloneRecord(query.SelectOne(r, fields, s.opts.IDField)), nil
	}
	return ir.CloneRecord(r), nil
}

// Create stores data, assigning the next id when it has none.
func (s *Service) Create(ctx context.Context, data ir.Record, _ ir.Params) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, transport.BadRequest("create needs data")
	}
	s.mu.Lock()
	stored := s.insertLocked(ir.CloneRecord(data))
	out := ir.CloneRecord(stored)
	s.mu.Unlock()

	s.emit(transport.EventCreated, out)
	return out, nil
}

// Update replaces the record stored under id.
func (s *Service) Update(ctx context.Context, id any, data ir.Record, _ ir.Params) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	old, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next := ir.CloneRecord(data)
	if next == nil {
		next = ir.Record{}
	}
	next[s.opts.IDField] = old[s.opts.IDField]
	s.records[ir.MustKey(id)] = next
	out := ir.CloneRecord(next)
	s.mu.Unlock()

	s.emit(transport.EventUpdated, out)
	return out, nil
}

// Patch merges data into the record stored under id.
func (s *Service) Patch(ctx context.Context, id any, data ir.Record, _ ir.Params) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	r, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	idValue := r[s.opts.IDField]
	ir.Merge(r, data)
	r[s.opts.IDField] = idValue
	out := ir.CloneRecord(r)
	s.mu.Unlock()

	s.emit(transport.EventPatched, out)
	return out, nil
}

// Remove deletes the record stored under id and returns it.
func (s *Service) Remove(ctx context.Context, id any, _ ir.Params) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	r, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	key := ir.MustKey(id)
	delete(s.records, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.emit(transport.EventRemoved, r)
	return r, nil
}

// Len returns the number of stored records.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Service) insertLocked(r ir.Record) ir.Record {
	if r[s.opts.IDField] == nil {
		r[s.opts.IDField] = s.nextID
		s.nextID++
	} else if n, ok := ir.Int(r[s.opts.IDField]); ok && n >= s.nextID {
		s.nextID = n + 1
	}
	key := ir.MustKey(r[s.opts.IDField])
	if _, exists := s.records[key]; !exists {
		s.order = append(s.order, key)
	}
	s.records[key] = r
	return r
}

func (s *Service) lookupLocked(id any) (ir.Record, error) {
	key, ok := ir.KeyOf(id)
	if !ok {
		return nil, transport.BadRequest("an id is required")
	}
	r, found := s.records[key]
	if !found {
		return nil, transport.NotFound("No record found for id '%s'", key)
	}
	return r, nil
}

func (s *Service) listLocked() []ir.Record {
	out := make([]ir.Record, len(s.order))
	for i, k := range s.order {
		out[i] = s.records[k]
	}
	return out
}

func (s *Service) emit(name transport.EventName, data ir.Record) {
	s.Emit(transport.Event{Service: s.opts.Name, Name: name, Data: ir.CloneRecord(data)})
}
