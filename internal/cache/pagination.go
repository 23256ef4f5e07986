package cache

import (
	"fmt"
	"log/slog"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
)

// PageParams are the pagination parameters a page was fetched with.
type PageParams struct {
	Limit int `json:"$limit"`
	Skip  int `json:"$skip"`
}

// PageEntry records the ids of one fetched page.
type PageEntry struct {
	PageParams PageParams `json:"pageParams"`
	IDs        []any      `json:"ids"`
	QueriedAt  int64      `json:"queriedAt"`
}

// QueryEntry records one query signature and the pages fetched for it.
type QueryEntry struct {
	Total       int                   `json:"total"`
	QueryParams map[string]any        `json:"queryParams"`
	Pages       map[string]*PageEntry `json:"pages"`
}

// MostRecent points at the latest query and page recorded under a qid.
type MostRecent struct {
	Query       map[string]any `json:"query"`
	QueryID     string         `json:"queryId"`
	QueryParams map[string]any `json:"queryParams"`
	PageID      string         `json:"pageId"`
	PageParams  PageParams     `json:"pageParams"`
	QueriedAt   int64          `json:"queriedAt"`
	Total       int            `json:"total"`
}

// QidPagination is the ledger bucket of one qid.
type QidPagination struct {
	MostRecent *MostRecent            `json:"mostRecent"`
	Queries    map[string]*QueryEntry `json:"queries"`
}

type ledger struct {
	qids         map[string]*QidPagination
	defaultLimit *int
	defaultSkip  *int
}

func newLedger() *ledger {
	return &ledger{qids: map[string]*QidPagination{}}
}

// UpdatePaginationForQuery records a paginated find response under qid.
//
// The query signature is the canonical JSON of query without $limit and
// $skip; the page signature is the canonical JSON of {$limit, $skip},
// where the response's values win over the query's. The collection-wide
// defaults are captured from the first response whose query did not set
// them.
func (c *Collection) UpdatePaginationForQuery(qid string, resp ir.Page, q map[string]any) error {
	if qid == "" {
		qid = ir.DefaultQid
	}
	if q == nil {
		q = map[string]any{}
	}
	queryParams := queryir.Omit(q, queryir.KeyLimit, queryir.KeySkip)
	queryID, err := ir.CanonicalString(queryParams)
	if err != nil {
		return fmt.Errorf("pagination %s: query signature: %w", c.opts.ServicePath, err)
	}
	pageParams := PageParams{Limit: resp.Limit, Skip: resp.Skip}
	pageID, err := ir.CanonicalString(map[string]any{
		queryir.KeyLimit: pageParams.Limit,
		queryir.KeySkip:  pageParams.Skip,
	})
	if err != nil {
		return fmt.Errorf("pagination %s: page signature: %w", c.opts.ServicePath, err)
	}

	ids := make([]any, 0, len(resp.Data))
	for _, r := range resp.Data {
		ids = append(ids, r[c.opts.IDField])
	}
	queriedAt := c.clock.NowMillis()

	c.mu.Lock()
	l := c.ledger
	if _, ok := q[queryir.KeyLimit]; !ok && l.defaultLimit == nil {
		limit := resp.Limit
		l.defaultLimit = &limit
	}
	if _, ok := q[queryir.KeySkip]; !ok && l.defaultSkip == nil {
		skip := resp.Skip
		l.defaultSkip = &skip
	}

	bucket, ok := l.qids[qid]
	if !ok {
		bucket = &QidPagination{Queries: map[string]*QueryEntry{}}
		l.qids[qid] = bucket
	}
	bucket.MostRecent = &MostRecent{
		Query:       q,
		QueryID:     queryID,
		QueryParams: queryParams,
		PageID:      pageID,
		PageParams:  pageParams,
		QueriedAt:   queriedAt,
		Total:       resp.Total,
	}
	entry, ok := bucket.Queries[queryID]
	if !ok {
		entry = &QueryEntry{Pages: map[string]*PageEntry{}}
		bucket.Queries[queryID] = entry
	}
	entry.Total = resp.Total
	entry.QueryParams = queryParams
	entry.Pages[pageID] = &PageEntry{PageParams: pageParams, IDs: ids, QueriedAt: queriedAt}
	c.mu.Unlock()

	c.log.Debug("recorded page",
		slog.String("service", c.opts.ServicePath),
		slog.String("qid", qid),
		slog.String("query_id", queryID),
		slog.String("page_id", pageID),
		slog.Int("total", resp.Total),
	)
	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangePagination, Key: qid})
	return nil
}

// Pagination returns a copy of the ledger bucket for qid, or nil when
// nothing was recorded under it.
func (c *Collection) Pagination(qid string) *QidPagination {
	if qid == "" {
		qid = ir.DefaultQid
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	bucket, ok := c.ledger.qids[qid]
	if !ok {
		return nil
	}
	return bucket.clone()
}

// Qids lists the qids with recorded pages.
func (c *Collection) Qids() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ir.SortedKeys(c.ledger.qids)
}

// DefaultLimit returns the captured default page size.
func (c *Collection) DefaultLimit() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ledger.defaultLimit == nil {
		return 0, false
	}
	return *c.ledger.defaultLimit, true
}

// DefaultSkip returns the captured default skip.
func (c *Collection) DefaultSkip() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ledger.defaultSkip == nil {
		return 0, false
	}
	return *c.ledger.defaultSkip, true
}

// ClearPagination drops every ledger bucket. Captured defaults survive.
func (c *Collection) ClearPagination() {
	c.mu.Lock()
	c.ledger.qids = map[string]*QidPagination{}
	c.mu.Unlock()
	c.notify(Change{ServicePath: c.opts.ServicePath, Kind: ChangePagination, Whole: true})
}

func (b *QidPagination) clone() *QidPagination {
	out := &QidPagination{Queries: make(map[string]*QueryEntry, len(b.Queries))}
	if b.MostRecent != nil {
		mr := *b.MostRecent
		out.MostRecent = &mr
	}
	for id, entry := range b.Queries {
		e := &QueryEntry{
			Total:       entry.Total,
			QueryParams: entry.QueryParams,
			Pages:       make(map[string]*PageEntry, len(entry.Pages)),
		}
		for pid, page := range entry.Pages {
			p := *page
			p.IDs = append([]any(nil), page.IDs...)
			e.Pages[pid] = &p
		}
		out.Queries[id] = e
	}
	return out
}
