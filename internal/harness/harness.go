package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/testutil"
)

// Clock settings for scenario runs: the first queriedAt is ClockStart and
// every reading advances it by ClockStep.
const (
	ClockStart int64 = 1_700_000_000_000
	ClockStep  int64 = 1_000
)

// TempIDPrefix prefixes the sequential temp ids of scenario runs.
const TempIDPrefix = "temp"

// Harness runs one scenario against a fresh collection.
type Harness struct {
	coll   *cache.Collection
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh collection with its own registry.
// Deterministic helpers ensure reproducible results.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coll, err := cache.New(scenario.Collection.CacheOptions(),
		cache.WithRegistry(cache.NewRegistry()),
		cache.WithTempIDs(testutil.NewSequentialIDs(TempIDPrefix)),
		cache.WithClock(testutil.NewDeterministicClock(ClockStart, ClockStep)),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	h := &Harness{coll: coll, logger: logger}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.runStep(i, step, result)
	}

	for _, msg := range EvaluateExpectations(coll, scenario.Expect) {
		result.AddError(msg)
	}

	state, err := Snapshot(coll)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	result.State = state
	return result, nil
}

// runStep executes one step, records it, and checks its error against the
// step's expected error.
func (h *Harness) runStep(index int, step Step, result *Result) {
	err := h.apply(step, index, result)

	trace := StepTrace{Index: index, Op: step.Op, ID: step.ID}
	if err != nil {
		trace.Error = err.Error()
	}
	result.Steps = append(result.Steps, trace)

	switch {
	case step.Error == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: %v", index, step.Op, err))
	case step.Error != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got none", index, step.Op, step.Error))
	case step.Error != "" && !strings.Contains(err.Error(), step.Error):
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got %q", index, step.Op, step.Error, err.Error()))
	}
}

func (h *Harness) apply(step Step, index int, result *Result) error {
	c := h.coll
	switch step.Op {
	case OpAdd:
		c.AddItems(ir.CloneRecords(step.Records))
	case OpUpdate:
		return c.UpdateItems(ir.CloneRecords(step.Records))
	case OpUpdateTemp:
		c.UpdateTemp(step.ID, step.TempID)
	case OpRemove:
		c.RemoveItem(step.ID)
	case OpClear:
		c.ClearAll()
	case OpCreateCopy:
		if _, err := c.CreateCopy(step.ID); err != nil {
			return err
		}
		if step.Set != nil {
			set := ir.CloneRecord(step.Set)
			if _, err := c.EditCopy(step.ID, func(cp ir.Record) { ir.Merge(cp, set) }); err != nil {
				return err
			}
		}
	case OpCommitCopy:
		return c.CommitCopy(step.ID)
	case OpResetCopy:
		return c.ResetCopy(step.ID)
	case OpClearCopy:
		c.ClearCopy(step.ID)
	case OpPaginate:
		return c.UpdatePaginationForQuery(step.Qid, step.Page.page(c.IDField()), step.Query)
	case OpFind:
		page, err := c.Find(ir.Params{Query: step.Query, Temps: step.Temps, Copies: step.Copies})
		if err != nil {
			return err
		}
		if step.Expect != nil {
			for _, msg := range checkFind(fmt.Sprintf("steps[%d] find", index), page, c.IDField(), step.Expect.Total, step.Expect.IDs) {
				result.AddError(msg)
			}
		}
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func (p *PageInput) page(idField string) ir.Page {
	data := make([]ir.Record, len(p.IDs))
	for i, id := range p.IDs {
		data[i] = ir.Record{idField: id}
	}
	return ir.Page{Total: p.Total, Limit: p.Limit, Skip: p.Skip, Data: data}
}

// Snapshot renders the collection's records, temps, copies and pagination
// ledger as generic JSON values keyed by id.
func Snapshot(coll *cache.Collection) (map[string]any, error) {
	pagination := map[string]any{}
	for _, qid := range coll.Qids() {
		pagination[qid] = coll.Pagination(qid)
	}
	state := map[string]any{
		"items":      coll.KeyedByID(),
		"temps":      coll.TempsByID(),
		"copies":     coll.CopiesByID(),
		"pagination": pagination,
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic map[string]any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return generic, nil
}
