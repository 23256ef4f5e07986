package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
)

// ExpectationError is a failed expectation.
type ExpectationError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	return fmt.Sprintf("expectation failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateExpectations checks every expectation against coll and returns
// the failure messages.
func EvaluateExpectations(coll *cache.Collection, exps []Expectation) []string {
	var errs []string
	for i, e := range exps {
		for _, msg := range evaluate(coll, e) {
			errs = append(errs, fmt.Sprintf("expect[%d]: %s", i, msg))
		}
	}
	return errs
}

func evaluate(coll *cache.Collection, e Expectation) []string {
	switch e.Type {
	case ExpectFind:
		page, err := coll.Find(ir.Params{Query: e.Query, Temps: e.Temps, Copies: e.Copies})
		if err != nil {
			return []string{fmt.Sprintf("find: %v", err)}
		}
		return checkFind("find", page, coll.IDField(), e.Total, e.IDs)
	case ExpectRecord:
		return one(assertRecord(coll, e))
	case ExpectNoRecord:
		if r := coll.Get(e.ID, ir.Params{}); r != nil {
			return one(&ExpectationError{Type: e.Type, Expected: fmt.Sprintf("no record at %v", e.ID), Actual: render(r)})
		}
	case ExpectCopyEqualsRecord:
		return one(assertCopyEqualsRecord(coll, e))
	case ExpectTemps:
		if n := len(coll.Temps()); n != *e.Count {
			return one(&ExpectationError{Type: e.Type, Expected: fmt.Sprintf("%d temps", *e.Count), Actual: fmt.Sprintf("%d temps", n)})
		}
	default:
		return []string{fmt.Sprintf("unknown type %q", e.Type)}
	}
	return nil
}

func one(err error) []string {
	if err == nil {
		return nil
	}
	return []string{err.Error()}
}

// checkFind compares a page with the expected total and ids. Ids compare
// by key, so 3 and "3" are the same id.
func checkFind(label string, page ir.Page, idField string, total *int, ids []any) []string {
	var errs []string
	if total != nil && page.Total != *total {
		errs = append(errs, (&ExpectationError{
			Type:     label,
			Expected: fmt.Sprintf("total %d", *total),
			Actual:   fmt.Sprintf("total %d", page.Total),
		}).Error())
	}
	if ids != nil {
		want := keys(ids)
		got := make([]string, len(page.Data))
		for i, r := range page.Data {
			got[i] = ir.MustKey(r[idField])
		}
		if strings.Join(want, ",") != strings.Join(got, ",") {
			errs = append(errs, (&ExpectationError{
				Type:     label,
				Expected: fmt.Sprintf("ids [%s]", strings.Join(want, ", ")),
				Actual:   fmt.Sprintf("ids [%s]", strings.Join(got, ", ")),
			}).Error())
		}
	}
	return errs
}

// assertRecord checks the record at e.ID has e.Record's fields (subset
// match, compared as canonical JSON).
func assertRecord(coll *cache.Collection, e Expectation) error {
	r := coll.Get(e.ID, ir.Params{})
	if r == nil {
		return &ExpectationError{Type: e.Type, Expected: render(e.Record), Actual: fmt.Sprintf("no record at %v", e.ID)}
	}
	for field, want := range e.Record {
		got, ok := r[field]
		if !ok || !sameValue(got, want) {
			return &ExpectationError{
				Type:     e.Type,
				Expected: fmt.Sprintf("%s = %s", field, render(want)),
				Actual:   render(r),
			}
		}
	}
	return nil
}

func assertCopyEqualsRecord(coll *cache.Collection, e Expectation) error {
	cp := coll.GetCopyByID(e.ID)
	if cp == nil {
		return &ExpectationError{Type: e.Type, Expected: fmt.Sprintf("a copy of %v", e.ID), Actual: "no copy"}
	}
	src := coll.Get(e.ID, ir.Params{})
	if src == nil {
		return &ExpectationError{Type: e.Type, Expected: fmt.Sprintf("a record at %v", e.ID), Actual: "no record"}
	}
	if !sameValue(cp, src) {
		return &ExpectationError{Type: e.Type, Expected: render(src), Actual: render(cp)}
	}
	return nil
}

func sameValue(a, b any) bool {
	ca, errA := ir.CanonicalString(a)
	cb, errB := ir.CanonicalString(b)
	return errA == nil && errB == nil && ca == cb
}

func render(v any) string {
	s, err := ir.CanonicalString(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}

func keys(ids []any) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = ir.MustKey(id)
	}
	return out
}
