package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is one page of a find result.
type Page struct {
	Total int      `json:"total"`
	Limit int      `json:"limit"`
	Skip  int      `json:"skip"`
	Data  []Record `json:"data"`
}

// FindResult is what a remote find returns: a Page when the service
// paginates, or a bare list when it does not.
type FindResult struct {
	Page      Page
	Paginated bool
}

// Records returns the result's records regardless of shape.
func (r FindResult) Records() []Record {
	return r.Page.Data
}

// ListResult wraps an unpaginated list.
func ListResult(records []Record) FindResult {
	return FindResult{Page: Page{Total: len(records), Data: records}}
}

// PageResult wraps a paginated page.
func PageResult(p Page) FindResult {
	return FindResult{Page: p, Paginated: true}
}

// MarshalJSON writes a page object or a bare array, matching the wire shape.
func (r FindResult) MarshalJSON() ([]byte, error) {
	if r.Paginated {
		return json.Marshal(r.Page)
	}
	data := r.Page.Data
	if data == nil {
		data = []Record{}
	}
	return json.Marshal(data)
}

// UnmarshalJSON accepts either a page object (detected by its "total" key)
// or a bare array.
func (r *FindResult) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty find result")
	}
	if trimmed[0] == '[' {
		var list []Record
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*r = ListResult(list)
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	if _, ok := fields["total"]; !ok {
		return fmt.Errorf("find result object has no total")
	}
	var p Page
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = PageResult(p)
	return nil
}
