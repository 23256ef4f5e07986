package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestService opens a store and seeds a service with records.
func createTestService(t *testing.T, opts ServiceOptions, records ...ir.Record) *Service {
	t.Helper()
	svc := createTestStore(t).Service(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := svc.Seed(context.Background(), records...); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return svc
}

// documents is a dataset exercising arrays, nesting, nulls and missing
// fields.
func documents() []ir.Record {
	return []ir.Record{
		{"id": 0, "description": "Do the first", "isComplete": false, "priority": 1,
			"tags": []any{"a", "b"}, "owner": "ann", "meta": map[string]any{"score": 0.5},
			"items": []any{map[string]any{"qty": 1}, map[string]any{"qty": 5}}},
		{"id": 1, "description": "Do the second", "isComplete": true, "priority": 3,
			"tags": []any{"b"}, "owner": nil, "meta": map[string]any{"score": 2}},
		{"id": 2, "description": "Do the third", "isComplete": false, "priority": 2.5,
			"tags": []any{}, "items": []any{map[string]any{"qty": 2}}},
		{"id": 3, "description": "do the fourth", "isComplete": true, "priority": 2,
			"tags": []any{"a", "c", "b"}, "owner": "bob", "meta": map[string]any{"score": 1.5}},
		{"id": 4, "description": "Do the fifth", "isComplete": false,
			"owner": "ann", "items": []any{map[string]any{"qty": 3}, "loose"}},
		{"id": 5, "description": "Do the sixth", "isComplete": true, "priority": 3,
			"tags": []any{"c"}, "meta": map[string]any{}},
	}
}

type recordedEvents struct {
	got []transport.Event
}

func (r *recordedEvents) names() []transport.EventName {
	out := make([]transport.EventName, len(r.got))
	for i, ev := range r.got {
		out[i] = ev.Name
	}
	return out
}
