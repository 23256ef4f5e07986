package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mustParse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/temp_promotion.yaml")
	require.NoError(t, err)

	assert.Equal(t, "temp_promotion", s.Name)
	assert.Equal(t, "todos", s.Collection.Name)
	require.Len(t, s.Steps, 5)
	assert.Equal(t, OpAdd, s.Steps[0].Op)
	assert.Len(t, s.Steps[0].Records, 2)
	assert.Equal(t, 2, s.Steps[1].ID)
	assert.Equal(t, "temp-1", s.Steps[1].TempID)
	assert.Len(t, s.Expect, 4)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "name: x\nstep:\n  - op: clear\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_DefaultCollection(t *testing.T) {
	s := mustParse(t, "name: x\nsteps:\n  - op: clear\n")
	assert.Equal(t, "items", s.Collection.Name)
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "steps:\n  - op: clear\n", "name is required"},
		{"no steps", "name: x\n", "steps list is required"},
		{"missing op", "name: x\nsteps:\n  - id: 1\n", "steps[0]: op is required"},
		{"unknown op", "name: x\nsteps:\n  - op: explode\n", `unknown op "explode"`},
		{"add without records", "name: x\nsteps:\n  - op: add\n", "records are required"},
		{"update_temp without temp id", "name: x\nsteps:\n  - op: update_temp\n    id: 1\n", "id and temp_id are required"},
		{"remove without id", "name: x\nsteps:\n  - op: remove\n", "id is required for remove"},
		{"paginate without page", "name: x\nsteps:\n  - op: paginate\n", "page is required"},
		{"bad collection", "name: x\ncollection:\n  name: a/b\nsteps:\n  - op: clear\n", "collection:"},
		{"unknown expectation", "name: x\nsteps:\n  - op: clear\nexpect:\n  - type: vibes\n", `unknown type "vibes"`},
		{"record without fields", "name: x\nsteps:\n  - op: clear\nexpect:\n  - type: record\n    id: 1\n", "id and record are required"},
		{"temps without count", "name: x\nsteps:\n  - op: clear\nexpect:\n  - type: temps\n", "count is required"},
		{"find without outcome", "name: x\nsteps:\n  - op: clear\nexpect:\n  - type: find\n", "total or ids is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_TempPromotionGolden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/temp_promotion.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestRun_Pagination(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pagination.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Steps, 5)
	assert.Contains(t, result.Steps[4].Error, "record not found")

	pagination, ok := result.State["pagination"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, pagination, "list")
	items, ok := result.State["items"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestRun_ReportsFailures(t *testing.T) {
	s := mustParse(t, `
name: failing
steps:
  - op: add
    records: [{id: 1, n: 1}]
  - op: find
    expect: {total: 2}
  - op: commit_copy
    id: 1
    error: "stale"
  - op: create_copy
    id: 5
expect:
  - type: record
    id: 1
    record: {n: 2}
  - type: no_record
    id: 1
  - type: copy_equals_record
    id: 1
  - type: temps
    count: 3
  - type: find
    ids: [2]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	require.Len(t, result.Errors, 8)
	assert.Contains(t, result.Errors[0], "total 2")
	assert.Contains(t, result.Errors[1], `expected error containing "stale", got none`)
	assert.Contains(t, result.Errors[2], "steps[3] create_copy")
	assert.Contains(t, result.Errors[3], "expect[0]")
	assert.Contains(t, result.Errors[3], "n = 2")
	assert.Contains(t, result.Errors[4], "expect[1]")
	assert.Contains(t, result.Errors[5], "no copy")
	assert.Contains(t, result.Errors[6], "3 temps")
	assert.Contains(t, result.Errors[7], "ids [2]")
}

func TestRun_ModelDefaults(t *testing.T) {
	s := mustParse(t, `
name: model
collection:
  name: todos
  model:
    name: Todo
    defaults: {isComplete: false, tags: []}
steps:
  - op: add
    records: [{id: 1, description: "a"}, {id: 2, description: "b", isComplete: true}]
expect:
  - type: record
    id: 1
    record: {isComplete: false, tags: []}
  - type: find
    query: {isComplete: false}
    ids: [1]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestCanonicalIsStable(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/temp_promotion.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Canonical(s.Name, first)
	require.NoError(t, err)
	b, err := Canonical(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
