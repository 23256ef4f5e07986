package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
)

var allOperators = queryir.Options{Operators: []string{
	"$eq", "$exists", "$regex", "$all", "$size", "$not", "$nor",
}}

func mustMatcher(t *testing.T, q map[string]any) *Matcher {
	t.Helper()
	pred, _, err := queryir.FilterQuery(q, allOperators)
	require.NoError(t, err)
	m, err := NewMatcher(pred)
	require.NoError(t, err)
	return m
}

func TestMatcher_Operators(t *testing.T) {
	doc := ir.Record{
		"id":     7,
		"name":   "Do the first",
		"score":  42.0,
		"tags":   []any{"home", "urgent"},
		"owner":  map[string]any{"name": "sam", "age": 30},
		"lines":  []any{map[string]any{"sku": "a", "qty": 1}, map[string]any{"sku": "b", "qty": 5}},
		"nobody": nil,
	}

	tests := []struct {
		name  string
		query map[string]any
		want  bool
	}{
		{"empty query", map[string]any{}, true},
		{"implicit eq", map[string]any{"id": 7}, true},
		{"implicit eq float vs int", map[string]any{"score": 42}, true},
		{"eq miss", map[string]any{"id": 8}, false},
		{"and across fields", map[string]any{"id": 7, "name": "Do the first"}, true},
		{"and one fails", map[string]any{"id": 7, "name": "other"}, false},
		{"array contains", map[string]any{"tags": "urgent"}, true},
		{"array equals", map[string]any{"tags": []any{"home", "urgent"}}, true},
		{"dot path", map[string]any{"owner.name": "sam"}, true},
		{"dot path across array", map[string]any{"lines.sku": "b"}, true},
		{"array index path", map[string]any{"lines.1.qty": 5}, true},
		{"missing equals null", map[string]any{"absent": nil}, true},
		{"null equals null", map[string]any{"nobody": nil}, true},
		{"present not null", map[string]any{"id": nil}, false},
		{"$ne", map[string]any{"id": map[string]any{"$ne": 8}}, true},
		{"$ne missing field", map[string]any{"absent": map[string]any{"$ne": 1}}, true},
		{"$gt", map[string]any{"score": map[string]any{"$gt": 40}}, true},
		{"$gte equal", map[string]any{"score": map[string]any{"$gte": 42}}, true},
		{"$lt", map[string]any{"score": map[string]any{"$lt": 42}}, false},
		{"$lte", map[string]any{"owner.age": map[string]any{"$lte": 30}}, true},
		{"range on array elements", map[string]any{"lines.qty": map[string]any{"$gt": 4}}, true},
		{"range across types", map[string]any{"name": map[string]any{"$gt": 1}}, false},
		{"string range", map[string]any{"name": map[string]any{"$gte": "Do"}}, true},
		{"$in", map[string]any{"id": map[string]any{"$in": []any{1, 7}}}, true},
		{"$in array field", map[string]any{"tags": map[string]any{"$in": []any{"work", "home"}}}, true},
		{"$in null matches missing", map[string]any{"absent": map[string]any{"$in": []any{nil}}}, true},
		{"$nin", map[string]any{"id": map[string]any{"$nin": []any{1, 7}}}, false},
		{"$or hit", map[string]any{"$or": []any{map[string]any{"id": 1}, map[string]any{"id": 7}}}, true},
		{"$or miss", map[string]any{"$or": []any{map[string]any{"id": 1}, map[string]any{"id": 2}}}, false},
		{"$and", map[string]any{"$and": []any{map[string]any{"id": 7}, map[string]any{"tags": "home"}}}, true},
		{"$nor", map[string]any{"$nor": []any{map[string]any{"id": 1}, map[string]any{"id": 2}}}, true},
		{"$exists true", map[string]any{"nobody": map[string]any{"$exists": true}}, true},
		{"$exists false", map[string]any{"absent": map[string]any{"$exists": false}}, true},
		{"$regex", map[string]any{"name": map[string]any{"$regex": "first$"}}, true},
		{"$regex case", map[string]any{"name": map[string]any{"$regex": "^do", "$options": "i"}}, true},
		{"$regex array elem", map[string]any{"tags": map[string]any{"$regex": "^urg"}}, true},
		{"$all", map[string]any{"tags": map[string]any{"$all": []any{"urgent", "home"}}}, true},
		{"$all miss", map[string]any{"tags": map[string]any{"$all": []any{"urgent", "work"}}}, false},
		{"$all empty", map[string]any{"tags": map[string]any{"$all": []any{}}}, false},
		{"$size", map[string]any{"tags": map[string]any{"$size": 2}}, true},
		{"$size miss", map[string]any{"tags": map[string]any{"$size": 3}}, false},
		{"$elemMatch doc", map[string]any{"lines": map[string]any{"$elemMatch": map[string]any{"sku": "b", "qty": map[string]any{"$gt": 3}}}}, true},
		{"$elemMatch doc miss", map[string]any{"lines": map[string]any{"$elemMatch": map[string]any{"sku": "a", "qty": map[string]any{"$gt": 3}}}}, false},
		{"$elemMatch scalar", map[string]any{"tags": map[string]any{"$elemMatch": map[string]any{"$eq": "home"}}}, true},
		{"$not", map[string]any{"score": map[string]any{"$not": map[string]any{"$gt": 50}}}, true},
		{"$not regex string", map[string]any{"name": map[string]any{"$not": "^Do"}}, false},
		{"range bounds", map[string]any{"score": map[string]any{"$gt": 40, "$lt": 45}}, true},
		{"$gte null", map[string]any{"absent": map[string]any{"$gte": nil}}, true},
		{"$gt null", map[string]any{"nobody": map[string]any{"$gt": nil}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustMatcher(t, tt.query)
			assert.Equal(t, tt.want, m.Match(doc))
		})
	}
}

func TestMatcher_CustomOperator(t *testing.T) {
	pred, _, err := queryir.FilterQuery(
		map[string]any{"name": map[string]any{"$startsWith": "Do"}},
		queryir.Options{Operators: []string{"$startsWith"}},
	)
	require.NoError(t, err)

	_, err = NewMatcher(pred)
	require.Error(t, err)
	assert.True(t, queryir.IsQueryError(err))

	m, err := NewMatcher(pred, WithOperator("$startsWith", func(value, arg any) bool {
		s, ok := value.(string)
		prefix, _ := arg.(string)
		return ok && strings.HasPrefix(s, prefix)
	}))
	require.NoError(t, err)

	assert.True(t, m.Match(ir.Record{"name": "Do the first"}))
	assert.False(t, m.Match(ir.Record{"name": "Skip it"}))
	assert.False(t, m.Match(ir.Record{}))
}

func TestMatcher_CustomOperatorNested(t *testing.T) {
	pred := &queryir.Or{Predicates: []queryir.Predicate{
		&queryir.Not{Predicate: &queryir.Custom{Path: "a", Name: "$odd"}},
	}}
	_, err := NewMatcher(pred)
	require.Error(t, err)

	_, err = NewMatcher(pred, WithOperators(map[string]OperatorFunc{
		"$odd": func(value, _ any) bool {
			n, ok := ir.Int(value)
			return ok && n%2 == 1
		},
	}))
	require.NoError(t, err)
}

func TestMatcher_Filter(t *testing.T) {
	m := mustMatcher(t, map[string]any{"done": true})
	in := []ir.Record{{"id": 1, "done": true}, {"id": 2, "done": false}, {"id": 3, "done": true}}

	out := m.Filter(in)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0]["id"])
	assert.Equal(t, 3, out[1]["id"])
	assert.Len(t, in, 3)
}
