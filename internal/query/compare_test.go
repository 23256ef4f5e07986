package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare_TypeOrder(t *testing.T) {
	ordered := []any{
		nil,
		-3,
		2.5,
		"a",
		"b",
		false,
		true,
		[]any{1},
		[]any{1, 2},
		map[string]any{"a": 1},
	}

	for i := 0; i < len(ordered)-1; i++ {
		assert.Negative(t, Compare(ordered[i], ordered[i+1]), "%v < %v", ordered[i], ordered[i+1])
		assert.Positive(t, Compare(ordered[i+1], ordered[i]), "%v > %v", ordered[i+1], ordered[i])
	}
}

func TestCompare_Equalities(t *testing.T) {
	assert.Zero(t, Compare(1, 1.0))
	assert.Zero(t, Compare("x", "x"))
	assert.Zero(t, Compare([]any{"a"}, []string{"a"}))
	assert.Zero(t, Compare(map[string]any{"a": 1}, map[string]any{"a": 1.0}))
}

func TestCompareValues_MissingSortsFirst(t *testing.T) {
	assert.Negative(t, compareValues(nil, false, nil, true))
	assert.Zero(t, compareValues(nil, false, nil, false))
}
