package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// DecodeRecord decodes a JSON object. Integral numbers that fit an int
// decode as int, other numbers as float64, so stored ids come back in the
// form they were written with.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode record: not an object")
	}
	return normalizeNumbers(raw).(map[string]any), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil && n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, child := range val {
			val[k] = normalizeNumbers(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = normalizeNumbers(child)
		}
		return val
	default:
		return v
	}
}
