package store

import (
	"fmt"

	"github.com/roach88/svcstore/internal/ir"
)

// marshalRecord converts a record to canonical JSON TEXT for storage.
func marshalRecord(r ir.Record) (string, error) {
	data, err := ir.MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses stored JSON TEXT back into a record.
func unmarshalRecord(data string) (ir.Record, error) {
	r, err := ir.DecodeRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, nil
}
