package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/querysql"
)

// Lookup returns the record stored under key, or a NotFound error.
func (s *Store) Lookup(ctx context.Context, service, key string) (ir.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM records WHERE service = ? AND id = ?
	`, service, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	return unmarshalRecord(data)
}

// All returns every record of service in insertion order.
//
// Returns an empty slice (not nil) if the service has no records.
func (s *Store) All(ctx context.Context, service string) ([]ir.Record, error) {
	return s.Records(ctx, querysql.Statement{
		SQL:  `SELECT data FROM records WHERE service = ? ORDER BY seq ASC`,
		Args: []any{service},
	})
}

// Records runs a statement selecting the data column.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Records(ctx context.Context, stmt querysql.Statement) ([]ir.Record, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []ir.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r, err := unmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Count runs a statement selecting a single count.
func (s *Store) Count(ctx context.Context, stmt querysql.Statement) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Services returns the service paths that have records, sorted.
func (s *Store) Services(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT service FROM records ORDER BY service COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
