package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
)

// Insert stores r under service. A record without a value at idField is
// assigned the service's next numeric id, starting at startID. Ids are
// unique per service; a duplicate fails with a Conflict error.
func (s *Store) Insert(ctx context.Context, service, idField string, startID int, r ir.Record) (ir.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	defer tx.Rollback()

	next := startID
	err = tx.QueryRowContext(ctx, `SELECT next FROM counters WHERE service = ?`, service).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("insert: read counter: %w", err)
	}

	if r[idField] == nil {
		r[idField] = next
		next++
	} else if n, ok := ir.Int(r[idField]); ok && n >= next {
		next = n + 1
	}
	key, ok := ir.KeyOf(r[idField])
	if !ok {
		return nil, transport.BadRequest("invalid id %v", r[idField])
	}

	data, err := marshalRecord(r)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (service, id, data)
		VALUES (?, ?, ?)
	`, service, key, data)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, transport.NewError(http.StatusConflict, "Record with id '%s' already exists", key)
		}
		return nil, fmt.Errorf("insert: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO counters (service, next) VALUES (?, ?)
		ON CONFLICT(service) DO UPDATE SET next = excluded.next
	`, service, next)
	if err != nil {
		return nil, fmt.Errorf("insert: write counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return r, nil
}

// Modify reads the record stored under key, passes it to fn and writes
// back what fn returns, in one transaction. The row keeps its insertion
// sequence.
func (s *Store) Modify(ctx context.Context, service, key string, fn func(ir.Record) (ir.Record, error)) (ir.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("modify: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM records WHERE service = ? AND id = ?`, service, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("modify: %w", err)
	}
	current, err := unmarshalRecord(data)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	out, err := marshalRecord(next)
	if err != nil {
		return nil, fmt.Errorf("modify: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE records SET data = ? WHERE service = ? AND id = ?
	`, out, service, key); err != nil {
		return nil, fmt.Errorf("modify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("modify: %w", err)
	}
	return next, nil
}

// Delete removes the record stored under key and returns it.
func (s *Store) Delete(ctx context.Context, service, key string) (ir.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM records WHERE service = ? AND id = ?
		RETURNING data
	`, service, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("delete: %w", err)
	}
	return unmarshalRecord(data)
}

func notFound(key string) error {
	return transport.NotFound("No record found for id '%s'", key)
}
