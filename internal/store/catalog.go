package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/edtacey/jsonmapper/internal/pipeline"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// PutEntity inserts or replaces an entity definition.
func (s *Store) PutEntity(ctx context.Context, e *ruleset.Entity) error {
	return s.putEntity(ctx, s.db, e)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) putEntity(ctx context.Context, db execer, e *ruleset.Entity) error {
	def, err := marshalEntity(e)
	if err != nil {
		return fmt.Errorf("put entity: %w", err)
	}
	_, err = db.ExecContext(ctx, s.rebind(`
		INSERT INTO entities (id, name, definition) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, definition = excluded.definition
	`), e.ID, e.Name, def)
	if err != nil {
		return fmt.Errorf("put entity %s: %w", e.ID, err)
	}
	return nil
}

// Entity returns the entity definition with id. Unknown ids wrap
// pipeline.ErrEntityNotFound.
func (s *Store) Entity(ctx context.Context, id string) (*ruleset.Entity, error) {
	var def string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT definition FROM entities WHERE id = ?`), id).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrEntityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity %s: %w", id, err)
	}
	return unmarshalEntity(def)
}

// EntityIDs lists the stored entity ids in binary order.
func (s *Store) EntityIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return ids, nil
}

// PutValueMapping inserts or replaces a shared value mapping.
func (s *Store) PutValueMapping(ctx context.Context, m *valuemap.ValueMapping) error {
	return s.putValueMapping(ctx, s.db, m)
}

func (s *Store) putValueMapping(ctx context.Context, db execer, m *valuemap.ValueMapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("put value mapping: %w", err)
	}
	def, err := marshalValueMapping(m)
	if err != nil {
		return fmt.Errorf("put value mapping: %w", err)
	}
	_, err = db.ExecContext(ctx, s.rebind(`
		INSERT INTO value_maps (id, definition) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET definition = excluded.definition
	`), m.ID, def)
	if err != nil {
		return fmt.Errorf("put value mapping %s: %w", m.ID, err)
	}
	return nil
}

// ValueMapping implements valuemap.Source. Unknown ids wrap
// valuemap.ErrNotFound.
func (s *Store) ValueMapping(ctx context.Context, id string) (*valuemap.ValueMapping, error) {
	var def string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT definition FROM value_maps WHERE id = ?`), id).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", id, valuemap.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get value mapping %s: %w", id, err)
	}
	return unmarshalValueMapping(def)
}

// Import stores every entity and shared value mapping of b in one
// transaction.
func (s *Store) Import(ctx context.Context, b *ruleset.Bundle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, m := range b.ValueMappings {
		if err := s.putValueMapping(ctx, tx, m); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	for _, e := range b.Entities {
		if err := s.putEntity(ctx, tx, e); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import: commit: %w", err)
	}
	return nil
}
