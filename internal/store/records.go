package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/edtacey/jsonmapper/internal/pipeline"
)

// FindCandidates implements pipeline.Records. It returns the stored
// document under (entityID, key), or nothing.
func (s *Store) FindCandidates(ctx context.Context, entityID, key string) ([]map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT document FROM records WHERE entity_id = ? AND record_key = ?
	`), entityID, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	doc, err := unmarshalDocument(data)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return []map[string]any{doc}, nil
}

// SaveRecord implements pipeline.Records. Saving an existing key replaces
// its document and bumps its version.
func (s *Store) SaveRecord(ctx context.Context, rec pipeline.Record) error {
	data, err := marshalDocument(rec.Document)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO records (entity_id, record_key, document, content_hash, version)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(entity_id, record_key) DO UPDATE SET
			document = excluded.document,
			content_hash = excluded.content_hash,
			version = records.version + 1
	`), rec.EntityID, rec.Key, data, rec.Hash)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// StoredRecord is a record row with its version.
type StoredRecord struct {
	pipeline.Record
	Version int64
}

// Records lists the stored records of entityID ordered by key.
func (s *Store) Records(ctx context.Context, entityID string) ([]StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT record_key, document, content_hash, version
		FROM records
		WHERE entity_id = ?
		ORDER BY record_key
	`), entityID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var (
			rec  StoredRecord
			data string
		)
		if err := rows.Scan(&rec.Key, &data, &rec.Hash, &rec.Version); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.EntityID = entityID
		if rec.Document, err = unmarshalDocument(data); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
