package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// postgresDocumentStore keeps documents as JSONB rows in a single
// table, one row per document, partitioned by collection name.
type postgresDocumentStore struct {
	db *sql.DB
}

func newPostgresDocumentStore(ctx context.Context, databaseURL string) (*postgresDocumentStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &postgresDocumentStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *postgresDocumentStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			collection TEXT NOT NULL,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS documents_collection_created_idx
		ON documents (collection, created_at DESC)
	`)
	return err
}

func (s *postgresDocumentStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, doc)
		VALUES ($1, $2)
		RETURNING id::text
	`, collection, encoded).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *postgresDocumentStore) QueryAll(ctx context.Context, collection, orderByField string, descending bool) ([]Document, error) {
	if err := validateDocumentField(orderByField); err != nil {
		return nil, err
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}

	// orderByField is validated to identifier characters above.
	query := fmt.Sprintf(`
		SELECT id::text, doc
		FROM documents
		WHERE collection = $1
		ORDER BY (doc->>'%s')::numeric %s, created_at %s
	`, orderByField, direction, direction)

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		doc["id"] = id
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *postgresDocumentStore) UpdateField(ctx context.Context, collection, id, field string, value any) error {
	if err := validateDocumentField(field); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return errDocumentNotFound
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET doc = jsonb_set(doc, ARRAY[$3]::text[], $4::jsonb)
		WHERE collection = $1 AND id = $2::uuid
	`, collection, id, field, encoded)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errDocumentNotFound
	}
	return nil
}

func (s *postgresDocumentStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func validateDocumentField(field string) error {
	if field == "" {
		return fmt.Errorf("empty document field")
	}
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return fmt.Errorf("document field contains invalid character %q", r)
		}
	}
	return nil
}
