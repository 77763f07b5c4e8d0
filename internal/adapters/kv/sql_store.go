package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taskdeck/core/internal/infrastructure/database"
)

// SQLStore is a key-value store backed by a single kv_entries table in
// Postgres. It exists for installs that want the collection to live in a
// database instead of a flat file; the schema is managed by the migrate
// command.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore wraps an open database connection.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get returns the value for key and whether it was present.
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.DB.GetContext(ctx, &value, "SELECT value FROM kv_entries WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.DB.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = $1", key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
