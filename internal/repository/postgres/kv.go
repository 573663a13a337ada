package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jobfill/jobfill/internal/domain"
)

// KVStore implements domain.KVStore over the kv_store table
type KVStore struct {
	db *sqlx.DB
}

var _ domain.KVStore = (*KVStore)(nil)

// NewKVStore creates a new key-value repository
func NewKVStore(db *sqlx.DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the document stored under key
func (r *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.GetContext(ctx, &value, `SELECT value FROM kv_store WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("selecting %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the document stored under key
func (r *KVStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("upserting %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (r *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Health checks database connectivity
func (r *KVStore) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
