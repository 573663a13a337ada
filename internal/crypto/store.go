package crypto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jobfill/jobfill/internal/domain"
)

// Store encrypts values on the way into the wrapped store. Sealed values are
// written as a JSON string so JSON-typed columns accept them. Values that are
// not a JSON string were written before encryption was turned on and are
// returned as they are.
type Store struct {
	next domain.KVStore
	key  []byte
}

var _ domain.KVStore = (*Store)(nil)

// NewStore wraps next; key must be KeySize bytes
func NewStore(next domain.KVStore, key []byte) (*Store, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return &Store{next: next, key: key}, nil
}

// Get implements domain.KVStore
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := s.next.Get(ctx, key)
	if err != nil || !found {
		return value, found, err
	}

	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return value, true, nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil, false, fmt.Errorf("decoding sealed %s: %w", key, err)
	}
	plaintext, err := Decrypt(text, s.key)
	if err != nil {
		return nil, false, fmt.Errorf("opening %s: %w", key, err)
	}
	return []byte(plaintext), true, nil
}

// Set implements domain.KVStore
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	text, err := Encrypt(string(value), s.key)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", key, err)
	}
	sealed, err := json.Marshal(text)
	if err != nil {
		return err
	}
	return s.next.Set(ctx, key, sealed)
}

// Health delegates to the wrapped store when it can report health
func (s *Store) Health(ctx context.Context) error {
	if hc, ok := s.next.(domain.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}
