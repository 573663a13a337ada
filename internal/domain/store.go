package domain

import "context"

// Storage keys
const (
	KeyProfile         = "profile"
	KeyLearnedPatterns = "learnedPatterns"
)

// KVStore is the persistence contract. A missing key is reported with
// found=false and a nil error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// HealthChecker is implemented by stores that can report connectivity
type HealthChecker interface {
	Health(ctx context.Context) error
}
