// Package repository selects and instruments the key-value backend.
package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/crypto"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/repository/memory"
	"github.com/jobfill/jobfill/internal/repository/postgres"
	"github.com/jobfill/jobfill/internal/repository/redis"
)

// Instrumented records latency and errors of every store call
type Instrumented struct {
	next    domain.KVStore
	backend string
	metrics *observability.Metrics
}

var _ domain.KVStore = (*Instrumented)(nil)

// Instrument wraps next
func Instrument(next domain.KVStore, backend string, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{next: next, backend: backend, metrics: metrics}
}

// Get implements domain.KVStore
func (s *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, found, err := s.next.Get(ctx, key)
	s.metrics.RecordStoreOperation(s.backend, "get", err, time.Since(start))
	return value, found, err
}

// Set implements domain.KVStore
func (s *Instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.next.Set(ctx, key, value)
	s.metrics.RecordStoreOperation(s.backend, "set", err, time.Since(start))
	return err
}

// Health delegates to the wrapped store when it can report health
func (s *Instrumented) Health(ctx context.Context) error {
	if hc, ok := s.next.(domain.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// Open connects the backend selected in cfg. The returned close function
// releases its connections. With STORE_ENCRYPTION_KEY set, values are
// sealed before they reach the backend.
func Open(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (domain.KVStore, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	key, err := crypto.ParseKey(cfg.Store.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	backend := cfg.Store.Backend
	if backend == "" {
		backend = config.StoreMemory
	}

	store, closeFn, err := connect(cfg, backend, logger)
	if err != nil {
		return nil, nil, err
	}

	if key != nil {
		sealed, err := crypto.NewStore(store, key)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Info("store encryption enabled")
		store = sealed
	}

	return Instrument(store, backend, metrics), closeFn, nil
}

func connect(cfg *config.Config, backend string, logger *zap.Logger) (domain.KVStore, func() error, error) {
	switch backend {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), func() error { return nil }, nil

	case config.StoreRedis:
		store, err := redis.New(cfg.Redis, cfg.Store.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr()))
		return store, store.Close, nil

	case config.StorePostgres:
		db, err := postgres.New(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to database",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
		return postgres.NewKVStore(db.DB), db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", backend)
}
