package cache

import (
	"context"
	"fmt"

	regularizationapp "github.com/rentflow/backend/internal/application/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/rentflow/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Coordination bundles the idempotency store and send lock selected by
// configuration. With Redis both share one client, closed with the store.
type Coordination struct {
	Store  shared.IdempotencyStore
	Locker regularizationapp.BatchLocker
}

func (c *Coordination) Close() error {
	return c.Store.Close()
}

// Factory creates idempotency and locking backends based on configuration
type Factory struct {
	event                 config.EventConfig
	redis                 config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-process backends. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(event config.EventConfig, redisCfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		event:                 event,
		redis:                 redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns Redis backends when event.idempotency_store is "redis" and
// the server answers, in-process backends otherwise.
func (f *Factory) Create(ctx context.Context) (*Coordination, error) {
	if f.event.IdempotencyStore != "redis" {
		return f.inMemory(), nil
	}

	client, err := NewRedisClient(ctx, f.redis.RedisAddr(), f.redis.Password, f.redis.DB)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
		}
		f.logger.Warn("redis unavailable, falling back to in-memory idempotency and locking; "+
			"concurrent runs on other hosts are not coordinated",
			zap.Error(err),
		)
		return f.inMemory(), nil
	}

	f.logger.Info("using redis idempotency store", zap.String("addr", f.redis.RedisAddr()))
	return &Coordination{
		Store:  NewRedisIdempotencyStore(client, ""),
		Locker: NewRedisBatchLocker(client, 0),
	}, nil
}

func (f *Factory) inMemory() *Coordination {
	return &Coordination{
		Store:  NewInMemoryIdempotencyStore(),
		Locker: NewLocalBatchLocker(),
	}
}
