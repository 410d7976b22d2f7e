package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	regularizationapp "github.com/rentflow/backend/internal/application/regularization"
)

const (
	defaultLockPrefix = "rentflow:lock:"
	defaultLockTTL    = 30 * time.Second
)

// RedisBatchLocker takes a Redis lock per key and refreshes it until
// released, so a long send batch keeps ownership past the initial TTL.
type RedisBatchLocker struct {
	locker *redislock.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBatchLocker creates a locker on client. A zero ttl selects 30s.
func NewRedisBatchLocker(client redis.UniversalClient, ttl time.Duration) *RedisBatchLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisBatchLocker{
		locker: redislock.New(client),
		prefix: defaultLockPrefix,
		ttl:    ttl,
	}
}

// Acquire obtains the lock without waiting
func (l *RedisBatchLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, l.prefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, regularizationapp.ErrSendInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := lock.Refresh(context.Background(), l.ttl, nil); err != nil {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			err = lock.Release(ctx)
			if errors.Is(err, redislock.ErrLockNotHeld) {
				err = nil
			}
		})
		return err
	}, nil
}

// LocalBatchLocker serialises batches within a single process
type LocalBatchLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalBatchLocker() *LocalBatchLocker {
	return &LocalBatchLocker{held: make(map[string]struct{})}
}

func (l *LocalBatchLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, regularizationapp.ErrSendInProgress
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

var (
	_ regularizationapp.BatchLocker = (*RedisBatchLocker)(nil)
	_ regularizationapp.BatchLocker = (*LocalBatchLocker)(nil)
)
