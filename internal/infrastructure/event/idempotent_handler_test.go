package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/rentflow/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func newMemoryStore(t *testing.T) *cache.InMemoryIdempotencyStore {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIdempotentHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate delivery is processed once", func(t *testing.T) {
		inner := newTestHandler("Applied")
		h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop())
		event := newTestEvent("Applied")

		require.NoError(t, h.Handle(ctx, event))
		require.NoError(t, h.Handle(ctx, event))

		assert.Equal(t, 1, inner.count())
		assert.Equal(t, IdempotencyStats{Processed: 1, Duplicate: 1}, h.Stats())
		assert.Equal(t, []string{"Applied"}, h.EventTypes())
	})

	t.Run("distinct events are all processed", func(t *testing.T) {
		inner := newTestHandler("Applied")
		h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop())

		require.NoError(t, h.Handle(ctx, newTestEvent("Applied")))
		require.NoError(t, h.Handle(ctx, newTestEvent("Applied")))
		assert.Equal(t, 2, inner.count())
	})

	t.Run("failure releases the mark for a retry", func(t *testing.T) {
		inner := newTestHandler("Applied")
		inner.err = errors.New("ledger unavailable")
		store := newMemoryStore(t)
		h := NewIdempotentHandler(inner, store, zap.NewNop())
		event := newTestEvent("Applied")

		assert.ErrorIs(t, h.Handle(ctx, event), inner.err)
		processed, err := store.IsProcessed(ctx, event.EventID().String())
		require.NoError(t, err)
		assert.False(t, processed)

		inner.err = nil
		require.NoError(t, h.Handle(ctx, event))
		assert.Equal(t, 2, inner.count())
		assert.Equal(t, int64(1), h.Stats().Failed)
	})

	t.Run("store failure does not block processing", func(t *testing.T) {
		inner := newTestHandler("Applied")
		store := new(MockIdempotencyStore)
		store.On("MarkProcessed", mock.Anything, mock.Anything, 24*time.Hour).Return(false, errors.New("redis down"))
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, h.Handle(ctx, newTestEvent("Applied")))
		assert.Equal(t, 1, inner.count())
		store.AssertExpectations(t)
	})

	t.Run("disabled idempotency skips the store", func(t *testing.T) {
		inner := newTestHandler("Applied")
		store := new(MockIdempotencyStore)
		h := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
		)
		event := newTestEvent("Applied")

		require.NoError(t, h.Handle(ctx, event))
		require.NoError(t, h.Handle(ctx, event))
		assert.Equal(t, 2, inner.count())
		store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	})
}
