package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", "agg-1", time.Now()),
		Data:            "payload",
	}
}

type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("routes by event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		applied := newTestHandler("Applied")
		sent := newTestHandler("Sent")
		bus.Subscribe(applied)
		bus.Subscribe(sent)

		require.NoError(t, bus.Publish(ctx, newTestEvent("Applied"), newTestEvent("Applied")))

		assert.Equal(t, 2, applied.count())
		assert.Equal(t, 0, sent.count())
	})

	t.Run("explicit event types override handler types", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newTestHandler("Applied")
		bus.Subscribe(h, "Settled")

		require.NoError(t, bus.Publish(ctx, newTestEvent("Applied"), newTestEvent("Settled")))
		assert.Equal(t, 1, h.count())
	})

	t.Run("wildcard handler receives everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newTestHandler()
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(ctx, newTestEvent("A"), newTestEvent("B")))
		assert.Equal(t, 2, h.count())
	})

	t.Run("failing handler does not stop others", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := newTestHandler("Applied")
		failing.err = errors.New("ledger unavailable")
		healthy := newTestHandler("Applied")
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		err := bus.Publish(ctx, newTestEvent("Applied"))

		require.Error(t, err)
		assert.ErrorIs(t, err, failing.err)
		assert.Equal(t, 1, healthy.count())
	})

	t.Run("panicking handler is reported as an error", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newTestHandler("Applied")
		h.panicWith = "boom"
		bus.Subscribe(h)

		err := bus.Publish(ctx, newTestEvent("Applied"))
		assert.ErrorContains(t, err, "handler panicked: boom")
	})

	t.Run("unsubscribed handler is skipped", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newTestHandler("Applied")
		bus.Subscribe(h)
		bus.Unsubscribe(h)

		require.NoError(t, bus.Publish(ctx, newTestEvent("Applied")))
		assert.Equal(t, 0, h.count())
	})
}

func TestInMemoryEventBus_Lifecycle(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	assert.NoError(t, bus.Start(context.Background()))
	assert.NoError(t, bus.Stop(context.Background()))
}
