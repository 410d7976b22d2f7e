package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	detailed := NewDomainError("CONCURRENCY_CONFLICT", "stream charge-regularization-e1-2025 moved to version 3")

	assert.True(t, errors.Is(detailed, ErrConcurrencyConflict))
	assert.True(t, errors.Is(fmt.Errorf("save: %w", detailed), ErrConcurrencyConflict))
	assert.False(t, errors.Is(detailed, ErrNotFound))
	assert.Equal(t, "stream charge-regularization-e1-2025 moved to version 3", detailed.Error())
}

func TestDomainError_Withf(t *testing.T) {
	err := ErrInvalidInput.Withf("sent count must be positive, got %d", 0)

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.Equal(t, "sent count must be positive, got 0", err.Error())
	assert.Equal(t, "Invalid input provided", ErrInvalidInput.Message, "sentinel must stay untouched")
}

func TestEventSourcedRoot_MarkCommitted(t *testing.T) {
	root := NewEventSourcedRoot("e1-2025")
	ev := NewBaseDomainEvent("Something", "Thing", "e1-2025", FixedClock{}.Now())
	root.Raise(&ev)
	root.Raise(&ev)

	assert.Len(t, root.GetDomainEvents(), 2)
	assert.Equal(t, 0, root.GetVersion())

	root.MarkCommitted()

	assert.Empty(t, root.GetDomainEvents())
	assert.Equal(t, 2, root.GetVersion())
	assert.Equal(t, "e1-2025", root.GetID())

	root.Replayed()
	assert.Equal(t, 3, root.GetVersion())
}

func TestBaseDomainEvent_SchemaVersion(t *testing.T) {
	ev := BaseDomainEvent{}
	assert.Equal(t, 1, ev.SchemaVersion())

	ev = NewBaseDomainEvent("Something", "Thing", "id", SystemClock{}.Now())
	assert.Equal(t, 1, ev.SchemaVersion())
	assert.NotEqual(t, ev.EventID().String(), "")
}
