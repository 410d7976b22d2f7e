package regularization

import (
	"context"

	"github.com/rentflow/backend/internal/domain/shared"
)

// ChargeRegularizationRepository persists regularizations as event streams
type ChargeRegularizationRepository interface {
	// Load replays the stream of an entity's fiscal year. It returns
	// ErrRegularizationNotFound when the stream is empty.
	Load(ctx context.Context, entityID string, fiscalYear int) (*ChargeRegularization, error)

	// History returns the committed events of an entity's fiscal year in
	// stream order. An unknown stream yields an empty slice.
	History(ctx context.Context, entityID string, fiscalYear int) ([]shared.DomainEvent, error)

	// Save appends the pending events, expecting the stream to still be at the
	// version the aggregate was loaded at. A stream that moved on yields
	// shared.ErrConcurrencyConflict.
	Save(ctx context.Context, r *ChargeRegularization) error
}
