package persistence

import (
	"context"

	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
)

// EventSourcedRegularizationRepository stores each fiscal year regularization
// as its own event stream.
type EventSourcedRegularizationRepository struct {
	store   *GormEventStore
	aggOpts []regularization.Option
}

// NewEventSourcedRegularizationRepository creates a repository over store.
// opts are applied to every aggregate it rebuilds.
func NewEventSourcedRegularizationRepository(store *GormEventStore, opts ...regularization.Option) *EventSourcedRegularizationRepository {
	return &EventSourcedRegularizationRepository{store: store, aggOpts: opts}
}

// Load replays the stream of an entity's fiscal year
func (r *EventSourcedRegularizationRepository) Load(ctx context.Context, entityID string, fiscalYear int) (*regularization.ChargeRegularization, error) {
	history, err := r.History(ctx, entityID, fiscalYear)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, regularization.ErrRegularizationNotFound
	}
	return regularization.LoadFromHistory(entityID, fiscalYear, history, r.aggOpts...)
}

// History returns the committed events of an entity's fiscal year
func (r *EventSourcedRegularizationRepository) History(ctx context.Context, entityID string, fiscalYear int) ([]shared.DomainEvent, error) {
	id := regularization.ChargeRegularizationID(entityID, fiscalYear)
	return r.store.Load(ctx, regularization.StreamName(id))
}

// Save appends the pending events and marks them committed
func (r *EventSourcedRegularizationRepository) Save(ctx context.Context, agg *regularization.ChargeRegularization) error {
	pending := agg.GetDomainEvents()
	if len(pending) == 0 {
		return nil
	}
	if err := r.store.Append(ctx, regularization.StreamName(agg.GetID()), agg.GetVersion(), pending); err != nil {
		return err
	}
	agg.MarkCommitted()
	return nil
}

var _ regularization.ChargeRegularizationRepository = (*EventSourcedRegularizationRepository)(nil)
