package regularization

import (
	"context"
	"fmt"

	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LedgerProjection posts applied regularizations to tenant ledgers: a debit
// for every tenant who owes money and a credit for every overpayment.
type LedgerProjection struct {
	writer LedgerWriter
	logger *zap.Logger
}

// NewLedgerProjection creates a new ledger projection
func NewLedgerProjection(writer LedgerWriter, logger *zap.Logger) *LedgerProjection {
	return &LedgerProjection{
		writer: writer,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *LedgerProjection) EventTypes() []string {
	return []string{regularization.EventTypeChargeRegularizationApplied}
}

// Handle posts the ledger entries of a ChargeRegularizationApplied event
func (h *LedgerProjection) Handle(ctx context.Context, event shared.DomainEvent) error {
	applied, ok := event.(*regularization.ChargeRegularizationApplied)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", regularization.EventTypeChargeRegularizationApplied),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			regularization.EventTypeChargeRegularizationApplied, event.EventType())
	}

	entries := regularization.LedgerEntriesFor(applied)
	if len(entries) == 0 {
		h.logger.Info("applied regularization has no balance to post",
			zap.String("regularization_id", applied.ChargeRegularizationID),
		)
		return nil
	}

	if err := h.writer.Post(ctx, entries); err != nil {
		h.logger.Error("failed to post regularization ledger entries",
			zap.String("regularization_id", applied.ChargeRegularizationID),
			zap.Int("entries", len(entries)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to post ledger entries: %w", err)
	}

	h.logger.Info("posted regularization ledger entries",
		zap.String("regularization_id", applied.ChargeRegularizationID),
		zap.String("entity_id", applied.EntityID),
		zap.Int("fiscal_year", applied.FiscalYear),
		zap.Int("entries", len(entries)),
	)
	return nil
}
