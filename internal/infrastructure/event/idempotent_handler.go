package event

import (
	"context"
	"sync/atomic"

	"github.com/rentflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts what an IdempotentHandler did with the events it saw
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler lets an event through to the wrapped handler at most once
// per TTL, keyed by event ID. Projections that post money sit behind it.
type IdempotentHandler struct {
	next   shared.EventHandler
	seen   shared.IdempotencyStore
	config shared.IdempotencyConfig
	logger *zap.Logger

	processed, duplicate, failed atomic.Int64
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

func NewIdempotentHandler(next shared.EventHandler, seen shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		next:   next,
		seen:   seen,
		config: shared.DefaultIdempotencyConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

// Handle skips events already marked in the store. When the store itself
// fails the event goes through anyway; a failed delivery removes the mark so
// a redelivery is not mistaken for a duplicate.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.next.Handle(ctx, event)
	}

	id := event.EventID().String()
	if !h.claim(ctx, id, event.EventType()) {
		h.duplicate.Add(1)
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if relErr := h.seen.Release(ctx, id); relErr != nil {
			h.logger.Warn("failed to release idempotency mark",
				zap.String("event_id", id), zap.Error(relErr))
		}
		return err
	}
	h.processed.Add(1)
	return nil
}

// claim reports whether the caller should process the event
func (h *IdempotentHandler) claim(ctx context.Context, id, eventType string) bool {
	fresh, err := h.seen.MarkProcessed(ctx, id, h.config.TTL)
	switch {
	case err != nil:
		h.logger.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", id), zap.String("event_type", eventType), zap.Error(err))
		return true
	case !fresh:
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", id), zap.String("event_type", eventType))
		return false
	}
	return true
}

func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
