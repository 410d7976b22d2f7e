package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which event IDs a handler has already processed
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed for ttl.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Release forgets eventID so a failed delivery can be retried.
	Release(ctx context.Context, eventID string) error

	Close() error
}

// IdempotencyConfig holds configuration for idempotent event handling
type IdempotencyConfig struct {
	// TTL after which the same event ID may be processed again
	TTL time.Duration
	// Enabled turns deduplication on or off
	Enabled bool
}

// DefaultIdempotencyConfig returns a 24h, enabled configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
