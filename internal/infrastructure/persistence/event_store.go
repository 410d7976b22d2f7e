package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/rentflow/backend/internal/infrastructure/event"
	"github.com/rentflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation
const pgUniqueViolation = "23505"

// GormEventStore keeps aggregate streams in the regularization_events table
type GormEventStore struct {
	db         *gorm.DB
	serializer *event.EventSerializer
	now        func() time.Time
}

// NewGormEventStore creates an event store decoding payloads with serializer
func NewGormEventStore(db *gorm.DB, serializer *event.EventSerializer) *GormEventStore {
	return &GormEventStore{
		db:         db,
		serializer: serializer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Append writes events after position expectedVersion of the stream. It
// fails with shared.ErrConcurrencyConflict when the stream already holds
// more events, including when a concurrent writer wins the race between the
// version check and the insert.
func (s *GormEventStore) Append(ctx context.Context, streamName string, expectedVersion int, events []shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]models.StoredEventModel, len(events))
	recordedAt := s.now()
	for i, e := range events {
		payload, err := s.serializer.Serialize(e)
		if err != nil {
			return fmt.Errorf("failed to serialize %s: %w", e.EventType(), err)
		}
		schemaVersion := 1
		if v, ok := e.(shared.VersionedEvent); ok {
			schemaVersion = v.SchemaVersion()
		}
		rows[i] = models.StoredEventModel{
			ID:            e.EventID(),
			StreamName:    streamName,
			Version:       expectedVersion + i + 1,
			EventType:     e.EventType(),
			AggregateID:   e.AggregateID(),
			AggregateType: e.AggregateType(),
			SchemaVersion: schemaVersion,
			Payload:       payload,
			OccurredAt:    e.OccurredAt().UTC(),
			RecordedAt:    recordedAt,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := streamVersion(tx, streamName)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return shared.ErrConcurrencyConflict.Withf("stream %s is at version %d, expected %d",
				streamName, current, expectedVersion)
		}
		return tx.Create(&rows).Error
	})
	if isUniqueViolation(err) {
		return shared.ErrConcurrencyConflict.Withf("stream %s was appended concurrently at version %d",
			streamName, expectedVersion+1)
	}
	return err
}

// Load returns the stream's events in version order
func (s *GormEventStore) Load(ctx context.Context, streamName string) ([]shared.DomainEvent, error) {
	var rows []models.StoredEventModel
	if err := s.db.WithContext(ctx).
		Where("stream_name = ?", streamName).
		Order("version ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", streamName, err)
	}

	events := make([]shared.DomainEvent, 0, len(rows))
	for _, row := range rows {
		e, err := s.serializer.Deserialize(row.EventType, row.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %d of stream %s: %w", row.Version, streamName, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Version returns the number of events in the stream
func (s *GormEventStore) Version(ctx context.Context, streamName string) (int, error) {
	return streamVersion(s.db.WithContext(ctx), streamName)
}

func streamVersion(db *gorm.DB, streamName string) (int, error) {
	var version int
	err := db.Model(&models.StoredEventModel{}).
		Select("COALESCE(MAX(version), 0)").
		Where("stream_name = ?", streamName).
		Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read version of stream %s: %w", streamName, err)
	}
	return version, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
