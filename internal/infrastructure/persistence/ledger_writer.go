package persistence

import (
	"context"
	"time"

	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerWriter posts regularization entries to tenant_ledger_entries
type GormLedgerWriter struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormLedgerWriter(db *gorm.DB) *GormLedgerWriter {
	return &GormLedgerWriter{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Post inserts the entries in one statement. An entry already posted for
// the same source event and lease is skipped.
func (w *GormLedgerWriter) Post(ctx context.Context, entries []regularization.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	createdAt := w.now()
	rows := make([]*models.TenantLedgerEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.TenantLedgerEntryModelFromDomain(e, createdAt)
	}

	return w.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_event_id"}, {Name: "lease_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// FindByEntityAndYear lists the posted entries of a fiscal year
func (w *GormLedgerWriter) FindByEntityAndYear(ctx context.Context, entityID string, fiscalYear int) ([]regularization.LedgerEntry, error) {
	var rows []models.TenantLedgerEntryModel
	if err := w.db.WithContext(ctx).
		Where("entity_id = ? AND fiscal_year = ?", entityID, fiscalYear).
		Order("lease_id ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]regularization.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}
