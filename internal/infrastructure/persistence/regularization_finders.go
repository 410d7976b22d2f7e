package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAnnualChargesFinder reads annual_charges and their lines
type GormAnnualChargesFinder struct {
	db *gorm.DB
}

func NewGormAnnualChargesFinder(db *gorm.DB) *GormAnnualChargesFinder {
	return &GormAnnualChargesFinder{db: db}
}

// FindByEntityAndYear returns nil when no charges were recorded
func (f *GormAnnualChargesFinder) FindByEntityAndYear(ctx context.Context, entityID string, fiscalYear int) (*regularization.AnnualCharges, error) {
	var model models.AnnualChargesModel
	err := f.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Where("entity_id = ? AND fiscal_year = ?", entityID, fiscalYear).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormLeaseFinder reads leases with their tenant and unit
type GormLeaseFinder struct {
	db *gorm.DB
}

func NewGormLeaseFinder(db *gorm.DB) *GormLeaseFinder {
	return &GormLeaseFinder{db: db}
}

// FindOverlappingYear returns the entity's leases that started before the
// end of the year and had not ended before it began.
func (f *GormLeaseFinder) FindOverlappingYear(ctx context.Context, entityID string, fiscalYear int) ([]regularization.Lease, error) {
	yearStart := time.Date(fiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(fiscalYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	var rows []models.LeaseModel
	if err := f.db.WithContext(ctx).
		Preload("Tenant").
		Preload("Unit").
		Where("entity_id = ?", entityID).
		Where("start_date <= ?", yearEnd).
		Where("end_date IS NULL OR end_date >= ?", yearStart).
		Order("start_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	leases := make([]regularization.Lease, len(rows))
	for i := range rows {
		leases[i] = rows[i].ToDomain()
	}
	return leases, nil
}

// GormBillingLineFinder reads lease_billing_lines
type GormBillingLineFinder struct {
	db *gorm.DB
}

func NewGormBillingLineFinder(db *gorm.DB) *GormBillingLineFinder {
	return &GormBillingLineFinder{db: db}
}

// FindByLeases groups billing lines by lease id. Leases without lines are
// absent from the map.
func (f *GormBillingLineFinder) FindByLeases(ctx context.Context, leaseIDs []string) (map[string][]regularization.BillingLine, error) {
	out := make(map[string][]regularization.BillingLine)
	if len(leaseIDs) == 0 {
		return out, nil
	}

	var rows []models.LeaseBillingLineModel
	if err := f.db.WithContext(ctx).
		Where("lease_id IN ?", leaseIDs).
		Order("lease_id ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].LeaseID] = append(out[rows[i].LeaseID], rows[i].ToDomain())
	}
	return out, nil
}

// GormWaterDistributionFinder splits the yearly water invoice over the
// entity's units from their meter readings.
type GormWaterDistributionFinder struct {
	db *gorm.DB
}

func NewGormWaterDistributionFinder(db *gorm.DB) *GormWaterDistributionFinder {
	return &GormWaterDistributionFinder{db: db}
}

// FindByEntityAndYear returns nil when there is no invoice, no reading or
// no consumption for the year.
func (f *GormWaterDistributionFinder) FindByEntityAndYear(ctx context.Context, entityID string, fiscalYear int) (*regularization.WaterDistribution, error) {
	db := f.db.WithContext(ctx)

	var invoice models.WaterInvoiceModel
	err := db.Where("entity_id = ? AND fiscal_year = ?", entityID, fiscalYear).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read water invoice: %w", err)
	}

	var readings []models.WaterMeterReadingModel
	if err := db.Where("entity_id = ? AND fiscal_year = ?", entityID, fiscalYear).
		Order("unit_id ASC").
		Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to read water meter readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, nil
	}

	var unitIDs []string
	if err := db.Model(&models.UnitModel{}).
		Where("entity_id = ?", entityID).
		Order("id ASC").
		Pluck("id", &unitIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to read units: %w", err)
	}

	domainReadings := make([]regularization.MeterReading, len(readings))
	for i := range readings {
		domainReadings[i] = readings[i].ToDomain()
	}
	return regularization.DistributeWater(fiscalYear, invoice.AmountCents, unitIDs, domainReadings), nil
}

// GormTenantFinder resolves tenant contacts
type GormTenantFinder struct {
	db *gorm.DB
}

func NewGormTenantFinder(db *gorm.DB) *GormTenantFinder {
	return &GormTenantFinder{db: db}
}

// FindContact returns nil for an unknown tenant
func (f *GormTenantFinder) FindContact(ctx context.Context, tenantID string) (*regularization.TenantContact, error) {
	var model models.TenantModel
	err := f.db.WithContext(ctx).Where("id = ?", tenantID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToContact(), nil
}
