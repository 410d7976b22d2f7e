package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Event store
// =============================================================================

// StoredEventModel is one event of an aggregate stream. The unique index on
// (stream_name, version) rejects concurrent appends at the same position.
type StoredEventModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	StreamName    string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_regularization_events_stream_version,priority:1"`
	Version       int       `gorm:"not null;uniqueIndex:idx_regularization_events_stream_version,priority:2"`
	EventType     string    `gorm:"type:varchar(128);not null"`
	AggregateID   string    `gorm:"type:varchar(255);not null;index"`
	AggregateType string    `gorm:"type:varchar(128);not null"`
	SchemaVersion int       `gorm:"not null;default:1"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	OccurredAt    time.Time `gorm:"not null"`
	RecordedAt    time.Time `gorm:"not null"`
}

func (StoredEventModel) TableName() string {
	return "regularization_events"
}

// =============================================================================
// Read models
// =============================================================================

// AnnualChargesModel is the header of an entity's yearly expenses
type AnnualChargesModel struct {
	ID         string                  `gorm:"type:varchar(64);primaryKey"`
	EntityID   string                  `gorm:"type:varchar(64);not null;uniqueIndex:idx_annual_charges_entity_year,priority:1"`
	FiscalYear int                     `gorm:"not null;uniqueIndex:idx_annual_charges_entity_year,priority:2"`
	Lines      []AnnualChargeLineModel `gorm:"foreignKey:AnnualChargesID"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (AnnualChargesModel) TableName() string {
	return "annual_charges"
}

// ToDomain converts the header and its lines, in position order
func (m *AnnualChargesModel) ToDomain() *regularization.AnnualCharges {
	charges := make([]regularization.AnnualCharge, len(m.Lines))
	for i, l := range m.Lines {
		charges[i] = regularization.AnnualCharge{
			ChargeCategoryID: l.ChargeCategoryID,
			Label:            l.Label,
			AmountCents:      l.AmountCents,
		}
	}
	return &regularization.AnnualCharges{
		EntityID:   m.EntityID,
		FiscalYear: m.FiscalYear,
		Charges:    charges,
	}
}

type AnnualChargeLineModel struct {
	ID               string `gorm:"type:varchar(64);primaryKey"`
	AnnualChargesID  string `gorm:"type:varchar(64);not null;index"`
	ChargeCategoryID string `gorm:"type:varchar(64);not null"`
	Label            string `gorm:"type:varchar(255);not null"`
	AmountCents      int64  `gorm:"not null"`
	Position         int    `gorm:"not null;default:0"`
}

func (AnnualChargeLineModel) TableName() string {
	return "annual_charge_lines"
}

type TenantModel struct {
	ID          string  `gorm:"type:varchar(64);primaryKey"`
	FirstName   string  `gorm:"type:varchar(128)"`
	LastName    string  `gorm:"type:varchar(128)"`
	CompanyName *string `gorm:"type:varchar(255)"`
	Email       string  `gorm:"type:varchar(255)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TenantModel) TableName() string {
	return "tenants"
}

func (m *TenantModel) leaseTenant() regularization.LeaseTenant {
	return regularization.LeaseTenant{
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		CompanyName: m.CompanyName,
	}
}

// ToContact converts the tenant to what the send loop needs
func (m *TenantModel) ToContact() *regularization.TenantContact {
	return &regularization.TenantContact{
		ID:          m.ID,
		DisplayName: regularization.TenantDisplayName(m.leaseTenant()),
		Email:       m.Email,
	}
}

type UnitModel struct {
	ID         string `gorm:"type:varchar(64);primaryKey"`
	EntityID   string `gorm:"type:varchar(64);not null;index"`
	Identifier string `gorm:"type:varchar(64);not null"`
}

func (UnitModel) TableName() string {
	return "units"
}

// LeaseModel is a lease of a unit; EndDate is null while the lease runs
type LeaseModel struct {
	ID        string      `gorm:"type:varchar(64);primaryKey"`
	EntityID  string      `gorm:"type:varchar(64);not null;index"`
	TenantID  string      `gorm:"type:varchar(64);not null;index"`
	UnitID    string      `gorm:"type:varchar(64);not null"`
	StartDate time.Time   `gorm:"type:date;not null"`
	EndDate   *time.Time  `gorm:"type:date"`
	Tenant    TenantModel `gorm:"foreignKey:TenantID"`
	Unit      UnitModel   `gorm:"foreignKey:UnitID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeaseModel) TableName() string {
	return "leases"
}

// ToDomain expects Tenant and Unit to be preloaded
func (m *LeaseModel) ToDomain() regularization.Lease {
	return regularization.Lease{
		ID:        m.ID,
		EntityID:  m.EntityID,
		TenantID:  m.TenantID,
		UnitID:    m.UnitID,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Tenant:    m.Tenant.leaseTenant(),
		Unit:      regularization.LeaseUnit{Identifier: m.Unit.Identifier},
	}
}

// LeaseBillingLineModel is a monthly invoice line of a lease. Rent and other
// non recoverable lines have no charge category.
type LeaseBillingLineModel struct {
	ID               string  `gorm:"type:varchar(64);primaryKey"`
	LeaseID          string  `gorm:"type:varchar(64);not null;index"`
	ChargeCategoryID *string `gorm:"type:varchar(64)"`
	AmountCents      int64   `gorm:"not null"`
}

func (LeaseBillingLineModel) TableName() string {
	return "lease_billing_lines"
}

func (m *LeaseBillingLineModel) ToDomain() regularization.BillingLine {
	return regularization.BillingLine{
		ChargeCategoryID: m.ChargeCategoryID,
		AmountCents:      m.AmountCents,
	}
}

type WaterMeterReadingModel struct {
	ID            string          `gorm:"type:varchar(64);primaryKey"`
	EntityID      string          `gorm:"type:varchar(64);not null;index:idx_water_readings_entity_year,priority:1"`
	FiscalYear    int             `gorm:"not null;index:idx_water_readings_entity_year,priority:2"`
	UnitID        string          `gorm:"type:varchar(64);not null"`
	PreviousIndex decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	CurrentIndex  decimal.Decimal `gorm:"type:numeric(14,3);not null"`
}

func (WaterMeterReadingModel) TableName() string {
	return "water_meter_readings"
}

func (m *WaterMeterReadingModel) ToDomain() regularization.MeterReading {
	return regularization.MeterReading{
		UnitID:        m.UnitID,
		PreviousIndex: m.PreviousIndex,
		CurrentIndex:  m.CurrentIndex,
	}
}

// WaterInvoiceModel is the yearly water bill of an entity
type WaterInvoiceModel struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	EntityID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_water_invoices_entity_year,priority:1"`
	FiscalYear  int    `gorm:"not null;uniqueIndex:idx_water_invoices_entity_year,priority:2"`
	AmountCents int64  `gorm:"not null"`
}

func (WaterInvoiceModel) TableName() string {
	return "water_invoices"
}

// =============================================================================
// Projection
// =============================================================================

// TenantLedgerEntryModel is a posted regularization movement. A source event
// posts at most one entry per lease.
type TenantLedgerEntryModel struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	EntityID      string            `gorm:"type:varchar(64);not null;index:idx_ledger_entity_year,priority:1"`
	FiscalYear    int               `gorm:"not null;index:idx_ledger_entity_year,priority:2"`
	LeaseID       string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_ledger_source_lease,priority:2"`
	TenantID      string            `gorm:"type:varchar(64);not null;index"`
	Direction     string            `gorm:"type:varchar(10);not null"`
	Amount        valueobject.Money `gorm:"type:numeric(14,2);not null"`
	Currency      string            `gorm:"type:varchar(3);not null;default:'EUR'"`
	Label         string            `gorm:"type:varchar(255);not null"`
	SourceEventID string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_ledger_source_lease,priority:1"`
	CreatedAt     time.Time         `gorm:"not null"`
}

func (TenantLedgerEntryModel) TableName() string {
	return "tenant_ledger_entries"
}

// TenantLedgerEntryModelFromDomain maps an entry to a new row
func TenantLedgerEntryModelFromDomain(e regularization.LedgerEntry, createdAt time.Time) *TenantLedgerEntryModel {
	return &TenantLedgerEntryModel{
		ID:            uuid.New(),
		EntityID:      e.EntityID,
		FiscalYear:    e.FiscalYear,
		LeaseID:       e.LeaseID,
		TenantID:      e.TenantID,
		Direction:     e.Direction.String(),
		Amount:        e.Amount,
		Currency:      string(e.Amount.Currency()),
		Label:         e.Label,
		SourceEventID: e.SourceEventID,
		CreatedAt:     createdAt,
	}
}

// ToDomain converts the row back to a ledger entry
func (m *TenantLedgerEntryModel) ToDomain() regularization.LedgerEntry {
	amount, err := valueobject.NewMoney(m.Amount.Amount(), valueobject.Currency(m.Currency))
	if err != nil {
		amount = m.Amount
	}
	return regularization.LedgerEntry{
		EntityID:      m.EntityID,
		LeaseID:       m.LeaseID,
		TenantID:      m.TenantID,
		FiscalYear:    m.FiscalYear,
		Direction:     regularization.LedgerDirection(m.Direction),
		Amount:        amount,
		Label:         m.Label,
		SourceEventID: m.SourceEventID,
	}
}
