package regularization

import (
	"context"
	"time"

	"github.com/rentflow/backend/internal/domain/regularization"
)

// AnnualChargesFinder reads the yearly recoverable charges of an entity.
// It returns nil without error when none were recorded.
type AnnualChargesFinder interface {
	FindByEntityAndYear(ctx context.Context, entityID string, fiscalYear int) (*regularization.AnnualCharges, error)
}

// LeaseFinder returns the leases of an entity overlapping a fiscal year,
// with their tenant and unit.
type LeaseFinder interface {
	FindOverlappingYear(ctx context.Context, entityID string, fiscalYear int) ([]regularization.Lease, error)
}

// BillingLineFinder returns the monthly billing lines of each lease
type BillingLineFinder interface {
	FindByLeases(ctx context.Context, leaseIDs []string) (map[string][]regularization.BillingLine, error)
}

// WaterDistributionFinder returns the consumption split of the water bill,
// or nil when no meter readings exist for the year.
type WaterDistributionFinder interface {
	FindByEntityAndYear(ctx context.Context, entityID string, fiscalYear int) (*regularization.WaterDistribution, error)
}

// TenantFinder resolves a tenant's contact details. It returns nil without
// error for an unknown tenant.
type TenantFinder interface {
	FindContact(ctx context.Context, tenantID string) (*regularization.TenantContact, error)
}

// DeliveryRequest is one regularization document to deliver
type DeliveryRequest struct {
	EntityID   string
	FiscalYear int
	Tenant     regularization.TenantContact
	Statement  regularization.Statement
}

// DocumentSender renders and delivers a statement to a tenant
type DocumentSender interface {
	Send(ctx context.Context, req DeliveryRequest) error
}

// LedgerWriter posts regularization entries to tenant accounts.
// Posting the same source event twice must not duplicate entries.
type LedgerWriter interface {
	Post(ctx context.Context, entries []regularization.LedgerEntry) error
}

// BatchLocker serialises send batches of the same regularization across
// processes. Acquire returns ErrSendInProgress when another holder exists.
type BatchLocker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// MetricsRecorder receives regularization business metrics
type MetricsRecorder interface {
	RecordCommand(ctx context.Context, command string, changed bool, duration time.Duration)
	RecordConcurrencyRetry(ctx context.Context, command string)
	RecordSendBatch(ctx context.Context, sent, failed int)
	RecordTotalBalance(ctx context.Context, entityID string, fiscalYear int, totalBalanceCents int64)
}

type nopMetrics struct{}

func (nopMetrics) RecordCommand(context.Context, string, bool, time.Duration) {}
func (nopMetrics) RecordConcurrencyRetry(context.Context, string)             {}
func (nopMetrics) RecordSendBatch(context.Context, int, int)                  {}
func (nopMetrics) RecordTotalBalance(context.Context, string, int, int64)     {}
