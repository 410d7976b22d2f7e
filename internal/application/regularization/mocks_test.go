package regularization

import (
	"context"
	"sync"
	"time"

	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockAnnualChargesFinder is a mock implementation of AnnualChargesFinder
type MockAnnualChargesFinder struct {
	mock.Mock
}

func (m *MockAnnualChargesFinder) FindByEntityAndYear(ctx context.Context, entityID string, fiscalYear int) (*regularization.AnnualCharges, error) {
	args := m.Called(ctx, entityID, fiscalYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*regularization.AnnualCharges), args.Error(1)
}

// MockLeaseFinder is a mock implementation of LeaseFinder
type MockLeaseFinder struct {
	mock.Mock
}

func (m *MockLeaseFinder) FindOverlappingYear(ctx context.Context, entityID string, fiscalYear int) ([]regularization.Lease, error) {
	args := m.Called(ctx, entityID, fiscalYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]regularization.Lease), args.Error(1)
}

// MockBillingLineFinder is a mock implementation of BillingLineFinder
type MockBillingLineFinder struct {
	mock.Mock
}

func (m *MockBillingLineFinder) FindByLeases(ctx context.Context, leaseIDs []string) (map[string][]regularization.BillingLine, error) {
	args := m.Called(ctx, leaseIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]regularization.BillingLine), args.Error(1)
}

// MockWaterDistributionFinder is a mock implementation of WaterDistributionFinder
type MockWaterDistributionFinder struct {
	mock.Mock
}

func (m *MockWaterDistributionFinder) FindByEntityAndYear(ctx context.Context, entityID string, fiscalYear int) (*regularization.WaterDistribution, error) {
	args := m.Called(ctx, entityID, fiscalYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*regularization.WaterDistribution), args.Error(1)
}

// MockTenantFinder is a mock implementation of TenantFinder
type MockTenantFinder struct {
	mock.Mock
}

func (m *MockTenantFinder) FindContact(ctx context.Context, tenantID string) (*regularization.TenantContact, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*regularization.TenantContact), args.Error(1)
}

// MockDocumentSender is a mock implementation of DocumentSender
type MockDocumentSender struct {
	mock.Mock
}

func (m *MockDocumentSender) Send(ctx context.Context, req DeliveryRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockLedgerWriter is a mock implementation of LedgerWriter
type MockLedgerWriter struct {
	mock.Mock
}

func (m *MockLedgerWriter) Post(ctx context.Context, entries []regularization.LedgerEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// memoryRepository keeps event streams in memory and enforces the expected
// version on append. conflicts makes the next Save calls fail.
type memoryRepository struct {
	mu        sync.Mutex
	streams   map[string][]shared.DomainEvent
	conflicts int
	saves     int
	opts      []regularization.Option
}

func newMemoryRepository(opts ...regularization.Option) *memoryRepository {
	return &memoryRepository{
		streams: make(map[string][]shared.DomainEvent),
		opts:    opts,
	}
}

func (r *memoryRepository) Load(_ context.Context, entityID string, fiscalYear int) (*regularization.ChargeRegularization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := regularization.ChargeRegularizationID(entityID, fiscalYear)
	history := r.streams[id]
	if len(history) == 0 {
		return nil, regularization.ErrRegularizationNotFound
	}
	return regularization.LoadFromHistory(entityID, fiscalYear, history, r.opts...)
}

func (r *memoryRepository) History(_ context.Context, entityID string, fiscalYear int) ([]shared.DomainEvent, error) {
	return r.stream(regularization.ChargeRegularizationID(entityID, fiscalYear)), nil
}

func (r *memoryRepository) Save(_ context.Context, agg *regularization.ChargeRegularization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrConcurrencyConflict
	}
	if len(r.streams[agg.GetID()]) != agg.GetVersion() {
		return shared.ErrConcurrencyConflict
	}
	r.streams[agg.GetID()] = append(r.streams[agg.GetID()], agg.GetDomainEvents()...)
	agg.MarkCommitted()
	return nil
}

func (r *memoryRepository) stream(id string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.DomainEvent(nil), r.streams[id]...)
}

// memoryIdempotencyStore marks event ids without expiry
type memoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{seen: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *memoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}

func (s *memoryIdempotencyStore) Close() error { return nil }
