package regularization

import (
	"time"

	"github.com/rentflow/backend/internal/domain/shared"
)

// Event type constants for charge regularization events
const (
	EventTypeChargeRegularizationCalculated = "ChargeRegularizationCalculated"
	EventTypeChargeRegularizationApplied    = "ChargeRegularizationApplied"
	EventTypeChargeRegularizationSent       = "ChargeRegularizationSent"
	EventTypeChargeRegularizationSettled    = "ChargeRegularizationSettled"
)

// LifecyclePayload is carried by every charge regularization event
type LifecyclePayload struct {
	ChargeRegularizationID string `json:"chargeRegularizationId"`
	EntityID               string `json:"entityId"`
	UserID                 string `json:"userId"`
	FiscalYear             int    `json:"fiscalYear"`
}

// ChargeRegularizationCalculated records a new or changed set of statements
type ChargeRegularizationCalculated struct {
	shared.BaseDomainEvent
	LifecyclePayload
	Statements        []Statement `json:"statements"`
	TotalBalanceCents int64       `json:"totalBalanceCents"`
	CalculatedAt      time.Time   `json:"calculatedAt"`
}

// ChargeRegularizationApplied records that statements were posted to tenant
// ledgers. Ledger projections read the snapshot it carries.
type ChargeRegularizationApplied struct {
	shared.BaseDomainEvent
	LifecyclePayload
	Statements []Statement `json:"statements"`
	AppliedAt  time.Time   `json:"appliedAt"`
}

type ChargeRegularizationSent struct {
	shared.BaseDomainEvent
	LifecyclePayload
	SentCount int       `json:"sentCount"`
	SentAt    time.Time `json:"sentAt"`
}

type ChargeRegularizationSettled struct {
	shared.BaseDomainEvent
	LifecyclePayload
	SettledAt time.Time `json:"settledAt"`
}

func newLifecycleBase(eventType string, p LifecyclePayload, at time.Time) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeChargeRegularization, p.ChargeRegularizationID, at)
}

// NewChargeRegularizationCalculatedEvent creates a calculated event
func NewChargeRegularizationCalculatedEvent(p LifecyclePayload, statements []Statement, at time.Time) *ChargeRegularizationCalculated {
	return &ChargeRegularizationCalculated{
		BaseDomainEvent:   newLifecycleBase(EventTypeChargeRegularizationCalculated, p, at),
		LifecyclePayload:  p,
		Statements:        cloneStatements(statements),
		TotalBalanceCents: TotalBalanceCents(statements),
		CalculatedAt:      at,
	}
}

// NewChargeRegularizationAppliedEvent creates an applied event
func NewChargeRegularizationAppliedEvent(p LifecyclePayload, statements []Statement, at time.Time) *ChargeRegularizationApplied {
	return &ChargeRegularizationApplied{
		BaseDomainEvent:  newLifecycleBase(EventTypeChargeRegularizationApplied, p, at),
		LifecyclePayload: p,
		Statements:       cloneStatements(statements),
		AppliedAt:        at,
	}
}

// NewChargeRegularizationSentEvent creates a sent event
func NewChargeRegularizationSentEvent(p LifecyclePayload, sentCount int, at time.Time) *ChargeRegularizationSent {
	return &ChargeRegularizationSent{
		BaseDomainEvent:  newLifecycleBase(EventTypeChargeRegularizationSent, p, at),
		LifecyclePayload: p,
		SentCount:        sentCount,
		SentAt:           at,
	}
}

// NewChargeRegularizationSettledEvent creates a settled event
func NewChargeRegularizationSettledEvent(p LifecyclePayload, at time.Time) *ChargeRegularizationSettled {
	return &ChargeRegularizationSettled{
		BaseDomainEvent:  newLifecycleBase(EventTypeChargeRegularizationSettled, p, at),
		LifecyclePayload: p,
		SettledAt:        at,
	}
}
