package regularization

import (
	"time"

	"github.com/rentflow/backend/internal/domain/shared"
)

// State is the projection of a charge regularization stream
type State struct {
	ID                string
	EntityID          string
	FiscalYear        int
	Calculated        bool
	Statements        []Statement
	TotalBalanceCents int64
	AppliedAt         *time.Time
	SentAt            *time.Time
	SentCount         int
	SettledAt         *time.Time
}

func (s State) IsApplied() bool { return s.AppliedAt != nil }
func (s State) IsSent() bool    { return s.SentAt != nil }
func (s State) IsSettled() bool { return s.SettledAt != nil }

// Fold applies one event to the state. It has no side effects, so folding
// a stored history from an empty State rebuilds the live aggregate exactly.
// Unknown events leave the state unchanged.
func Fold(s State, event shared.DomainEvent) State {
	switch e := event.(type) {
	case *ChargeRegularizationCalculated:
		s.EntityID, s.FiscalYear = e.EntityID, e.FiscalYear
		s.Calculated = true
		s.Statements = cloneStatements(e.Statements)
		s.TotalBalanceCents = e.TotalBalanceCents
	case *ChargeRegularizationApplied:
		at := e.AppliedAt
		s.AppliedAt = &at
	case *ChargeRegularizationSent:
		at := e.SentAt
		s.SentAt = &at
		s.SentCount = e.SentCount
	case *ChargeRegularizationSettled:
		at := e.SettledAt
		s.SettledAt = &at
	}
	return s
}

// FiscalYearPolicy bounds the years a regularization may be calculated for.
// A zero Max means no upper bound.
type FiscalYearPolicy struct {
	Min int
	Max int
}

// DefaultFiscalYearPolicy rejects years before 2000
func DefaultFiscalYearPolicy() FiscalYearPolicy {
	return FiscalYearPolicy{Min: 2000}
}

// Check returns ErrInvalidFiscalYear when year is out of range
func (p FiscalYearPolicy) Check(year int) error {
	if year < p.Min || (p.Max > 0 && year > p.Max) {
		return invalidFiscalYearError(year, p)
	}
	return nil
}

// The decide functions hold the lifecycle rules. Each returns the single
// event to record, or nil when the command changes nothing.

func decideCalculate(s State, policy FiscalYearPolicy, p LifecyclePayload, statements []Statement, at time.Time) (shared.DomainEvent, error) {
	if err := policy.Check(p.FiscalYear); err != nil {
		return nil, err
	}
	if s.Calculated &&
		StatementsEqual(s.Statements, statements) &&
		s.TotalBalanceCents == TotalBalanceCents(statements) {
		return nil, nil
	}
	return NewChargeRegularizationCalculatedEvent(p, statements, at), nil
}

func decideApply(s State, p LifecyclePayload, at time.Time) shared.DomainEvent {
	if !s.Calculated || s.IsApplied() {
		return nil
	}
	return NewChargeRegularizationAppliedEvent(p, s.Statements, at)
}

func decideMarkAsSent(s State, p LifecyclePayload, sentCount int, at time.Time) shared.DomainEvent {
	if !s.Calculated || s.IsSent() {
		return nil
	}
	return NewChargeRegularizationSentEvent(p, sentCount, at)
}

func decideMarkAsSettled(s State, p LifecyclePayload, at time.Time) shared.DomainEvent {
	if !s.IsApplied() || s.IsSettled() {
		return nil
	}
	return NewChargeRegularizationSettledEvent(p, at)
}
