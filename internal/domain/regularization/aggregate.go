package regularization

import (
	"fmt"

	"github.com/rentflow/backend/internal/domain/shared"
)

// AggregateTypeChargeRegularization is the aggregate type name for charge regularizations
const AggregateTypeChargeRegularization = "ChargeRegularization"

// ChargeRegularizationID returns the aggregate id of an entity's fiscal
// year, e.g. "entity1-2025".
func ChargeRegularizationID(entityID string, fiscalYear int) string {
	return fmt.Sprintf("%s-%d", entityID, fiscalYear)
}

// StreamName returns the event stream holding an aggregate's history
func StreamName(aggregateID string) string {
	return "charge-regularization-" + aggregateID
}

// ChargeRegularization is the event-sourced lifecycle of one entity's
// fiscal year regularization: calculated, then applied, sent and settled.
// Every command records at most one event, and commands that would change
// nothing record none.
type ChargeRegularization struct {
	shared.EventSourcedRoot
	entityID   string
	fiscalYear int
	state      State
	policy     FiscalYearPolicy
	clock      shared.Clock
}

// Option configures a ChargeRegularization
type Option func(*ChargeRegularization)

// WithClock sets the clock used to stamp lifecycle events
func WithClock(clock shared.Clock) Option {
	return func(r *ChargeRegularization) {
		r.clock = clock
	}
}

// WithFiscalYearPolicy sets the accepted fiscal year range
func WithFiscalYearPolicy(policy FiscalYearPolicy) Option {
	return func(r *ChargeRegularization) {
		r.policy = policy
	}
}

// NewChargeRegularization creates an empty, uncalculated regularization
func NewChargeRegularization(entityID string, fiscalYear int, opts ...Option) *ChargeRegularization {
	id := ChargeRegularizationID(entityID, fiscalYear)
	r := &ChargeRegularization{
		EventSourcedRoot: shared.NewEventSourcedRoot(id),
		entityID:         entityID,
		fiscalYear:       fiscalYear,
		state:            State{ID: id, EntityID: entityID, FiscalYear: fiscalYear},
		policy:           DefaultFiscalYearPolicy(),
		clock:            shared.SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadFromHistory rebuilds a regularization by folding its stored events.
// The resulting version equals the number of events.
func LoadFromHistory(entityID string, fiscalYear int, history []shared.DomainEvent, opts ...Option) (*ChargeRegularization, error) {
	r := NewChargeRegularization(entityID, fiscalYear, opts...)
	for _, event := range history {
		if event.AggregateID() != r.GetID() {
			return nil, fmt.Errorf("event %s belongs to %s, not %s", event.EventID(), event.AggregateID(), r.GetID())
		}
		r.state = Fold(r.state, event)
		r.Replayed()
	}
	return r, nil
}

// Calculate records the statements unless they are structurally identical
// to the ones already recorded. It returns whether an event was recorded.
func (r *ChargeRegularization) Calculate(entityID, userID string, fiscalYear int, statements []Statement) (bool, error) {
	if err := r.checkIdentity(entityID, fiscalYear); err != nil {
		return false, err
	}
	event, err := decideCalculate(r.state, r.policy, r.payload(userID), statements, r.clock.Now())
	if err != nil {
		return false, err
	}
	return r.record(event), nil
}

// ApplyRegularization posts the calculated statements. No-op before the
// first calculation or once applied.
func (r *ChargeRegularization) ApplyRegularization(entityID, userID string, fiscalYear int) (bool, error) {
	if err := r.checkIdentity(entityID, fiscalYear); err != nil {
		return false, err
	}
	return r.record(decideApply(r.state, r.payload(userID), r.clock.Now())), nil
}

// MarkAsSent records how many documents were delivered. Callers only invoke
// it after at least one delivery succeeded.
func (r *ChargeRegularization) MarkAsSent(entityID, userID string, fiscalYear, sentCount int) (bool, error) {
	if err := r.checkIdentity(entityID, fiscalYear); err != nil {
		return false, err
	}
	return r.record(decideMarkAsSent(r.state, r.payload(userID), sentCount, r.clock.Now())), nil
}

// MarkAsSettled closes the cycle. No-op until applied or once settled.
func (r *ChargeRegularization) MarkAsSettled(entityID, userID string, fiscalYear int) (bool, error) {
	if err := r.checkIdentity(entityID, fiscalYear); err != nil {
		return false, err
	}
	return r.record(decideMarkAsSettled(r.state, r.payload(userID), r.clock.Now())), nil
}

func (r *ChargeRegularization) record(event shared.DomainEvent) bool {
	if event == nil {
		return false
	}
	r.Raise(event)
	r.state = Fold(r.state, event)
	return true
}

func (r *ChargeRegularization) checkIdentity(entityID string, fiscalYear int) error {
	if entityID != r.entityID || fiscalYear != r.fiscalYear {
		return ErrRegularizationMismatch.Withf("command for %s does not target regularization %s",
			ChargeRegularizationID(entityID, fiscalYear), r.GetID())
	}
	return nil
}

func (r *ChargeRegularization) payload(userID string) LifecyclePayload {
	return LifecyclePayload{
		ChargeRegularizationID: r.GetID(),
		EntityID:               r.entityID,
		UserID:                 userID,
		FiscalYear:             r.fiscalYear,
	}
}

// EntityID returns the entity the regularization belongs to
func (r *ChargeRegularization) EntityID() string {
	return r.entityID
}

// FiscalYear returns the regularized year
func (r *ChargeRegularization) FiscalYear() int {
	return r.fiscalYear
}

func (r *ChargeRegularization) IsCalculated() bool { return r.state.Calculated }
func (r *ChargeRegularization) IsApplied() bool    { return r.state.IsApplied() }
func (r *ChargeRegularization) IsSent() bool       { return r.state.IsSent() }
func (r *ChargeRegularization) IsSettled() bool    { return r.state.IsSettled() }

// Statements returns a copy of the recorded statements
func (r *ChargeRegularization) Statements() []Statement {
	return cloneStatements(r.state.Statements)
}

// TotalBalanceCents is the sum of all statement balances
func (r *ChargeRegularization) TotalBalanceCents() int64 {
	return r.state.TotalBalanceCents
}

// State returns a copy of the current projection
func (r *ChargeRegularization) State() State {
	s := r.state
	s.Statements = cloneStatements(s.Statements)
	return s
}
