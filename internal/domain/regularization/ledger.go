package regularization

import (
	"fmt"

	"github.com/rentflow/backend/internal/domain/shared/valueobject"
)

// LedgerDirection is the side of the tenant account an entry is posted to
type LedgerDirection string

const (
	LedgerDebit  LedgerDirection = "debit"
	LedgerCredit LedgerDirection = "credit"
)

func (d LedgerDirection) IsValid() bool {
	return d == LedgerDebit || d == LedgerCredit
}

func (d LedgerDirection) String() string {
	return string(d)
}

// LedgerEntry is the tenant account movement produced by an applied
// regularization. Debits are owed by the tenant, credits by the landlord.
type LedgerEntry struct {
	EntityID      string
	LeaseID       string
	TenantID      string
	FiscalYear    int
	Direction     LedgerDirection
	Amount        valueobject.Money
	Label         string
	SourceEventID string
}

// LedgerEntriesFor returns one entry per statement with a nonzero balance
func LedgerEntriesFor(event *ChargeRegularizationApplied) []LedgerEntry {
	label := fmt.Sprintf("Régularisation des charges %d", event.FiscalYear)
	entries := make([]LedgerEntry, 0, len(event.Statements))
	for _, s := range event.Statements {
		if s.BalanceCents == 0 {
			continue
		}
		direction := LedgerDebit
		if s.IsOverpaid() {
			direction = LedgerCredit
		}
		entries = append(entries, LedgerEntry{
			EntityID:      event.EntityID,
			LeaseID:       s.LeaseID,
			TenantID:      s.TenantID,
			FiscalYear:    event.FiscalYear,
			Direction:     direction,
			Amount:        valueobject.FromCents(s.BalanceCents).Abs(),
			Label:         label,
			SourceEventID: event.EventID().String(),
		})
	}
	return entries
}

// TenantContact is what the send loop needs to reach a tenant
type TenantContact struct {
	ID          string
	DisplayName string
	Email       string
}

// HasEmail reports whether the tenant can receive documents
func (t TenantContact) HasEmail() bool {
	return t.Email != ""
}
