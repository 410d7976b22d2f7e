package regularization

import "strings"

// Statement is the regularization result for one lease. Balance is positive
// when the tenant owes money and negative when the landlord does.
type Statement struct {
	LeaseID        string `json:"leaseId"`
	TenantID       string `json:"tenantId"`
	TenantName     string `json:"tenantName"`
	UnitID         string `json:"unitId"`
	UnitIdentifier string `json:"unitIdentifier"`

	OccupancyStart string `json:"occupancyStart"`
	OccupancyEnd   string `json:"occupancyEnd"`
	OccupiedDays   int    `json:"occupiedDays"`
	DaysInYear     int    `json:"daysInYear"`

	Charges []ChargeShare `json:"charges"`

	TotalShareCents          int64 `json:"totalShareCents"`
	TotalProvisionsPaidCents int64 `json:"totalProvisionsPaidCents"`
	BalanceCents             int64 `json:"balanceCents"`
}

// ChargeShare is one tenant's part of one annual charge category
type ChargeShare struct {
	ChargeCategoryID     string `json:"chargeCategoryId"`
	Label                string `json:"label"`
	TotalChargeCents     int64  `json:"totalChargeCents"`
	TenantShareCents     int64  `json:"tenantShareCents"`
	IsWaterByConsumption bool   `json:"isWaterByConsumption"`
	ProvisionsPaidCents  int64  `json:"provisionsPaidCents"`
}

// recomputeTotals refreshes the statement totals from its charges
func (s *Statement) recomputeTotals() {
	var share, provisions int64
	for _, c := range s.Charges {
		share += c.TenantShareCents
		provisions += c.ProvisionsPaidCents
	}
	s.TotalShareCents = share
	s.TotalProvisionsPaidCents = provisions
	s.BalanceCents = share - provisions
}

// IsOverpaid reports a trop-perçu: the landlord owes the tenant
func (s Statement) IsOverpaid() bool {
	return s.BalanceCents < 0
}

func (s Statement) clone() Statement {
	c := s
	c.Charges = append([]ChargeShare(nil), s.Charges...)
	return c
}

func cloneStatements(statements []Statement) []Statement {
	if statements == nil {
		return nil
	}
	out := make([]Statement, len(statements))
	for i, s := range statements {
		out[i] = s.clone()
	}
	return out
}

// TotalBalanceCents sums the balances of every statement
func TotalBalanceCents(statements []Statement) int64 {
	var total int64
	for _, s := range statements {
		total += s.BalanceCents
	}
	return total
}

// StatementsEqual compares two statement lists on the fields that decide
// whether a recalculation changed anything: lease order, totals, occupied
// days and per-category shares.
func StatementsEqual(a, b []Statement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.LeaseID != y.LeaseID ||
			x.TotalShareCents != y.TotalShareCents ||
			x.TotalProvisionsPaidCents != y.TotalProvisionsPaidCents ||
			x.BalanceCents != y.BalanceCents ||
			x.OccupiedDays != y.OccupiedDays ||
			len(x.Charges) != len(y.Charges) {
			return false
		}
		for j := range x.Charges {
			if x.Charges[j].ChargeCategoryID != y.Charges[j].ChargeCategoryID ||
				x.Charges[j].TenantShareCents != y.Charges[j].TenantShareCents {
				return false
			}
		}
	}
	return true
}

// TenantDisplayName is the company name when there is one, otherwise
// "lastName firstName".
func TenantDisplayName(t LeaseTenant) string {
	if t.CompanyName != nil && strings.TrimSpace(*t.CompanyName) != "" {
		return *t.CompanyName
	}
	return strings.TrimSpace(t.LastName + " " + t.FirstName)
}
