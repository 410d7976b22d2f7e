package regularization

import "time"

// AnnualCharges are the landlord's actual recoverable expenses for one
// entity and fiscal year, one entry per charge category.
type AnnualCharges struct {
	EntityID   string         `json:"entityId"`
	FiscalYear int            `json:"fiscalYear"`
	Charges    []AnnualCharge `json:"charges"`
}

// AnnualCharge is the yearly total of one charge category
type AnnualCharge struct {
	ChargeCategoryID string `json:"chargeCategoryId"`
	Label            string `json:"label"`
	AmountCents      int64  `json:"amountCents"`
}

// TotalCents sums every category
func (a *AnnualCharges) TotalCents() int64 {
	var total int64
	for _, c := range a.Charges {
		total += c.AmountCents
	}
	return total
}

// Lease is a lease occupancy as read from the lease finder. EndDate is nil
// while the lease is still open.
type Lease struct {
	ID        string      `json:"id"`
	EntityID  string      `json:"entityId"`
	TenantID  string      `json:"tenantId"`
	UnitID    string      `json:"unitId"`
	StartDate time.Time   `json:"startDate"`
	EndDate   *time.Time  `json:"endDate"`
	Tenant    LeaseTenant `json:"tenant"`
	Unit      LeaseUnit   `json:"unit"`
}

type LeaseTenant struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	CompanyName *string `json:"companyName"`
}

type LeaseUnit struct {
	Identifier string `json:"identifier"`
}

// BillingLine is the monthly recoverable-charge portion a lease is invoiced
// for one category. Lines without a category are rent or other non
// recoverable items.
type BillingLine struct {
	ChargeCategoryID *string `json:"chargeCategoryId"`
	AmountCents      int64   `json:"amountCents"`
}

// CalculationInput gathers everything the calculator needs. The calculator
// never fetches anything itself.
type CalculationInput struct {
	EntityID     string
	UserID       string
	FiscalYear   int
	Charges      *AnnualCharges
	Leases       []Lease
	BillingLines map[string][]BillingLine // keyed by lease id
	Water        *WaterDistribution
}
