package regularization

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultWaterMarkers flag a charge category as water when its label or id
// contains one of them, ignoring case.
var DefaultWaterMarkers = []string{"eau", "water"}

// Calculator turns annual charges, leases and an optional water distribution
// into one statement per lease occupying the fiscal year.
//
// Calculate is a pure function of its input. A Calculator holds only
// configuration and may be shared between goroutines.
type Calculator struct {
	waterMarkers []string
	collation    language.Tag
}

// CalculatorOption configures a Calculator
type CalculatorOption func(*Calculator)

// WithWaterMarkers replaces the markers used to recognise water categories
func WithWaterMarkers(markers ...string) CalculatorOption {
	return func(c *Calculator) {
		c.waterMarkers = c.waterMarkers[:0]
		for _, m := range markers {
			if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
				c.waterMarkers = append(c.waterMarkers, m)
			}
		}
	}
}

// WithCollation sets the language used to order tenant names
func WithCollation(tag language.Tag) CalculatorOption {
	return func(c *Calculator) {
		c.collation = tag
	}
}

// NewCalculator creates a calculator ordering names with French collation
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		waterMarkers: append([]string(nil), DefaultWaterMarkers...),
		collation:    language.French,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsWaterCategory reports whether a category is billed as water
func (c *Calculator) IsWaterCategory(charge AnnualCharge) bool {
	label := strings.ToLower(charge.Label)
	id := strings.ToLower(charge.ChargeCategoryID)
	for _, m := range c.waterMarkers {
		if strings.Contains(label, m) || strings.Contains(id, m) {
			return true
		}
	}
	return false
}

// Calculate computes the statements for every lease overlapping the fiscal
// year, sorted by tenant name.
func (c *Calculator) Calculate(input CalculationInput) ([]Statement, error) {
	if input.Charges == nil {
		return nil, ErrNoChargesRecorded
	}
	if len(input.Leases) == 0 {
		return nil, ErrNoLeasesFound
	}

	daysInYear := DaysInYear(input.FiscalYear)
	charges := input.Charges.Charges

	byConsumption := make([]bool, len(charges))
	water := make([]bool, len(charges))
	for i, charge := range charges {
		water[i] = c.IsWaterCategory(charge)
		byConsumption[i] = water[i] && input.Water != nil
	}

	statements := make([]Statement, 0, len(input.Leases))
	for _, lease := range input.Leases {
		occ, ok := occupancyWithin(lease.StartDate, lease.EndDate, input.FiscalYear)
		if !ok {
			continue
		}
		months := occupiedMonths(occ.days, daysInYear)
		perMonth := monthlyProvisions(input.BillingLines[lease.ID])

		stmt := Statement{
			LeaseID:        lease.ID,
			TenantID:       lease.TenantID,
			TenantName:     TenantDisplayName(lease.Tenant),
			UnitID:         lease.UnitID,
			UnitIdentifier: lease.Unit.Identifier,
			OccupancyStart: occ.start.Format(dateLayout),
			OccupancyEnd:   occ.end.Format(dateLayout),
			OccupiedDays:   occ.days,
			DaysInYear:     daysInYear,
			Charges:        make([]ChargeShare, 0, len(charges)),
		}

		for i, charge := range charges {
			share := ChargeShare{
				ChargeCategoryID: charge.ChargeCategoryID,
				Label:            charge.Label,
				TotalChargeCents: charge.AmountCents,
			}
			if byConsumption[i] {
				share.TenantShareCents = input.Water.AmountForUnit(lease.UnitID)
				share.IsWaterByConsumption = true
			} else {
				share.TenantShareCents = floorDiv(int64(occ.days)*charge.AmountCents, int64(daysInYear))
			}
			if !water[i] {
				share.ProvisionsPaidCents = perMonth[charge.ChargeCategoryID] * months
			}
			stmt.Charges = append(stmt.Charges, share)
		}
		stmt.recomputeTotals()
		statements = append(statements, stmt)
	}

	if len(statements) == 0 {
		return nil, ErrNoLeasesFound
	}

	c.sortByTenantName(statements)
	reallocateRemainders(statements, charges, byConsumption)

	return statements, nil
}

// sortByTenantName orders statements by locale-aware tenant name, then
// lease id. A collator is not safe for concurrent use so one is built per
// call.
func (c *Calculator) sortByTenantName(statements []Statement) {
	col := collate.New(c.collation)
	sort.SliceStable(statements, func(i, j int) bool {
		if cmp := col.CompareString(statements[i].TenantName, statements[j].TenantName); cmp != 0 {
			return cmp < 0
		}
		return statements[i].LeaseID < statements[j].LeaseID
	})
}

// reallocateRemainders gives the floor-rounding gap of each prorated
// category to the first statement. Gaps wider than one cent per statement
// come from uncovered periods and are kept.
func reallocateRemainders(statements []Statement, charges []AnnualCharge, byConsumption []bool) {
	first := &statements[0]
	touched := false
	for i, charge := range charges {
		if byConsumption[i] {
			continue
		}
		var allocated int64
		for _, s := range statements {
			allocated += s.Charges[i].TenantShareCents
		}
		gap := charge.AmountCents - allocated
		if gap == 0 || abs64(gap) > int64(len(statements)) {
			continue
		}
		first.Charges[i].TenantShareCents += gap
		touched = true
	}
	if touched {
		first.recomputeTotals()
	}
}

// monthlyProvisions sums the billing lines of a lease per charge category
func monthlyProvisions(lines []BillingLine) map[string]int64 {
	perMonth := make(map[string]int64, len(lines))
	for _, line := range lines {
		if line.ChargeCategoryID == nil {
			continue
		}
		perMonth[*line.ChargeCategoryID] += line.AmountCents
	}
	return perMonth
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
