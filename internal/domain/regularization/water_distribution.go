package regularization

import (
	"slices"
	"sort"

	"github.com/shopspring/decimal"
)

// WaterDistribution is the consumption-based split of the yearly water bill
// across units.
type WaterDistribution struct {
	FiscalYear       int              `json:"fiscalYear"`
	TotalAmountCents int64            `json:"totalAmountCents"`
	Distributions    []UnitWaterShare `json:"distributions"`
}

// UnitWaterShare is one unit's part of the water bill
type UnitWaterShare struct {
	UnitID      string          `json:"unitId"`
	Consumption decimal.Decimal `json:"consumption"`
	Percentage  decimal.Decimal `json:"percentage"`
	AmountCents int64           `json:"amountCents"`
	IsMetered   bool            `json:"isMetered"`
}

// AmountForUnit returns the unit's share, or 0 for a unit missing from the
// distribution.
func (d *WaterDistribution) AmountForUnit(unitID string) int64 {
	if d == nil {
		return 0
	}
	for _, u := range d.Distributions {
		if u.UnitID == unitID {
			return u.AmountCents
		}
	}
	return 0
}

// MeterReading is the yearly index pair of one unit's water meter
type MeterReading struct {
	UnitID        string
	PreviousIndex decimal.Decimal
	CurrentIndex  decimal.Decimal
}

// Consumption is current minus previous index, never negative
func (r MeterReading) Consumption() decimal.Decimal {
	c := r.CurrentIndex.Sub(r.PreviousIndex)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// DistributeWater splits totalCents across units proportionally to metered
// consumption. Units without a reading are unmetered and pay nothing. The
// cents lost to flooring go one at a time to the largest consumers.
//
// It returns nil when there is nothing to distribute by consumption, in which
// case water is prorated by occupancy like any other charge.
func DistributeWater(fiscalYear int, totalCents int64, unitIDs []string, readings []MeterReading) *WaterDistribution {
	byUnit := make(map[string]decimal.Decimal, len(readings))
	totalConsumption := decimal.Zero
	for _, r := range readings {
		c := r.Consumption()
		byUnit[r.UnitID] = byUnit[r.UnitID].Add(c)
		totalConsumption = totalConsumption.Add(c)
	}
	if totalConsumption.IsZero() {
		return nil
	}

	units := append([]string(nil), unitIDs...)
	for id := range byUnit {
		if !slices.Contains(units, id) {
			units = append(units, id)
		}
	}
	sort.Strings(units)

	total := decimal.NewFromInt(totalCents)
	shares := make([]UnitWaterShare, 0, len(units))
	var allocated int64
	for _, id := range units {
		consumption, metered := byUnit[id]
		share := UnitWaterShare{
			UnitID:      id,
			Consumption: consumption,
			Percentage:  decimal.Zero,
			IsMetered:   metered,
		}
		if metered && consumption.IsPositive() {
			q, _ := total.Mul(consumption).QuoRem(totalConsumption, 0)
			share.AmountCents = q.IntPart()
			share.Percentage = consumption.Mul(decimal.NewFromInt(100)).DivRound(totalConsumption, 2)
		}
		allocated += share.AmountCents
		shares = append(shares, share)
	}

	distributeLeftover(shares, totalCents-allocated)

	return &WaterDistribution{
		FiscalYear:       fiscalYear,
		TotalAmountCents: totalCents,
		Distributions:    shares,
	}
}

func distributeLeftover(shares []UnitWaterShare, leftover int64) {
	order := make([]int, 0, len(shares))
	for i, s := range shares {
		if s.Consumption.IsPositive() {
			order = append(order, i)
		}
	}
	if leftover <= 0 || len(order) == 0 {
		return
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := shares[order[a]].Consumption, shares[order[b]].Consumption
		if !ca.Equal(cb) {
			return ca.GreaterThan(cb)
		}
		return shares[order[a]].UnitID < shares[order[b]].UnitID
	})
	for i := 0; leftover > 0; i++ {
		shares[order[i%len(order)]].AmountCents++
		leftover--
	}
}
