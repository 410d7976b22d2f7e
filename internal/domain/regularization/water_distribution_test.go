package regularization

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(unitID string, previous, current int64) MeterReading {
	return MeterReading{
		UnitID:        unitID,
		PreviousIndex: decimal.NewFromInt(previous),
		CurrentIndex:  decimal.NewFromInt(current),
	}
}

func TestDistributeWater(t *testing.T) {
	t.Run("splits proportionally and hands leftover cents to largest consumers", func(t *testing.T) {
		d := DistributeWater(2025, 10000, []string{"u1", "u2", "u3"}, []MeterReading{
			reading("u1", 100, 110),
			reading("u2", 50, 60),
			reading("u3", 0, 10),
		})
		require.NotNil(t, d)
		require.Len(t, d.Distributions, 3)

		// 10000/3 = 3333 each, one leftover cent to u1 (ties broken by unit id)
		assert.Equal(t, int64(3334), d.AmountForUnit("u1"))
		assert.Equal(t, int64(3333), d.AmountForUnit("u2"))
		assert.Equal(t, int64(3333), d.AmountForUnit("u3"))
		assert.Equal(t, "33.33", d.Distributions[0].Percentage.StringFixed(2))
	})

	t.Run("unmetered units pay nothing", func(t *testing.T) {
		d := DistributeWater(2025, 60000, []string{"u1", "u2"}, []MeterReading{reading("u1", 0, 42)})
		require.NotNil(t, d)

		assert.Equal(t, int64(60000), d.AmountForUnit("u1"))
		assert.Equal(t, int64(0), d.AmountForUnit("u2"))
		assert.False(t, d.Distributions[1].IsMetered)
		assert.True(t, d.Distributions[0].IsMetered)
		assert.Equal(t, "100.00", d.Distributions[0].Percentage.StringFixed(2))
	})

	t.Run("meter rollback counts as zero consumption", func(t *testing.T) {
		d := DistributeWater(2025, 900, nil, []MeterReading{reading("u1", 50, 40), reading("u2", 0, 3)})
		require.NotNil(t, d)
		assert.Equal(t, int64(0), d.AmountForUnit("u1"))
		assert.Equal(t, int64(900), d.AmountForUnit("u2"))
	})

	t.Run("no consumption yields no distribution", func(t *testing.T) {
		assert.Nil(t, DistributeWater(2025, 900, []string{"u1"}, nil))
		assert.Nil(t, DistributeWater(2025, 900, []string{"u1"}, []MeterReading{reading("u1", 5, 5)}))
	})

	t.Run("sum always matches the bill", func(t *testing.T) {
		d := DistributeWater(2025, 123457, nil, []MeterReading{
			reading("a", 0, 7), reading("b", 0, 13), reading("c", 0, 29), reading("d", 0, 1),
		})
		var sum int64
		for _, u := range d.Distributions {
			sum += u.AmountCents
		}
		assert.Equal(t, int64(123457), sum)
	})
}

func TestWaterDistribution_AmountForUnitOnNil(t *testing.T) {
	var d *WaterDistribution
	assert.Equal(t, int64(0), d.AmountForUnit("u1"))
}
