package billing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidRateTable is a configuration fault: the service must not start
// with a table that would produce wrong bills.
var ErrInvalidRateTable = errors.New("invalid rate table")

// Tier is one consumption bracket. An unbounded tier has no capacity and
// absorbs all remaining consumption; only the last tier may be unbounded.
type Tier struct {
	CapacityKWh float64 `toml:"capacity_kwh" json:"capacity_kwh"`
	RatePerKWh  float64 `toml:"rate_per_kwh" json:"rate_per_kwh"`
	Unbounded   bool    `toml:"unbounded" json:"unbounded"`
}

// RateTable is an ordered, immutable progressive tariff. Build it with
// NewRateTable; the zero value charges nothing.
type RateTable struct {
	tiers []tier
}

type tier struct {
	capacity  decimal.Decimal
	rate      decimal.Decimal
	unbounded bool
}

// NewRateTable validates the tiers and freezes them.
func NewRateTable(tiers []Tier) (RateTable, error) {
	if len(tiers) == 0 {
		return RateTable{}, fmt.Errorf("%w: no tiers", ErrInvalidRateTable)
	}
	out := make([]tier, 0, len(tiers))
	for i, t := range tiers {
		last := i == len(tiers)-1
		if !isFinite(t.RatePerKWh) || t.RatePerKWh < 0 {
			return RateTable{}, fmt.Errorf("%w: tier %d rate %v", ErrInvalidRateTable, i, t.RatePerKWh)
		}
		if t.Unbounded {
			if !last {
				return RateTable{}, fmt.Errorf("%w: unbounded tier %d is not last", ErrInvalidRateTable, i)
			}
			out = append(out, tier{rate: decimal.NewFromFloat(t.RatePerKWh), unbounded: true})
			continue
		}
		if !isFinite(t.CapacityKWh) || t.CapacityKWh < 0 {
			return RateTable{}, fmt.Errorf("%w: tier %d capacity %v", ErrInvalidRateTable, i, t.CapacityKWh)
		}
		if t.CapacityKWh == 0 && !last {
			return RateTable{}, fmt.Errorf("%w: tier %d has zero capacity", ErrInvalidRateTable, i)
		}
		out = append(out, tier{
			capacity: decimal.NewFromFloat(t.CapacityKWh),
			rate:     decimal.NewFromFloat(t.RatePerKWh),
		})
	}
	return RateTable{tiers: out}, nil
}

// ReferenceTable is the domestic tariff the dashboard ships with (RM/kWh):
// first 200 kWh at 0.218, next 100 at 0.334, next 300 at 0.516,
// next 300 at 0.546, everything above 900 at 0.571.
func ReferenceTable() RateTable {
	t, err := NewRateTable(ReferenceTiers())
	if err != nil {
		panic(err) // static data
	}
	return t
}

func ReferenceTiers() []Tier {
	return []Tier{
		{CapacityKWh: 200, RatePerKWh: 0.218},
		{CapacityKWh: 100, RatePerKWh: 0.334},
		{CapacityKWh: 300, RatePerKWh: 0.516},
		{CapacityKWh: 300, RatePerKWh: 0.546},
		{Unbounded: true, RatePerKWh: 0.571},
	}
}

// Tiers returns a copy of the table definition.
func (t RateTable) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	for i, tr := range t.tiers {
		out[i] = Tier{
			CapacityKWh: tr.capacity.InexactFloat64(),
			RatePerKWh:  tr.rate.InexactFloat64(),
			Unbounded:   tr.unbounded,
		}
	}
	return out
}

// Boundaries returns the cumulative kWh at which the marginal rate changes.
func (t RateTable) Boundaries() []float64 {
	var out []float64
	acc := decimal.Zero
	for i, tr := range t.tiers {
		if tr.unbounded || i == len(t.tiers)-1 {
			break
		}
		acc = acc.Add(tr.capacity)
		out = append(out, acc.InexactFloat64())
	}
	return out
}

// TierUsage is the share of a bill that fell into one tier.
type TierUsage struct {
	Index    int     `json:"index"`
	UnitsKWh float64 `json:"units_kwh"`
	Rate     float64 `json:"rate_per_kwh"`
	CostRM   float64 `json:"cost_rm"`
}

// Breakdown allocates totalKWh to the tiers in order. Tiers that receive no
// consumption are omitted. Consumption beyond a fully bounded table is not
// billed.
func (t RateTable) Breakdown(totalKWh float64) []TierUsage {
	remaining := decimal.NewFromFloat(clampKWh(totalKWh))
	var out []TierUsage
	for i, tr := range t.tiers {
		if !remaining.IsPositive() {
			break
		}
		units := remaining
		if !tr.unbounded {
			units = decimal.Min(remaining, tr.capacity)
		}
		if units.IsZero() {
			continue
		}
		out = append(out, TierUsage{
			Index:    i,
			UnitsKWh: units.InexactFloat64(),
			Rate:     tr.rate.InexactFloat64(),
			CostRM:   units.Mul(tr.rate).InexactFloat64(),
		})
		remaining = remaining.Sub(units)
	}
	return out
}

// ComputeCost returns the monthly cost in RM for totalKWh. Negative or NaN
// consumption counts as 0. The result is non-decreasing in totalKWh and
// continuous at tier boundaries.
func (t RateTable) ComputeCost(totalKWh float64) float64 {
	return t.cost(totalKWh).InexactFloat64()
}

func (t RateTable) cost(totalKWh float64) decimal.Decimal {
	remaining := decimal.NewFromFloat(clampKWh(totalKWh))
	total := decimal.Zero
	for _, tr := range t.tiers {
		if !remaining.IsPositive() {
			break
		}
		units := remaining
		if !tr.unbounded {
			units = decimal.Min(remaining, tr.capacity)
		}
		total = total.Add(units.Mul(tr.rate))
		remaining = remaining.Sub(units)
	}
	return total
}

// ComputeCost is the free-function form of RateTable.ComputeCost.
func ComputeCost(totalKWh float64, table RateTable) float64 {
	return table.ComputeCost(totalKWh)
}

func clampKWh(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
