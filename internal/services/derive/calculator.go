// Package derive turns the raw readings of one snapshot into the
// instantaneous quantities shown on the dashboard.
//
// Hourly cost uses a flat per-Wh rate; the monthly estimate (package
// billing) uses the progressive tariff. Do not mix the two.
package derive

import (
	"errors"
	"fmt"
	"math"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
)

// Params are fixed per installation and loaded once at start-up.
type Params struct {
	SystemVoltage        float64 // V
	MaxRatedAmps         float64 // A, 100% utilization
	FlatRatePerWh        float64 // RM per Wh
	SolarSavingsFraction float64 // 0..1
}

// DefaultParams match the demo installation: a 5 V rail rated at 0.5 A.
func DefaultParams() Params {
	return Params{
		SystemVoltage:        5,
		MaxRatedAmps:         0.5,
		FlatRatePerWh:        0.000571,
		SolarSavingsFraction: 0.3,
	}
}

var ErrInvalidParams = errors.New("invalid derive params")

func (p Params) Validate() error {
	switch {
	case !(p.SystemVoltage > 0) || math.IsInf(p.SystemVoltage, 0):
		return fmt.Errorf("%w: system voltage %v", ErrInvalidParams, p.SystemVoltage)
	case !(p.MaxRatedAmps > 0) || math.IsInf(p.MaxRatedAmps, 0):
		return fmt.Errorf("%w: max rated amps %v", ErrInvalidParams, p.MaxRatedAmps)
	case !(p.FlatRatePerWh >= 0) || math.IsInf(p.FlatRatePerWh, 0):
		return fmt.Errorf("%w: flat rate %v", ErrInvalidParams, p.FlatRatePerWh)
	case !(p.SolarSavingsFraction >= 0 && p.SolarSavingsFraction <= 1):
		return fmt.Errorf("%w: solar savings fraction %v", ErrInvalidParams, p.SolarSavingsFraction)
	}
	return nil
}

// DerivedMetrics depend only on the latest snapshot.
type DerivedMetrics struct {
	PowerWatts      float64 `json:"power_watts"`
	UtilizationPct  float64 `json:"utilization_pct"`
	HourlyCostRM    float64 `json:"hourly_cost_rm"`
	HourlySavingsRM float64 `json:"hourly_savings_rm"`
}

type Calculator struct {
	p Params
}

func NewCalculator(p Params) (*Calculator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{p: p}, nil
}

func (c *Calculator) Params() Params { return c.p }

// Derive is pure: the same snapshot always yields the same metrics.
// A missing or malformed current reading counts as 0 A.
func (c *Calculator) Derive(s entities.TelemetrySnapshot) DerivedMetrics {
	amps := s.CurrentAmps.Float()
	if amps < 0 {
		amps = 0
	}
	power := amps * c.p.SystemVoltage
	util := amps / c.p.MaxRatedAmps * 100
	if util > 100 {
		util = 100
	}
	hourlyCost := power * c.p.FlatRatePerWh // one hour at this draw = power Wh
	return DerivedMetrics{
		PowerWatts:      power,
		UtilizationPct:  util,
		HourlyCostRM:    hourlyCost,
		HourlySavingsRM: hourlyCost * c.p.SolarSavingsFraction,
	}
}
