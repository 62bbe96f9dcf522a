package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
)

func snapshotWithCurrent(v any) entities.TelemetrySnapshot {
	return entities.TelemetrySnapshot{CurrentAmps: entities.ParseReading(v)}
}

func TestDerive_ReferenceScenario(t *testing.T) {
	calc, err := NewCalculator(Params{SystemVoltage: 5, MaxRatedAmps: 0.5, FlatRatePerWh: 0.001, SolarSavingsFraction: 0.25})
	require.NoError(t, err)

	m := calc.Derive(snapshotWithCurrent(0.25))
	assert.InDelta(t, 1.25, m.PowerWatts, 1e-12)
	assert.InDelta(t, 50, m.UtilizationPct, 1e-12)
	assert.InDelta(t, 0.00125, m.HourlyCostRM, 1e-12)
	assert.InDelta(t, 0.0003125, m.HourlySavingsRM, 1e-12)
}

func TestDerive_UtilizationBounds(t *testing.T) {
	calc, err := NewCalculator(DefaultParams())
	require.NoError(t, err)

	tests := []struct {
		name    string
		current any
		want    float64
	}{
		{"idle", 0.0, 0},
		{"numeric string", "0.125", 25},
		{"rated", 0.5, 100},
		{"overload clamps", 3.0, 100},
		{"negative clamps", -1.0, 0},
		{"missing", nil, 0},
		{"malformed", "Loading...", 0},
		{"NaN text", "NaN", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := calc.Derive(snapshotWithCurrent(tt.current))
			assert.InDelta(t, tt.want, m.UtilizationPct, 1e-9)
			assert.GreaterOrEqual(t, m.UtilizationPct, 0.0)
			assert.LessOrEqual(t, m.UtilizationPct, 100.0)
		})
	}
}

func TestDerive_Idempotent(t *testing.T) {
	calc, err := NewCalculator(DefaultParams())
	require.NoError(t, err)
	s := snapshotWithCurrent("0.31")
	assert.Equal(t, calc.Derive(s), calc.Derive(s))
}

func TestParams_Validate(t *testing.T) {
	good := DefaultParams()
	require.NoError(t, good.Validate())

	bad := []Params{
		{SystemVoltage: 0, MaxRatedAmps: 1},
		{SystemVoltage: 5, MaxRatedAmps: 0},
		{SystemVoltage: 5, MaxRatedAmps: 1, FlatRatePerWh: -1},
		{SystemVoltage: 5, MaxRatedAmps: 1, SolarSavingsFraction: 1.5},
	}
	for _, p := range bad {
		_, err := NewCalculator(p)
		assert.ErrorIs(t, err, ErrInvalidParams, "%+v", p)
	}
}
