package billing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
)

func TestCompare_WithPreviousBill(t *testing.T) {
	// 100 RM monthly cost with 20% solar savings -> 80 RM current bill
	s := Compare(100, 0.2, entities.Available(100))

	assert.InDelta(t, 100, s.EstimatedMonthlyCostRM, 1e-9)
	assert.InDelta(t, 20, s.EstimatedMonthlySavingsRM, 1e-9)
	assert.InDelta(t, 80, s.EstimatedCurrentBillRM, 1e-9)

	total, ok := s.TotalSavingsRM.Get()
	require.True(t, ok)
	assert.InDelta(t, 20, total, 1e-9)

	pct, ok := s.SavingsPct.Get()
	require.True(t, ok)
	assert.InDelta(t, 20, pct, 1e-9)
}

func TestCompare_WithoutPreviousBill(t *testing.T) {
	s := Compare(60.3, 0.3, entities.Unavailable)

	assert.False(t, s.PreviousBillRM.Valid)
	assert.False(t, s.TotalSavingsRM.Valid)
	assert.False(t, s.SavingsPct.Valid)
	assert.False(t, math.IsNaN(s.TotalSavingsRM.Value))

	b, err := json.Marshal(s)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "unavailable", raw["total_savings_rm"])
	assert.Equal(t, "unavailable", raw["savings_pct"])
	assert.Equal(t, "unavailable", raw["previous_bill_rm"])
}

func TestCompare_ZeroPreviousBill(t *testing.T) {
	s := Compare(50, 0.3, entities.Available(0))

	total, ok := s.TotalSavingsRM.Get()
	require.True(t, ok)
	assert.InDelta(t, -35, total, 1e-9)

	pct, ok := s.SavingsPct.Get()
	require.True(t, ok)
	assert.Zero(t, pct)
}

func TestCompare_HigherBillThanBefore(t *testing.T) {
	s := Compare(200, 0, entities.Available(150))
	total, _ := s.TotalSavingsRM.Get()
	pct, _ := s.SavingsPct.Get()
	assert.InDelta(t, -50, total, 1e-9)
	assert.InDelta(t, -33.333333, pct, 1e-5)
}

func TestCompare_TieredCostScenario(t *testing.T) {
	cost := ReferenceTable().ComputeCost(250)
	s := Compare(cost, 0.5, entities.Available(60.3))
	assert.InDelta(t, 30.15, s.EstimatedCurrentBillRM, 1e-9)
	pct, _ := s.SavingsPct.Get()
	assert.InDelta(t, 50, pct, 1e-9)
}
