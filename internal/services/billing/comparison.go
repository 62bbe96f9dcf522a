package billing

import (
	"math"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
)

// BillingSummary compares the estimated bill for this month with the bill
// recorded for the previous one.
type BillingSummary struct {
	EstimatedMonthlyCostRM    float64         `json:"estimated_monthly_cost_rm"`
	EstimatedMonthlySavingsRM float64         `json:"estimated_monthly_savings_rm"`
	EstimatedCurrentBillRM    float64         `json:"estimated_current_bill_rm"`
	PreviousBillRM            entities.Amount `json:"previous_bill_rm"`
	TotalSavingsRM            entities.Amount `json:"total_savings_rm"`
	SavingsPct                entities.Amount `json:"savings_pct"`
}

// Compare applies the solar savings fraction to the tiered monthly cost and,
// when the previous bill is known, compares the two. Without a previous bill
// the savings fields stay unavailable rather than comparing against a guess.
func Compare(monthlyCostRM, solarSavingsFraction float64, previousBillRM entities.Amount) BillingSummary {
	if math.IsNaN(monthlyCostRM) || monthlyCostRM < 0 {
		monthlyCostRM = 0
	}
	if math.IsNaN(solarSavingsFraction) {
		solarSavingsFraction = 0
	}
	savings := monthlyCostRM * solarSavingsFraction
	current := monthlyCostRM - savings

	s := BillingSummary{
		EstimatedMonthlyCostRM:    monthlyCostRM,
		EstimatedMonthlySavingsRM: savings,
		EstimatedCurrentBillRM:    current,
		PreviousBillRM:            previousBillRM,
		TotalSavingsRM:            entities.Unavailable,
		SavingsPct:                entities.Unavailable,
	}
	prev, ok := previousBillRM.Get()
	if !ok {
		return s
	}
	total := prev - current
	s.TotalSavingsRM = entities.Available(total)
	if prev > 0 {
		s.SavingsPct = entities.Available(total / prev * 100)
	} else {
		s.SavingsPct = entities.Available(0)
	}
	return s
}
