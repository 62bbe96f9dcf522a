package history

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/pipeline"
)

const Measurement = "energy_view"

// Fields interrogabili tramite /history.
var Fields = []string{
	"power_watts", "utilization_pct", "hourly_cost_rm", "hourly_savings_rm",
	"monthly_cost_rm", "current_bill_rm", "total_savings_rm", "savings_pct",
	"cumulative_kwh", "current_amps", "temp_c", "available",
}

// ViewToPoint appiattisce una view in un punto Influx. Una view non disponibile
// scrive solo available=0, così i buchi restano visibili nella serie.
func ViewToPoint(v pipeline.DerivedView) *write.Point {
	tags := map[string]string{"status": string(v.Status)}
	fields := map[string]interface{}{
		"seq":       int64(v.Seq),
		"available": int64(0),
	}
	if v.Available() {
		fields["available"] = int64(1)
	}
	if v.Control != nil && v.Control.Mode != entities.ModeUnknown {
		tags["mode"] = string(v.Control.Mode)
	}
	if m := v.Metrics; m != nil {
		fields["power_watts"] = m.PowerWatts
		fields["utilization_pct"] = m.UtilizationPct
		fields["hourly_cost_rm"] = m.HourlyCostRM
		fields["hourly_savings_rm"] = m.HourlySavingsRM
	}
	if b := v.Billing; b != nil {
		fields["monthly_cost_rm"] = b.EstimatedMonthlyCostRM
		fields["current_bill_rm"] = b.EstimatedCurrentBillRM
		if x, ok := b.TotalSavingsRM.Get(); ok {
			fields["total_savings_rm"] = x
		}
		if x, ok := b.SavingsPct.Get(); ok {
			fields["savings_pct"] = x
		}
	}
	if s := v.Snapshot; s != nil {
		if s.CumulativeEnergyKWh.OK() {
			fields["cumulative_kwh"] = s.CumulativeEnergyKWh.Value
		}
		if s.CurrentAmps.OK() {
			fields["current_amps"] = s.CurrentAmps.Value
		}
		if s.TemperatureC.OK() {
			fields["temp_c"] = s.TemperatureC.Value
		}
	}
	return influxdb2.NewPoint(Measurement, tags, fields, v.ComputedAt)
}
