// Package pipeline recomputes the derived view every time the store
// pushes a snapshot and hands it to the presentation layer and sinks.
package pipeline

import (
	"errors"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sems_project/internal/services/billing"
	"github.com/LeonardoBeccarini/sems_project/internal/services/derive"
	"github.com/LeonardoBeccarini/sems_project/internal/services/status"
)

type ViewStatus string

const (
	ViewOK          ViewStatus = "ok"
	ViewUnavailable ViewStatus = "unavailable"
)

// notAvailable is what a gauge shows for a field the installation did not send.
const notAvailable = "N/A"

// Indicator is one gauge on the dashboard.
type Indicator struct {
	Key     string         `json:"key"`
	Context status.Context `json:"context"`
	Display string         `json:"display"`
	Band    status.Band    `json:"band"`
	Color   status.Color   `json:"color"`
	Fill    float64        `json:"fill"`
}

// DerivedView is everything the presentation layer needs for one snapshot.
// A view is never modified after Build returns it.
type DerivedView struct {
	Seq        uint64     `json:"seq"`
	ComputedAt time.Time  `json:"computed_at"`
	Status     ViewStatus `json:"status"`
	Error      string     `json:"error,omitempty"`

	Snapshot  *entities.TelemetrySnapshot `json:"snapshot,omitempty"`
	Metrics   *derive.DerivedMetrics      `json:"metrics,omitempty"`
	Billing   *billing.BillingSummary     `json:"billing,omitempty"`
	Breakdown []billing.TierUsage         `json:"tier_breakdown,omitempty"`

	Control               *entities.ControlState `json:"control,omitempty"`
	ManualControlsEnabled bool                   `json:"manual_controls_enabled"`

	Indicators []Indicator `json:"indicators,omitempty"`
	Issues     []string    `json:"issues,omitempty"`
}

func (v DerivedView) Available() bool { return v.Status == ViewOK }

// Builder holds the installation constants a view is derived with.
type Builder struct {
	Calc  *derive.Calculator
	Table billing.RateTable
}

// Build is pure: it reads only its arguments.
func (b Builder) Build(s entities.TelemetrySnapshot, issues []entities.FieldIssue, prevBill entities.Amount) DerivedView {
	m := b.Calc.Derive(s)
	kwh := s.CumulativeEnergyKWh.Float()
	summary := billing.Compare(b.Table.ComputeCost(kwh), b.Calc.Params().SolarSavingsFraction, prevBill)
	control := s.Control

	v := DerivedView{
		Status:                ViewOK,
		Snapshot:              &s,
		Metrics:               &m,
		Billing:               &summary,
		Breakdown:             b.Table.Breakdown(kwh),
		Control:               &control,
		ManualControlsEnabled: control.Mode == entities.ModeManual,
	}
	v.Indicators = indicators(s, m, summary)
	for _, is := range issues {
		v.Issues = append(v.Issues, is.Error())
	}
	return v
}

// UnavailableView replaces the last view when the store cannot be read.
// It carries no data at all, so nothing stale is ever shown.
func UnavailableView(err error) DerivedView {
	if err == nil {
		err = errors.New("telemetry store unavailable")
	}
	return DerivedView{Status: ViewUnavailable, Error: err.Error()}
}

func indicators(s entities.TelemetrySnapshot, m derive.DerivedMetrics, sum billing.BillingSummary) []Indicator {
	return []Indicator{
		reading(messages.KeyLDR, s.LDR),
		reading(messages.KeyBrightness, s.Brightness),
		reading(messages.KeyTemp, s.TemperatureC),
		reading(messages.KeyFanSpeed, s.FanSpeedPct),
		level(messages.KeyPIR, s.PIR),
		level(messages.KeyRain, s.Rain),
		indicator("utilization_pct", status.Energy, entities.NumericReading(m.UtilizationPct).Raw, m.UtilizationPct),
		indicator("savings_pct", status.Energy, sum.SavingsPct.String(), sum.SavingsPct),
		indicator(messages.KeyFanManual, status.Binary, display(string(s.Control.FanManual)), s.Control.FanManual),
		indicator(messages.KeyLightManual, status.Binary, display(string(s.Control.LightManual)), s.Control.LightManual),
	}
}

func reading(key string, r entities.Reading) Indicator {
	d := notAvailable
	if r.Status != entities.ReadingMissing && r.Raw != "" {
		d = r.Raw
	}
	return indicator(key, status.General, d, r)
}

func level(key string, l entities.Level) Indicator {
	return indicator(key, status.SecondaryBinary, display(string(l)), l)
}

func indicator(key string, ctx status.Context, disp string, value any) Indicator {
	band, color := status.Classify(value, ctx)
	return Indicator{
		Key:     key,
		Context: ctx,
		Display: strings.ToUpper(disp),
		Band:    band,
		Color:   color,
		Fill:    status.GaugeFill(value),
	}
}

func display(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
