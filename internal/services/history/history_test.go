package history

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/billing"
	"github.com/LeonardoBeccarini/sems_project/internal/services/derive"
	"github.com/LeonardoBeccarini/sems_project/internal/services/pipeline"
)

func fieldMap(t *testing.T, v pipeline.DerivedView) (map[string]string, map[string]any) {
	t.Helper()
	p := ViewToPoint(v)
	tags := map[string]string{}
	for _, tg := range p.TagList() {
		tags[tg.Key] = tg.Value
	}
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	return tags, fields
}

func TestViewToPoint_AvailableView(t *testing.T) {
	calc, err := derive.NewCalculator(derive.DefaultParams())
	require.NoError(t, err)
	b := pipeline.Builder{Calc: calc, Table: billing.ReferenceTable()}
	s := entities.TelemetrySnapshot{
		CurrentAmps:         entities.NumericReading(0.25),
		CumulativeEnergyKWh: entities.NumericReading(250),
		Control:             entities.ControlState{Mode: entities.ModeAI},
	}
	v := b.Build(s, nil, entities.Unavailable)
	v.Seq = 3
	v.ComputedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := ViewToPoint(v)
	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, v.ComputedAt, p.Time())

	tags, fields := fieldMap(t, v)
	assert.Equal(t, "ok", tags["status"])
	assert.Equal(t, "ai", tags["mode"])
	assert.Equal(t, int64(1), fields["available"])
	assert.Equal(t, 1.25, fields["power_watts"])
	assert.InDelta(t, 60.3, fields["monthly_cost_rm"], 1e-9)
	assert.Equal(t, 250.0, fields["cumulative_kwh"])
	_, hasPct := fields["savings_pct"]
	assert.False(t, hasPct, "unavailable savings are not written as 0")
	_, hasTemp := fields["temp_c"]
	assert.False(t, hasTemp)
}

func TestViewToPoint_UnavailableView(t *testing.T) {
	tags, fields := fieldMap(t, pipeline.UnavailableView(nil))
	assert.Equal(t, "unavailable", tags["status"])
	_, hasMode := tags["mode"]
	assert.False(t, hasMode)
	assert.Equal(t, int64(0), fields["available"])
	assert.Len(t, fields, 2)
}

func TestParseQuery(t *testing.T) {
	p, err := parseQuery(httptest.NewRequest("GET", "/history", nil))
	require.NoError(t, err)
	assert.Equal(t, "power_watts", p.Field)
	assert.Equal(t, 60, p.Minutes)

	p, err = parseQuery(httptest.NewRequest("GET", "/history?field=savings_pct&minutes=0&limit=99999", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Minutes)
	assert.Equal(t, 5000, p.Limit)

	_, err = parseQuery(httptest.NewRequest("GET", "/history?field=drop_bucket", nil))
	assert.Error(t, err)
}

func TestBuildFlux(t *testing.T) {
	q := buildFlux("energy", queryParams{Field: "power_watts", Minutes: 15, Limit: 10})
	assert.Contains(t, q, `from(bucket: "energy")`)
	assert.Contains(t, q, "range(start: -15m)")
	assert.Contains(t, q, `r._field == "power_watts"`)
	assert.Contains(t, q, "limit(n:10)")
}
