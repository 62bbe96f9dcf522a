// Package status maps raw or derived values onto the bands used for
// alerting and gauge colors.
package status

import (
	"math"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
)

// Context selects the thresholds applied to a value.
type Context string

const (
	// General sensors: <=30 critical, <=70 warning, above good.
	General Context = "general"
	// Energy metrics: <=10 critical, <=50 warning, above good. A low value
	// means low savings/output, so low is the bad end here too.
	Energy Context = "energy"
	// Binary actuators (ON/OFF).
	Binary Context = "binary"
	// Auxiliary two-state sensors, always shown as info.
	SecondaryBinary Context = "secondaryBinary"
)

type Band string

const (
	Critical      Band = "critical"
	Warning       Band = "warning"
	Good          Band = "good"
	Info          Band = "info"
	Indeterminate Band = "indeterminate"
)

// Color is the hex color the presentation layer paints for a band.
type Color string

var bandColors = map[Band]Color{
	Critical:      "#e74c3c",
	Warning:       "#f39c12",
	Good:          "#2ecc71",
	Info:          "#007bff",
	Indeterminate: "#9b59b6",
}

func (b Band) Color() Color {
	if c, ok := bandColors[b]; ok {
		return c
	}
	return bandColors[Indeterminate]
}

type thresholds struct{ low, high float64 }

var numeric = map[Context]thresholds{
	General: {low: 30, high: 70},
	Energy:  {low: 10, high: 50},
	Binary:  {low: 30, high: 70},
}

// Classify never fails: anything it does not recognize (placeholders like
// "Loading..." or "N/A", NaN, Inf, nil, unknown types) is Indeterminate.
func Classify(value any, ctx Context) (Band, Color) {
	b := classify(value, ctx)
	return b, b.Color()
}

func classify(value any, ctx Context) Band {
	if f, ok := toNumber(value); ok {
		if ctx == SecondaryBinary {
			return Info
		}
		t, ok := numeric[ctx]
		if !ok {
			return Indeterminate
		}
		switch {
		case f <= t.low:
			return Critical
		case f <= t.high:
			return Warning
		default:
			return Good
		}
	}

	word, ok := toWord(value)
	if !ok {
		return Indeterminate
	}
	switch word {
	case "HIGH", "ON":
		if ctx == SecondaryBinary {
			return Info
		}
		return Good
	case "LOW", "OFF":
		if ctx == SecondaryBinary {
			return Info
		}
		return Warning
	}
	return Indeterminate
}

// GaugeFill is the percentage of the ring drawn for a value: numbers are
// clamped to [0,100], anything else draws a full ring.
func GaugeFill(value any) float64 {
	f, ok := toNumber(value)
	if !ok {
		return 100
	}
	return math.Min(100, math.Max(0, f))
}

func toNumber(value any) (float64, bool) {
	var f float64
	switch x := value.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case entities.Reading:
		if !x.OK() {
			return 0, false
		}
		f = x.Value
	case entities.Amount:
		if !x.Valid {
			return 0, false
		}
		f = x.Value
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = v
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toWord(value any) (string, bool) {
	switch x := value.(type) {
	case string:
		return strings.ToUpper(strings.TrimSpace(x)), true
	case entities.Level:
		return string(x), x != entities.LevelUnknown
	case entities.SwitchState:
		return string(x), x != entities.SwitchUnknown
	case bool:
		if x {
			return "ON", true
		}
		return "OFF", true
	}
	return "", false
}
