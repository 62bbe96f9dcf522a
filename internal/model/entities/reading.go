package entities

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingField marks an absent telemetry key. Non-fatal: the value defaults to 0.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedNumeric marks a value that cannot be read as a finite number.
	ErrMalformedNumeric = errors.New("malformed numeric")
)

// ReadingStatus tells whether a numeric telemetry value can be used.
type ReadingStatus string

const (
	ReadingOK        ReadingStatus = "ok"
	ReadingMissing   ReadingStatus = "missing"
	ReadingMalformed ReadingStatus = "malformed"
)

// Reading is the result of parsing one numeric telemetry field.
// Raw keeps what the installation actually sent, for display.
type Reading struct {
	Value  float64       `json:"value"`
	Status ReadingStatus `json:"status"`
	Raw    string        `json:"raw,omitempty"`
}

// NumericReading builds a valid reading.
func NumericReading(v float64) Reading {
	return Reading{Value: v, Status: ReadingOK, Raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

func (r Reading) OK() bool { return r.Status == ReadingOK }

// Float returns the value, or 0 when the reading is not usable.
func (r Reading) Float() float64 {
	if r.Status != ReadingOK {
		return 0
	}
	return r.Value
}

// Err maps the status onto the error taxonomy (nil when usable).
func (r Reading) Err() error {
	switch r.Status {
	case ReadingOK:
		return nil
	case ReadingMissing:
		return ErrMissingField
	default:
		return ErrMalformedNumeric
	}
}

// ParseReading accepts the shapes the installation emits: JSON numbers,
// numeric strings ("0.25", " 12 ") or nothing at all. It never panics and
// never returns NaN or Inf as a usable value.
func ParseReading(v any) Reading {
	switch x := v.(type) {
	case nil:
		return Reading{Status: ReadingMissing}
	case float64:
		return finite(x, strconv.FormatFloat(x, 'f', -1, 64))
	case float32:
		return finite(float64(x), strconv.FormatFloat(float64(x), 'f', -1, 32))
	case int:
		return NumericReading(float64(x))
	case int64:
		return NumericReading(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Reading{Status: ReadingMalformed, Raw: x.String()}
		}
		return finite(f, x.String())
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return Reading{Status: ReadingMissing}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Reading{Status: ReadingMalformed, Raw: s}
		}
		return finite(f, s)
	default:
		return Reading{Status: ReadingMalformed}
	}
}

func finite(f float64, raw string) Reading {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Reading{Status: ReadingMalformed, Raw: raw}
	}
	return Reading{Value: f, Status: ReadingOK, Raw: raw}
}
