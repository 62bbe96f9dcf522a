package entities

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

const unavailableText = "unavailable"

// Amount is a value that may not be known yet. The zero value is the
// "unavailable" sentinel: it is encoded as the string "unavailable" so a
// consumer can never confuse it with a real 0.
type Amount struct {
	Value float64
	Valid bool
}

// Unavailable is the sentinel amount.
var Unavailable = Amount{}

// Available wraps a known value. NaN and Inf stay unavailable.
func Available(v float64) Amount {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}
	return Amount{Value: v, Valid: true}
}

// Get returns the value and whether it is known.
func (a Amount) Get() (float64, bool) { return a.Value, a.Valid }

func (a Amount) String() string {
	if !a.Valid {
		return unavailableText
	}
	return strconv.FormatFloat(a.Value, 'f', 2, 64)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte(`"` + unavailableText + `"`), nil
	}
	return json.Marshal(a.Value)
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = Unavailable
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r := ParseReading(s)
		if r.OK() {
			*a = Available(r.Value)
		} else {
			*a = Unavailable
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Available(f)
	return nil
}
