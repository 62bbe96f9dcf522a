package entities

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		status ReadingStatus
		value  float64
	}{
		{"number", 0.25, ReadingOK, 0.25},
		{"int", 3, ReadingOK, 3},
		{"numeric string", " 12.5 ", ReadingOK, 12.5},
		{"json number", json.Number("7"), ReadingOK, 7},
		{"nil", nil, ReadingMissing, 0},
		{"empty string", "  ", ReadingMissing, 0},
		{"placeholder", "Loading...", ReadingMalformed, 0},
		{"NaN text", "NaN", ReadingMalformed, 0},
		{"Inf text", "Inf", ReadingMalformed, 0},
		{"NaN float", math.NaN(), ReadingMalformed, 0},
		{"bool", true, ReadingMalformed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseReading(tt.in)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.value, r.Float())
		})
	}
}

func TestReadingErr(t *testing.T) {
	assert.NoError(t, NumericReading(1).Err())
	assert.ErrorIs(t, ParseReading(nil).Err(), ErrMissingField)
	assert.ErrorIs(t, ParseReading("x").Err(), ErrMalformedNumeric)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"ai": ModeAI, "AI": ModeAI, " Manual ": ModeManual} {
		m, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, m)
	}
	_, err := ParseMode(nil)
	assert.ErrorIs(t, err, ErrMissingField)
	for _, bad := range []string{"turbo", "auto", "autonomous"} {
		_, err = ParseMode(bad)
		assert.Error(t, err, bad)
	}
	_, err = ParseMode(1.0)
	assert.Error(t, err)

	assert.Equal(t, ModeManual, ModeAI.Toggle())
	assert.Equal(t, ModeAI, ModeManual.Toggle())
	assert.Equal(t, ModeManual, ModeUnknown.Toggle())
}

func TestParseSwitchAndLevel(t *testing.T) {
	s, err := ParseSwitch("on")
	require.NoError(t, err)
	assert.Equal(t, SwitchOn, s)
	s, err = ParseSwitch(false)
	require.NoError(t, err)
	assert.Equal(t, SwitchOff, s)
	_, err = ParseSwitch("maybe")
	assert.Error(t, err)
	assert.Equal(t, SwitchOn, SwitchUnknown.Toggle())

	l, err := ParseLevel(1.0)
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, l)
	l, err = ParseLevel("low")
	require.NoError(t, err)
	assert.Equal(t, LevelLow, l)
	_, err = ParseLevel(2.0)
	assert.Error(t, err)
	_, err = ParseLevel("")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestControlStateKnown(t *testing.T) {
	assert.False(t, ControlState{}.Known())
	assert.True(t, ControlState{Mode: ModeAI}.Known())
}

func TestAmountJSON(t *testing.T) {
	b, err := json.Marshal(Unavailable)
	require.NoError(t, err)
	assert.JSONEq(t, `"unavailable"`, string(b))

	b, err = json.Marshal(Available(123.45))
	require.NoError(t, err)
	assert.JSONEq(t, `123.45`, string(b))

	assert.Equal(t, Unavailable, Available(math.Inf(1)))
	assert.Equal(t, "unavailable", Unavailable.String())
	assert.Equal(t, "0.00", Available(0).String())

	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"88.1"`), &a))
	assert.Equal(t, Available(88.1), a)
	require.NoError(t, json.Unmarshal([]byte(`"unavailable"`), &a))
	assert.Equal(t, Unavailable, a)
	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.Equal(t, Unavailable, a)
	require.NoError(t, json.Unmarshal([]byte(`0`), &a))
	assert.Equal(t, Available(0), a)
	assert.Error(t, json.Unmarshal([]byte(`{}`), &a))
}
