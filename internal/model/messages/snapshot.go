package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
)

// Keys of the snapshot document published by the installation.
const (
	KeyCurrent        = "current"
	KeyBrightness     = "brightness"
	KeyLDR            = "ldr"
	KeyPIR            = "pir"
	KeyRain           = "rain"
	KeyFanSpeed       = "fan_speed"
	KeyTemp           = "temp"
	KeyOverallCurrent = "overall_current" // cumulative kWh
	KeyMode           = "mode"
	KeyFanManual      = "fan_manual"
	KeyLightManual    = "light_manual"
	KeyPrevMonth      = "prev_month"
)

var ErrNotAnObject = errors.New("snapshot payload is not a JSON object")

// Snapshot is the raw document as it travels on the wire. Values keep
// whatever type the firmware chose (numbers, numeric strings, LOW/HIGH).
type Snapshot map[string]any

// DecodeSnapshot parses a snapshot payload. Only a payload that is not a
// JSON object is an error: every field-level fault is defaulted and reported
// in the returned issues.
func DecodeSnapshot(payload []byte) (entities.TelemetrySnapshot, []entities.FieldIssue, error) {
	var raw Snapshot
	if err := json.Unmarshal(payload, &raw); err != nil {
		return entities.TelemetrySnapshot{}, nil, fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}
	if raw == nil {
		return entities.TelemetrySnapshot{}, nil, ErrNotAnObject
	}
	s, issues := raw.Typed()
	return s, issues, nil
}

// Typed converts the raw document into a TelemetrySnapshot.
func (s Snapshot) Typed() (entities.TelemetrySnapshot, []entities.FieldIssue) {
	var issues []entities.FieldIssue
	num := func(key string) entities.Reading {
		r := entities.ParseReading(s[key])
		if err := r.Err(); err != nil {
			issues = append(issues, entities.FieldIssue{Field: key, Err: err})
		}
		return r
	}
	level := func(key string) entities.Level {
		l, err := entities.ParseLevel(s[key])
		if err != nil {
			issues = append(issues, entities.FieldIssue{Field: key, Err: err})
		}
		return l
	}
	sw := func(key string) entities.SwitchState {
		v, err := entities.ParseSwitch(s[key])
		if err != nil {
			issues = append(issues, entities.FieldIssue{Field: key, Err: err})
		}
		return v
	}

	out := entities.TelemetrySnapshot{
		CurrentAmps:         num(KeyCurrent),
		Brightness:          num(KeyBrightness),
		LDR:                 num(KeyLDR),
		FanSpeedPct:         num(KeyFanSpeed),
		TemperatureC:        num(KeyTemp),
		CumulativeEnergyKWh: num(KeyOverallCurrent),
		PIR:                 level(KeyPIR),
		Rain:                level(KeyRain),
	}
	mode, err := entities.ParseMode(s[KeyMode])
	if err != nil {
		issues = append(issues, entities.FieldIssue{Field: KeyMode, Err: err})
	}
	out.Control = entities.ControlState{
		Mode:        mode,
		FanManual:   sw(KeyFanManual),
		LightManual: sw(KeyLightManual),
	}
	return out, issues
}

// DecodePreviousBill parses the prev_month scalar. Anything that is not a
// finite number (including an empty payload) is unavailable, never 0.
func DecodePreviousBill(payload []byte) entities.Amount {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return entities.Unavailable
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		// bare text such as 123.45 without quotes is valid JSON; anything else is not a bill
		return entities.Unavailable
	}
	r := entities.ParseReading(v)
	if !r.OK() {
		return entities.Unavailable
	}
	return entities.Available(r.Value)
}
