package entities

import (
	"fmt"
	"strings"
)

// Mode says who drives the actuators: the installation's own logic (ai)
// or the operator (manual).
type Mode string

const (
	ModeUnknown Mode = ""
	ModeAI      Mode = "ai"
	ModeManual  Mode = "manual"
)

// Toggle returns the opposite mode. Unknown toggles to manual.
func (m Mode) Toggle() Mode {
	if m == ModeManual {
		return ModeAI
	}
	return ModeManual
}

// ParseMode is case-insensitive ("AI", "Manual" are accepted).
func ParseMode(v any) (Mode, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return ModeUnknown, ErrMissingField
		}
		return ModeUnknown, fmt.Errorf("mode %v: unexpected type %T", v, v)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ai":
		return ModeAI, nil
	case "manual":
		return ModeManual, nil
	case "":
		return ModeUnknown, ErrMissingField
	}
	return ModeUnknown, fmt.Errorf("mode %q: unknown value", s)
}

// SwitchState is the state of a manually driven actuator.
type SwitchState string

const (
	SwitchUnknown SwitchState = ""
	SwitchOn      SwitchState = "ON"
	SwitchOff     SwitchState = "OFF"
)

// Toggle returns the opposite state. Unknown toggles to ON.
func (s SwitchState) Toggle() SwitchState {
	if s == SwitchOn {
		return SwitchOff
	}
	return SwitchOn
}

func ParseSwitch(v any) (SwitchState, error) {
	switch x := v.(type) {
	case nil:
		return SwitchUnknown, ErrMissingField
	case bool:
		if x {
			return SwitchOn, nil
		}
		return SwitchOff, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "ON":
			return SwitchOn, nil
		case "OFF":
			return SwitchOff, nil
		case "":
			return SwitchUnknown, ErrMissingField
		}
		return SwitchUnknown, fmt.Errorf("switch %q: unknown value", x)
	}
	return SwitchUnknown, fmt.Errorf("switch %v: unexpected type %T", v, v)
}

// Level is a two-state sensor output (PIR, rain).
type Level string

const (
	LevelUnknown Level = ""
	LevelLow     Level = "LOW"
	LevelHigh    Level = "HIGH"
)

func ParseLevel(v any) (Level, error) {
	switch x := v.(type) {
	case nil:
		return LevelUnknown, ErrMissingField
	case bool:
		if x {
			return LevelHigh, nil
		}
		return LevelLow, nil
	case float64:
		// some firmware publishes digitalRead() as 0/1
		switch x {
		case 0:
			return LevelLow, nil
		case 1:
			return LevelHigh, nil
		}
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "LOW":
			return LevelLow, nil
		case "HIGH":
			return LevelHigh, nil
		case "":
			return LevelUnknown, ErrMissingField
		}
	}
	return LevelUnknown, fmt.Errorf("level %v: unknown value", v)
}

// ControlState is the single authoritative copy of the actuation settings,
// mirrored from the transport. While Mode is ai, FanManual and LightManual
// only record the last manual setting.
type ControlState struct {
	Mode        Mode        `json:"mode"`
	FanManual   SwitchState `json:"fan_manual"`
	LightManual SwitchState `json:"light_manual"`
}

// Known reports whether the transport has told us the mode yet.
func (c ControlState) Known() bool { return c.Mode != ModeUnknown }
