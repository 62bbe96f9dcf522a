package entities

import "fmt"

// TelemetrySnapshot is one complete update from the installation. It is
// transient: the pipeline derives a view from it and drops it.
type TelemetrySnapshot struct {
	CurrentAmps         Reading `json:"current"`
	Brightness          Reading `json:"brightness"`
	LDR                 Reading `json:"ldr"`
	FanSpeedPct         Reading `json:"fan_speed"`
	TemperatureC        Reading `json:"temp"`
	CumulativeEnergyKWh Reading `json:"overall_current"`

	PIR  Level `json:"pir"`
	Rain Level `json:"rain"`

	Control ControlState `json:"control"`
}

// FieldIssue records a field that was defaulted while decoding a snapshot.
type FieldIssue struct {
	Field string
	Err   error
}

func (i FieldIssue) Error() string { return fmt.Sprintf("%s: %v", i.Field, i.Err) }

func (i FieldIssue) Unwrap() error { return i.Err }
