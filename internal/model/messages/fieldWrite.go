package messages

import (
	"errors"
	"fmt"
	"time"
)

// Field is one of the control keys the dashboard may write.
type Field string

const (
	FieldMode        Field = KeyMode
	FieldFanManual   Field = KeyFanManual
	FieldLightManual Field = KeyLightManual
)

var ErrInvalidWrite = errors.New("invalid field write")

// FieldWrite is a single-field update sent to the store. Value is exactly
// "ai"|"manual" for mode and "ON"|"OFF" for the manual switches.
type FieldWrite struct {
	ID        string    `json:"id"`
	Field     Field     `json:"field"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidateWrite rejects anything but the exact wire values.
func ValidateWrite(field Field, value string) error {
	switch field {
	case FieldMode:
		if value == "ai" || value == "manual" {
			return nil
		}
	case FieldFanManual, FieldLightManual:
		if value == "ON" || value == "OFF" {
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidWrite, field)
	}
	return fmt.Errorf("%w: %s=%q", ErrInvalidWrite, field, value)
}
