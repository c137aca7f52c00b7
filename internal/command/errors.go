package command

import (
	"errors"
	"fmt"
)

var (
	ErrAxisInvalid           = errors.New("invalid axis")
	ErrDistanceOutOfRange    = errors.New("distance out of range")
	ErrTemperatureOutOfRange = errors.New("temperature out of range")
	ErrNozzleTooCold         = errors.New("nozzle too cold to extrude")
	ErrTraySelectionRequired = errors.New("ams tray selection required")
	ErrFanInvalid            = errors.New("invalid fan")
	ErrPercentOutOfRange     = errors.New("percent out of range")
	ErrSpeedInvalid          = errors.New("invalid speed level")
	ErrGcodeEmpty            = errors.New("gcode is empty")
	ErrNoObjects             = errors.New("no objects selected")
	ErrColorInvalid          = errors.New("invalid color")
	ErrFilamentTypeRequired  = errors.New("filament type required")
	ErrDryingOutOfRange      = errors.New("drying parameters out of range")
	ErrFirmwareRequired      = errors.New("firmware url and version required")
	ErrFileRequired          = errors.New("file required")
)

// ValidationError reports why a command was rejected before publishing.
type ValidationError struct {
	Command string
	Reason  string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Command, e.Err, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(cmd string, err error, format string, args ...any) error {
	return &ValidationError{Command: cmd, Reason: fmt.Sprintf(format, args...), Err: err}
}
