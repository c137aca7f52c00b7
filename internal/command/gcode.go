package command

import (
	"fmt"
	"math"
	"strings"
)

// MinExtrudeTemp is the lowest nozzle temperature at which the firmware
// accepts extrusion moves.
const MinExtrudeTemp = 170

// Gcode sends raw gcode. Each line is terminated with "\n".
func Gcode(lines ...string) (Command, error) {
	var b strings.Builder
	for _, l := range lines {
		l = strings.TrimRight(l, "\r\n")
		if strings.TrimSpace(l) == "" {
			continue
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return Command{}, invalid("gcode_line", ErrGcodeEmpty, "no gcode lines")
	}
	return newCommand(CategoryPrint, "gcode_line", map[string]any{"param": b.String()}), nil
}

func mustGcode(lines ...string) Command {
	c, err := Gcode(lines...)
	if err != nil {
		panic(err)
	}
	return c
}

// Home homes all axes.
func Home() Command { return mustGcode("G28") }

// Axis is a motion axis.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

type axisLimit struct {
	maxDistance float64
	feedrate    int
}

var axisLimits = map[Axis]axisLimit{
	AxisX: {maxDistance: 100, feedrate: 3000},
	AxisY: {maxDistance: 100, feedrate: 3000},
	AxisZ: {maxDistance: 50, feedrate: 600},
}

// MoveAxis jogs one axis by a relative distance in millimetres.
func MoveAxis(axis Axis, distance float64) (Command, error) {
	limit, ok := axisLimits[Axis(strings.ToUpper(string(axis)))]
	if !ok {
		return Command{}, invalid("move_axis", ErrAxisInvalid, "axis %q", axis)
	}
	if distance == 0 || math.Abs(distance) > limit.maxDistance || math.IsNaN(distance) {
		return Command{}, invalid("move_axis", ErrDistanceOutOfRange,
			"distance %.1f outside ±%.0f", distance, limit.maxDistance)
	}
	return Gcode(
		"M211 S",
		"M211 X1 Y1 Z1",
		"M1002 push_ref_mode",
		"G91",
		fmt.Sprintf("G1 %s%.1f F%d", strings.ToUpper(string(axis)), distance, limit.feedrate),
		"M1002 pop_ref_mode",
		"M211 R",
	)
}

// Extrude pushes (or retracts) 10mm of filament. nozzleTemp is the current
// nozzle temperature used to reject cold extrusion.
func Extrude(retract bool, nozzleTemp int) (Command, error) {
	if nozzleTemp < MinExtrudeTemp {
		return Command{}, invalid("extrude", ErrNozzleTooCold,
			"nozzle at %d°C, need at least %d°C", nozzleTemp, MinExtrudeTemp)
	}
	amount := 10.0
	if retract {
		amount = -amount
	}
	return Gcode("M83", fmt.Sprintf("G0 E%.1f F900", amount))
}

// Heater selects a temperature target.
type Heater string

const (
	HeaterBed     Heater = "bed"
	HeaterNozzle  Heater = "nozzle"
	HeaterChamber Heater = "chamber"
)

type heaterSpec struct {
	gcode string
	max   int
}

var heaters = map[Heater]heaterSpec{
	HeaterBed:     {gcode: "M140", max: 120},
	HeaterNozzle:  {gcode: "M104", max: 320},
	HeaterChamber: {gcode: "M141", max: 65},
}

// SetTemperature sets a heater target in °C. Zero turns the heater off.
func SetTemperature(h Heater, target int) (Command, error) {
	spec, ok := heaters[h]
	if !ok {
		return Command{}, invalid("set_temperature", ErrTemperatureOutOfRange, "unknown heater %q", h)
	}
	if target < 0 || target > spec.max {
		return Command{}, invalid("set_temperature", ErrTemperatureOutOfRange,
			"%s target %d outside 0-%d", h, target, spec.max)
	}
	return Gcode(fmt.Sprintf("%s S%d", spec.gcode, target))
}

// Fan selects a fan for SetFanSpeed.
type Fan string

const (
	FanPartCooling Fan = "part_cooling"
	FanAux         Fan = "aux"
	FanChamber     Fan = "chamber"
)

var fanIndex = map[Fan]int{
	FanPartCooling: 1,
	FanAux:         2,
	FanChamber:     3,
}

// SetFanSpeed sets a fan to a percentage, rounded to the nearest 10%.
func SetFanSpeed(f Fan, percent int) (Command, error) {
	idx, ok := fanIndex[f]
	if !ok {
		return Command{}, invalid("set_fan", ErrFanInvalid, "fan %q", f)
	}
	if percent < 0 || percent > 100 {
		return Command{}, invalid("set_fan", ErrPercentOutOfRange, "percent %d outside 0-100", percent)
	}
	return Gcode(fmt.Sprintf("M106 P%d S%d", idx, FanPWM(percent)))
}

// FanPWM converts a percentage to the 0-255 duty value the firmware expects.
func FanPWM(percent int) int {
	rounded := math.Round(float64(percent)/10) * 10
	return int(math.Ceil(255 * rounded / 100))
}
