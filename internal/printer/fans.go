package printer

import "math"

// Fans holds raw fan speeds on the device's 0-15 scale.
type Fans struct {
	Aux         int
	Chamber     int
	PartCooling int
	Heatbreak   int
}

// FanPercent converts a raw 0-15 speed to a percentage.
func FanPercent(raw int) int {
	return int(math.Round(float64(raw) / 15 * 100))
}

func (f *Fans) applyDelta(d *Device, p payload) bool {
	before := *f
	if v, ok := p.int("big_fan1_speed"); ok && !d.gated(FeatureAuxFan) {
		f.Aux = v
	}
	if v, ok := p.int("big_fan2_speed"); ok && !d.gated(FeatureChamberFan) {
		f.Chamber = v
	}
	if v, ok := p.int("cooling_fan_speed"); ok {
		f.PartCooling = v
	}
	if v, ok := p.int("heatbreak_fan_speed"); ok {
		f.Heatbreak = v
	}
	return *f != before
}
