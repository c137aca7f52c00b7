package printer

import "time"

// overrideWindow is how long an optimistic light state wins over reports
// that have not caught up yet.
const overrideWindow = 5 * time.Second

// Light modes.
const (
	LightOn       = "on"
	LightOff      = "off"
	LightFlashing = "flashing"
	LightUnknown  = "unknown"
)

// Lights holds the state of each controllable light.
type Lights struct {
	Chamber  string
	Chamber2 string
	Work     string
	Heatbed  string

	overrides map[string]lightOverride
}

type lightOverride struct {
	mode    string
	expires time.Time
}

func newLights() Lights {
	return Lights{Chamber: LightUnknown, Chamber2: LightUnknown, Work: LightUnknown, Heatbed: LightUnknown}
}

func (l *Lights) field(node string) *string {
	switch node {
	case "chamber_light":
		return &l.Chamber
	case "chamber_light2":
		return &l.Chamber2
	case "work_light":
		return &l.Work
	case "heatbed_light":
		return &l.Heatbed
	}
	return nil
}

// SetLightOverride records a commanded light state ahead of the device
// confirming it.
func (d *Device) SetLightOverride(node, mode string) bool {
	l := &d.Lights
	f := l.field(node)
	if f == nil {
		return false
	}
	if l.overrides == nil {
		l.overrides = make(map[string]lightOverride)
	}
	l.overrides[node] = lightOverride{mode: mode, expires: d.now().Add(overrideWindow)}
	changed := *f != mode
	*f = mode
	return changed
}

func (l *Lights) applyDelta(d *Device, p payload) bool {
	before := l.snapshot()
	now := d.now()
	for _, entry := range p.list("lights_report") {
		node, _ := entry.str("node")
		mode, ok := entry.str("mode")
		f := l.field(node)
		if f == nil || !ok {
			continue
		}
		if o, held := l.overrides[node]; held {
			if mode == o.mode || now.After(o.expires) {
				delete(l.overrides, node)
			} else {
				continue
			}
		}
		*f = mode
	}
	return l.snapshot() != before
}

func (l *Lights) snapshot() [4]string {
	return [4]string{l.Chamber, l.Chamber2, l.Work, l.Heatbed}
}
