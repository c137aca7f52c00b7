package printer

import "math"

// Temperature holds current and target temperatures in °C.
type Temperature struct {
	Bed          int
	BedTarget    int
	Chamber      int
	Nozzle       [2]int
	NozzleTarget [2]int
}

// unpackTemp splits a packed value: low 16 bits current, high 16 target.
func unpackTemp(v int64) (current, target int) {
	return int(v & 0xFFFF), int((v >> 16) & 0xFFFF)
}

func (t *Temperature) applyDelta(p payload) bool {
	before := *t
	device := p.object("device")

	if v, ok := device.at("bed", "info").int64("temp"); ok {
		t.Bed, t.BedTarget = unpackTemp(v)
	} else {
		if f, ok := p.float("bed_temper"); ok {
			t.Bed = int(math.Round(f))
		}
		if f, ok := p.float("bed_target_temper"); ok {
			t.BedTarget = int(math.Floor(f))
		}
	}

	if v, ok := device.at("ctc", "info").int64("temp"); ok {
		t.Chamber = int(v & 0xFFFF)
	} else if f, ok := p.float("chamber_temper"); ok {
		t.Chamber = int(math.Round(f))
	}

	if extruders := device.object("extruder").list("info"); len(extruders) > 0 {
		for _, e := range extruders {
			id, ok := e.int("id")
			if !ok || id < 0 || id > 1 {
				continue
			}
			if v, ok := e.int64("temp"); ok {
				t.Nozzle[id], t.NozzleTarget[id] = unpackTemp(v)
			}
		}
	} else {
		if f, ok := p.float("nozzle_temper"); ok {
			t.Nozzle[0] = int(math.Round(f))
		}
		if f, ok := p.float("nozzle_target_temper"); ok {
			t.NozzleTarget[0] = int(math.Round(f))
		}
	}

	return *t != before
}

// ActiveNozzleTemp returns the temperature of the nozzle in use.
func (d *Device) ActiveNozzleTemp() int {
	idx := d.Info.ActiveNozzle
	if idx < 0 || idx > 1 {
		idx = 0
	}
	return d.Temperature.Nozzle[idx]
}
