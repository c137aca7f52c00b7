package printer

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const unknownVersion = "unknown"

// wifiReportInterval limits how often a changed Wi-Fi signal counts as a
// change, since the device reports every small fluctuation.
const wifiReportInterval = 60 * time.Second

const (
	doorOpenBit          = 0x00800000
	signatureRequiredBit = 0x20000000
)

// Info holds device identity and connectivity.
type Info struct {
	Serial            string
	Model             Model
	HWVersion         string
	SWVersion         string
	Mode              string
	Online            bool
	WifiSignal        string
	IPAddress         string
	NozzleDiameter    [2]float64
	NozzleType        [2]string
	ActiveNozzle      int
	NewVersionState   int
	DoorOpen          bool
	ExtruderFilament  bool
	AirductMode       int
	SignatureRequired bool

	wifiChangedAt time.Time
	signatureSeen bool
}

func newInfo(serial string, model Model, mode string) Info {
	if mode == "" {
		mode = "local"
	}
	return Info{
		Serial:         serial,
		Model:          model,
		HWVersion:      unknownVersion,
		SWVersion:      unknownVersion,
		Mode:           mode,
		NozzleDiameter: [2]float64{0.4, 0.4},
		NozzleType:     [2]string{"unknown", "unknown"},
		AirductMode:    -1,
	}
}

func (i *Info) applyDelta(d *Device, p payload) bool {
	before := *i
	i.Online = true

	if s, ok := p.str("wifi_signal"); ok && s != i.WifiSignal {
		now := d.now()
		if i.wifiChangedAt.IsZero() || now.Sub(i.wifiChangedAt) >= wifiReportInterval {
			i.WifiSignal = s
			i.wifiChangedAt = now
		}
	}

	for _, n := range p.object("net").list("info") {
		raw, ok := n.int64("ip")
		if ok && raw != 0 {
			i.IPAddress = littleEndianIP(uint32(raw))
			break
		}
	}

	if v, ok := p.object("upgrade_state").int("new_version_state"); ok {
		i.NewVersionState = v
	}

	i.applyNozzles(p)

	device := p.object("device")
	if state, ok := device.object("extruder").int64("state"); ok {
		i.ActiveNozzle = int((state >> 4) & 0xF)
	}
	if mode, ok := device.object("airduct").int("modeCur"); ok {
		i.AirductMode = mode
	}

	if i.Model.in(ModelX1, ModelX1C) {
		if flag, ok := p.int64("home_flag"); ok {
			i.DoorOpen = uint32(flag)&doorOpenBit != 0
		}
	} else if stat, ok := p.hex("stat"); ok {
		i.DoorOpen = stat&doorOpenBit != 0
	}

	if v, ok := p.int("hw_switch_state"); ok {
		i.ExtruderFilament = v == 1
	}

	if fun, ok := p.hex("fun"); ok {
		i.SignatureRequired = fun&signatureRequiredBit != 0
		if i.SignatureRequired && !i.signatureSeen {
			i.signatureSeen = true
			d.emit(EventEncryptionEnabled)
		}
	}

	return !i.equal(before)
}

func (i *Info) applyNozzles(p payload) {
	if entries := p.at("device", "nozzle").list("info"); len(entries) > 0 {
		for _, n := range entries {
			id, ok := n.int("id")
			if !ok || id < 0 || id > 1 {
				continue
			}
			if dia, ok := n.float("diameter"); ok {
				i.NozzleDiameter[id] = dia
			}
			if code, ok := n.str("type"); ok {
				i.NozzleType[id] = nozzleTypeFromCode(code)
			}
		}
		return
	}
	if dia, ok := p.float("nozzle_diameter"); ok {
		i.NozzleDiameter[0] = dia
	}
	if t, ok := p.str("nozzle_type"); ok && t != "" {
		i.NozzleType[0] = t
	}
}

// nozzleTypeFromCode decodes codes such as "HS01": a second character of H
// marks a high-flow nozzle, the last two digits give the material.
func nozzleTypeFromCode(code string) string {
	if len(code) < 4 {
		return "unknown"
	}
	var material string
	switch code[len(code)-2:] {
	case "00":
		material = "stainless_steel"
	case "01":
		material = "hardened_steel"
	case "05":
		material = "tungsten_carbide"
	default:
		return "unknown"
	}
	if strings.ToUpper(code)[1] == 'H' {
		return "high_flow_" + material
	}
	return material
}

func littleEndianIP(v uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", v&0xFF, (v>>8)&0xFF, (v>>16)&0xFF, (v>>24)&0xFF)
}

func (i *Info) applyVersion(d *Device, modules []versionModule) bool {
	if len(modules) == 0 {
		return false
	}
	before := *i

	i.Model = detectModel(modules, i.Model, d.log)
	if ap, ok := apNode(modules); ok && ap.HWVersion != "" {
		i.HWVersion = ap.HWVersion
	}
	for _, m := range modules {
		if m.Name == "ota" && m.SWVersion != "" {
			i.SWVersion = m.SWVersion
		}
	}

	if i.Model != before.Model {
		d.log.Info("device type resolved", zap.String("model", string(i.Model)))
	}
	return !i.equal(before)
}

// equal compares the reported fields, ignoring bookkeeping.
func (i Info) equal(o Info) bool {
	i.wifiChangedAt, o.wifiChangedAt = time.Time{}, time.Time{}
	return i == o
}
