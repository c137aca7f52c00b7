package printer

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Global slot values.
const (
	SlotExternal = 254
	SlotNone     = 255
)

// htUnitBase is the first index of auxiliary high-temperature units, which
// hold a single tray.
const htUnitBase = 128

// TrayKind classifies a resolved slot.
type TrayKind int

const (
	TrayNone TrayKind = iota
	TrayExternal
	TrayAMS
)

func (k TrayKind) String() string {
	switch k {
	case TrayExternal:
		return "external"
	case TrayAMS:
		return "ams"
	}
	return "none"
}

// TrayRef identifies one tray: an AMS unit and tray, or an external spool.
type TrayRef struct {
	Kind  TrayKind
	Unit  int
	Tray  int
	Spool int
}

// ResolveSlot maps a global slot value to a tray. 255 selects nothing and
// 254 the external spool; otherwise unit = slot/4 and tray = slot%4, except
// that high-temperature units are addressed by their own index.
func ResolveSlot(slot int) TrayRef {
	switch {
	case slot < 0 || slot == SlotNone:
		return TrayRef{Kind: TrayNone}
	case slot == SlotExternal:
		return TrayRef{Kind: TrayExternal, Spool: 0}
	case slot >= htUnitBase:
		return TrayRef{Kind: TrayAMS, Unit: slot, Tray: 0}
	}
	return TrayRef{Kind: TrayAMS, Unit: slot / 4, Tray: slot % 4}
}

// resolveExtruderSlot decodes the per-nozzle "snow" value: the high byte is
// the unit (255 and 254 are external spools 0 and 1), the low byte the tray.
func resolveExtruderSlot(v int64) TrayRef {
	unit := int(v>>8) & 0xFF
	tray := int(v & 0xFF)
	switch {
	case tray == 0xFF:
		return TrayRef{Kind: TrayNone}
	case unit == 255 || unit == 254:
		return TrayRef{Kind: TrayExternal, Spool: 255 - unit}
	case unit >= htUnitBase:
		return TrayRef{Kind: TrayAMS, Unit: unit, Tray: 0}
	case unit < 4:
		return TrayRef{Kind: TrayAMS, Unit: unit, Tray: tray & 0x3}
	}
	return TrayRef{Kind: TrayNone}
}

// Tray is one filament slot.
type Tray struct {
	Empty         bool
	InfoIdx       string
	Name          string
	Type          string
	SubBrand      string
	Color         string
	NozzleTempMin int
	NozzleTempMax int
	Remain        int
	K             float64
	TagUID        string
	UUID          string
	Weight        int
}

func emptyTray() Tray {
	return Tray{Empty: true, Color: "00000000", Remain: -1}
}

// trayHasPayload reports whether a tray delta carries anything beyond its
// own index (and slot state).
func trayHasPayload(p payload) bool {
	for k := range p.data {
		if k != "id" && k != "state" {
			return true
		}
	}
	return false
}

func (t *Tray) apply(p payload) bool {
	before := *t
	if !trayHasPayload(p) {
		*t = emptyTray()
		return *t != before
	}

	t.Empty = false
	if s, ok := p.str("tray_info_idx"); ok {
		t.InfoIdx = s
	}
	if s, ok := p.str("tray_type"); ok {
		t.Type = s
	}
	if s, ok := p.str("tray_sub_brands"); ok {
		t.SubBrand = s
	}
	if s, ok := p.str("tray_color"); ok {
		t.Color = strings.ToUpper(s)
	}
	if v, ok := p.int("nozzle_temp_min"); ok {
		t.NozzleTempMin = v
	}
	if v, ok := p.int("nozzle_temp_max"); ok {
		t.NozzleTempMax = v
	}
	if v, ok := p.int("remain"); ok {
		t.Remain = v
	}
	if v, ok := p.float("k"); ok {
		t.K = v
	}
	if s, ok := p.str("tag_uid"); ok {
		t.TagUID = s
	}
	if s, ok := p.str("tray_uuid"); ok {
		t.UUID = s
	}
	if v, ok := p.int("tray_weight"); ok {
		t.Weight = v
	}
	if t.Type == "" {
		t.Type = "unknown"
	}
	t.Name = filamentName(t.InfoIdx, t.Type)
	return *t != before
}

var filamentNames = map[string]string{
	"GFU99": "Generic TPU",
	"GFS99": "Generic PVA",
	"GFL98": "Generic PLA-CF",
	"GFL99": "Generic PLA",
	"GFG99": "Generic PETG",
	"GFC99": "Generic PC",
	"GFN98": "Generic PA-CF",
	"GFN99": "Generic PA",
	"GFB98": "Generic ASA",
	"GFB99": "Generic ABS",
	"GFU01": "Bambu TPU 95A",
	"GFS00": "Bambu Support W",
	"GFS01": "Bambu Support G",
	"GFA01": "Bambu PLA Matte",
	"GFA00": "Bambu PLA Basic",
	"GFC00": "Bambu PC",
	"GFN03": "Bambu PA-CF",
	"GFB00": "Bambu ABS",
	"GFL01": "PolyTerra PLA",
	"GFL00": "PolyLite PLA",
}

func filamentName(idx, fallback string) string {
	if n, ok := filamentNames[idx]; ok {
		return n
	}
	return fallback
}

// Unit is one AMS.
type Unit struct {
	Index                  int
	Model                  string
	Serial                 string
	SWVersion              string
	HWVersion              string
	HumidityIndex          int
	Humidity               int
	Temperature            float64
	RemainingDryingMinutes int
	TrayCount              int
	Trays                  [4]Tray
}

func newUnit(index int) *Unit {
	u := &Unit{Index: index, Model: "unknown", TrayCount: 4}
	if index >= htUnitBase {
		u.TrayCount = 1
	}
	for i := range u.Trays {
		u.Trays[i] = emptyTray()
	}
	return u
}

// TrayList returns the unit's populated tray positions.
func (u Unit) TrayList() []Tray { return u.Trays[:u.TrayCount] }

// amsModels maps version-report module name prefixes to unit models.
var amsModels = map[string]string{
	"ams":    "AMS",
	"ams_f1": "AMS Lite",
	"n3f":    "AMS 2 Pro",
	"n3s":    "AMS HT",
}

// Inventory is the set of AMS units plus the active tray per nozzle.
type Inventory struct {
	units   map[int]*Unit
	catalog []string

	// ActiveSlot is the legacy global slot value from tray_now.
	ActiveSlot int
	Active     [2]TrayRef
}

func newInventory() Inventory {
	return Inventory{units: make(map[int]*Unit), ActiveSlot: SlotNone}
}

// Len returns the number of known units.
func (inv *Inventory) Len() int { return len(inv.units) }

// Unit returns a copy of the unit at index.
func (inv *Inventory) Unit(index int) (Unit, bool) {
	u, ok := inv.units[index]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// Units returns copies of all units ordered by index.
func (inv *Inventory) Units() []Unit {
	keys := slices.Sorted(maps.Keys(inv.units))
	out := make([]Unit, 0, len(keys))
	for _, k := range keys {
		out = append(out, *inv.units[k])
	}
	return out
}

// CatalogSerials lists the serials named by the most recent version report.
func (inv *Inventory) CatalogSerials() []string { return slices.Clone(inv.catalog) }

// Tray returns the tray a reference points to. External references are
// not resolved here; see Device.Tray.
func (inv *Inventory) Tray(ref TrayRef) (Tray, bool) {
	if ref.Kind != TrayAMS {
		return Tray{}, false
	}
	u, ok := inv.units[ref.Unit]
	if !ok || ref.Tray < 0 || ref.Tray >= u.TrayCount {
		return Tray{}, false
	}
	return u.Trays[ref.Tray], true
}

func (inv *Inventory) ensure(index int) *Unit {
	u, ok := inv.units[index]
	if !ok {
		u = newUnit(index)
		inv.units[index] = u
	}
	return u
}

func (inv *Inventory) snapshot() map[int]Unit {
	out := make(map[int]Unit, len(inv.units))
	for k, u := range inv.units {
		out[k] = *u
	}
	return out
}

func (inv *Inventory) applyDelta(p payload) bool {
	before := inv.snapshot()
	beforeSlot, beforeActive := inv.ActiveSlot, inv.Active
	ams := p.object("ams")

	if extruders := p.at("device", "extruder").list("info"); len(extruders) > 0 {
		for _, e := range extruders {
			id, ok := e.int("id")
			if !ok || id < 0 || id > 1 {
				continue
			}
			if snow, ok := e.int64("snow"); ok {
				inv.Active[id] = resolveExtruderSlot(snow)
			}
		}
	} else if slot, ok := ams.int("tray_now"); ok {
		inv.ActiveSlot = slot
		inv.Active[0] = ResolveSlot(slot)
	}

	for _, entry := range ams.list("ams") {
		idx, ok := entry.int("id")
		if !ok {
			continue
		}
		u := inv.ensure(idx)
		if v, ok := entry.int("humidity"); ok && v >= 1 && v <= 5 {
			u.HumidityIndex = v
		}
		if v, ok := entry.int("humidity_raw"); ok && v >= 1 && v <= 100 {
			u.Humidity = v
		}
		if v, ok := entry.float("temp"); ok && v >= 0 && v <= 100 {
			u.Temperature = v
		}
		if v, ok := entry.int("dry_time"); ok {
			u.RemainingDryingMinutes = v
		}
		for _, t := range entry.list("tray") {
			id, ok := t.int("id")
			if !ok || id < 0 || id >= u.TrayCount {
				continue
			}
			u.Trays[id].apply(t)
		}
	}

	return !maps.Equal(before, inv.snapshot()) || beforeSlot != inv.ActiveSlot || beforeActive != inv.Active
}

func (inv *Inventory) applyVersion(d *Device, modules []versionModule) bool {
	before := inv.snapshot()
	var catalog []string

	for _, m := range modules {
		prefix, num, ok := strings.Cut(m.Name, "/")
		if !ok {
			continue
		}
		model, known := amsModels[prefix]
		if !known {
			continue
		}
		idx, err := strconv.Atoi(num)
		if err != nil {
			d.log.Debug("bad ams module index", zap.String("module", m.Name))
			continue
		}
		u := inv.ensure(idx)
		if m.Serial == "" {
			continue
		}
		catalog = append(catalog, m.Serial)
		u.Model = model
		u.Serial = m.Serial
		u.SWVersion = m.SWVersion
		u.HWVersion = m.HWVersion
	}
	if len(modules) > 0 {
		inv.catalog = catalog
	}
	return !maps.Equal(before, inv.snapshot())
}

// StaleUnits returns the attached serials absent from the current catalog.
func StaleUnits(attached, current []string) []string {
	var stale []string
	for _, s := range attached {
		if !slices.Contains(current, s) {
			stale = append(stale, s)
		}
	}
	return stale
}
