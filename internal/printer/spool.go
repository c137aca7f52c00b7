package printer

// Spool is filament fed directly to a nozzle rather than through an AMS.
// Dual-nozzle models have a second spool.
type Spool struct {
	Index int
	Tray
}

func newSpool(index int) Spool {
	return Spool{Index: index, Tray: emptyTray()}
}

// applySpools merges vt_tray (single external spool) or vir_slot (one entry
// per spool, id 255-index).
func (d *Device) applySpools(p payload) bool {
	changed := false
	if p.has("vir_slot") {
		for _, slot := range p.list("vir_slot") {
			id, ok := slot.int("id")
			if !ok {
				continue
			}
			for i := range d.Spools {
				if id == 255-i && d.Spools[i].apply(slot) {
					changed = true
				}
			}
		}
		return changed
	}
	if vt := p.object("vt_tray"); !vt.empty() {
		changed = d.Spools[0].apply(vt)
	}
	return changed
}

// ActiveTray resolves the tray feeding the nozzle in use.
func (d *Device) ActiveTray() TrayRef {
	idx := d.Info.ActiveNozzle
	if idx < 0 || idx > 1 {
		idx = 0
	}
	return d.AMS.Active[idx]
}

// SpoolActive reports whether external spool i is feeding the printer.
// Without any AMS the first spool is always the active one.
func (d *Device) SpoolActive(i int) bool {
	if d.AMS.Len() == 0 {
		return i == 0
	}
	ref := d.ActiveTray()
	return ref.Kind == TrayExternal && ref.Spool == i
}

// Tray looks up the tray a reference points to, including external spools.
func (d *Device) Tray(ref TrayRef) (Tray, bool) {
	if ref.Kind == TrayExternal {
		if ref.Spool < 0 || ref.Spool >= len(d.Spools) {
			return Tray{}, false
		}
		return d.Spools[ref.Spool].Tray, true
	}
	return d.AMS.Tray(ref)
}
