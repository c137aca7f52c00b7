package printer

import (
	"slices"

	"github.com/HerbHall/bambulink/internal/hms"
)

// Diagnostics holds the active HMS notifications and the last print error.
type Diagnostics struct {
	Notifications  []hms.Notification
	PrintErrorCode string
	PrintErrorText string
}

// Count returns the number of active notifications.
func (g Diagnostics) Count() int { return len(g.Notifications) }

// Worst returns the most severe active notification.
func (g Diagnostics) Worst() (hms.Notification, bool) {
	if len(g.Notifications) == 0 {
		return hms.Notification{}, false
	}
	worst := g.Notifications[0]
	for _, n := range g.Notifications[1:] {
		if n.Severity.Rank() < worst.Severity.Rank() {
			worst = n
		}
	}
	return worst, true
}

// applyDelta rebuilds the notification list whenever the hms key is present;
// the device always reports its complete active set.
func (g *Diagnostics) applyDelta(d *Device, p payload) bool {
	changed := false
	dec := d.Decoder()

	if p.has("hms") {
		list := make([]hms.Notification, 0)
		for _, entry := range p.list("hms") {
			attr, okA := entry.int64("attr")
			code, okC := entry.int64("code")
			if !okA || !okC {
				continue
			}
			n := dec.Decode(uint32(attr), uint32(code))
			if n.Formatted == "" {
				continue
			}
			list = append(list, n)
		}
		if !slices.Equal(list, g.Notifications) {
			g.Notifications = list
			changed = true
			d.emit(EventHMSErrors)
		}
	}

	if v, ok := p.int64("print_error"); ok {
		code := hms.FormatPrintError(uint32(v))
		text := ""
		if code != "" {
			text = dec.PrintErrorText(uint32(v))
			if text == hms.Unknown {
				text = ""
			}
		}
		if code != g.PrintErrorCode || text != g.PrintErrorText {
			g.PrintErrorCode, g.PrintErrorText = code, text
			changed = true
			d.emit(EventPrintError)
		}
	}
	return changed
}
