// Package printer holds the live model of one printer: a Device aggregate
// of independent sub-models, each merging partial JSON deltas into itself
// and reporting whether it changed.
//
// A Device is not safe for concurrent use. The connection manager owns it
// from a single goroutine and serializes every merge and read.
package printer

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/bambulink/internal/hms"
	"go.uber.org/zap"
)

// Options configures a Device.
type Options struct {
	Serial   string
	Model    Model
	Mode     string
	Language string
	Catalog  *hms.Catalog
	History  TaskHistory

	// Apply schedules a mutation onto the goroutine that owns the Device.
	// Enrichment results arrive through it; when nil, enrichment is skipped.
	Apply func(func(*Device) bool)

	// Context bounds background enrichment lookups.
	Context context.Context

	// UsageHours seeds the cumulative usage counter.
	UsageHours float64

	Logger *zap.Logger
	Now    func() time.Time
}

// Device is the root aggregate for one printer connection.
type Device struct {
	Info        Info
	PrintJob    PrintJob
	Temperature Temperature
	Lights      Lights
	Fans        Fans
	Speed       Speed
	Stage       Stage
	AMS         Inventory
	Spools      [2]Spool
	Diagnostics Diagnostics
	Camera      Camera
	HomeFlags   HomeFlags

	// LastFullReport and LastVersionReport are kept for diagnostics export.
	LastFullReport    map[string]any
	LastVersionReport map[string]any

	opts        Options
	log         *zap.Logger
	now         func() time.Time
	pending     []Event
	fullSeen    bool
	versionSeen bool
	ready       bool
	enrichGen   uint64
}

// New creates a Device with every field at its default.
func New(opts Options) *Device {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Model == "" {
		opts.Model = ModelUnknown
	}
	d := &Device{
		opts: opts,
		log:  opts.Logger,
		now:  opts.Now,
	}
	d.Info = newInfo(opts.Serial, opts.Model, opts.Mode)
	d.PrintJob = newPrintJob(opts.UsageHours)
	d.Lights = newLights()
	d.Speed = newSpeed()
	d.Stage = newStage()
	d.AMS = newInventory()
	d.Spools = [2]Spool{newSpool(0), newSpool(1)}
	return d
}

func (d *Device) emit(e Event) {
	d.pending = append(d.pending, e)
}

// TakeEvents returns the derived events queued by merges since the last
// call, in emission order.
func (d *Device) TakeEvents() []Event {
	out := d.pending
	d.pending = nil
	return out
}

// Ready reports whether both a full state report and a version report have
// been merged since the last ResetSession.
func (d *Device) Ready() bool { return d.ready }

// ResetSession forgets per-session readiness; call it on reconnect.
func (d *Device) ResetSession() {
	d.fullSeen, d.versionSeen, d.ready = false, false, false
}

// Decoder returns a diagnostic decoder bound to this device's model.
func (d *Device) Decoder() hms.Decoder {
	return hms.Decoder{Catalog: d.opts.Catalog, Model: string(d.Info.Model), Language: d.opts.Language}
}

type mergeStep struct {
	name  string
	apply func(payload) bool
}

// MergeStateDelta folds one state report into the model. It returns true
// when any sub-model changed.
func (d *Device) MergeStateDelta(delta map[string]any) bool {
	p := newPayload(delta, d.log)

	if cmd, _ := p.str("command"); cmd == "push_status" {
		if msg, ok := p.int("msg"); ok && msg == 0 {
			d.LastFullReport = delta
			d.fullSeen = true
		}
	}

	steps := []mergeStep{
		{"info", func(p payload) bool { return d.Info.applyDelta(d, p) }},
		{"print_job", func(p payload) bool { return d.PrintJob.applyDelta(d, p) }},
		{"temperature", func(p payload) bool { return d.Temperature.applyDelta(p) }},
		{"lights", func(p payload) bool { return d.Lights.applyDelta(d, p) }},
		{"fans", func(p payload) bool { return d.Fans.applyDelta(d, p) }},
		{"speed", func(p payload) bool { return d.Speed.applyDelta(p) }},
		{"stage", func(p payload) bool { return d.Stage.applyDelta(p) }},
		{"ams", func(p payload) bool { return d.AMS.applyDelta(p) }},
		{"external_spool", func(p payload) bool { return d.applySpools(p) }},
		{"diagnostics", func(p payload) bool { return d.Diagnostics.applyDelta(d, p) }},
		{"camera", func(p payload) bool { return d.Camera.applyDelta(d, p) }},
		{"home_flags", func(p payload) bool { return d.HomeFlags.applyDelta(d, p) }},
	}

	changed := false
	for _, s := range steps {
		if d.safely(s.name, func() bool { return s.apply(p) }) {
			changed = true
		}
	}
	d.checkReady()
	return changed
}

// MergeInfo folds a version report into the model.
func (d *Device) MergeInfo(report map[string]any) bool {
	p := newPayload(report, d.log)
	modules := parseModules(p)

	changed := d.safely("info", func() bool { return d.Info.applyVersion(d, modules) })
	if d.safely("ams", func() bool { return d.AMS.applyVersion(d, modules) }) {
		changed = true
		d.emit(EventAMSInfoUpdate)
	}

	if cmd, _ := p.str("command"); cmd == "get_version" {
		d.LastVersionReport = report
		d.versionSeen = true
	}
	d.checkReady()
	return changed
}

// SetOnline records transport connectivity.
func (d *Device) SetOnline(online bool) bool {
	if d.Info.Online == online {
		return false
	}
	d.Info.Online = online
	return true
}

func (d *Device) checkReady() {
	if d.ready || !d.fullSeen || !d.versionSeen {
		return
	}
	d.ready = true
	d.emit(EventPrinterReady)
}

// safely runs one sub-model merge, containing any panic so the remaining
// sub-models still merge.
func (d *Device) safely(name string, fn func() bool) (changed bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("sub-model merge panicked",
				zap.String("submodel", name),
				zap.String("panic", fmt.Sprint(r)))
			changed = false
		}
	}()
	return fn()
}

// gated reports whether a feature-dependent field should be skipped. Until
// the firmware version is known nothing is skipped.
func (d *Device) gated(f Feature) bool {
	if d.Info.SWVersion == "" || d.Info.SWVersion == unknownVersion {
		return false
	}
	return !d.Supports(f)
}
