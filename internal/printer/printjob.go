package printer

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GcodeState is the device's print lifecycle status.
type GcodeState string

const (
	StateUnknown GcodeState = "unknown"
	StateIdle    GcodeState = "idle"
	StatePrepare GcodeState = "prepare"
	StateSlicing GcodeState = "slicing"
	StateRunning GcodeState = "running"
	StatePause   GcodeState = "pause"
	StateFinish  GcodeState = "finish"
	StateFailed  GcodeState = "failed"
	StateOffline GcodeState = "offline"
	StateInit    GcodeState = "init"
)

// ParseGcodeState normalizes a reported status; unrecognized values become
// StateUnknown.
func ParseGcodeState(s string) GcodeState {
	switch st := GcodeState(strings.ToLower(strings.TrimSpace(s))); st {
	case StateIdle, StatePrepare, StateSlicing, StateRunning, StatePause,
		StateFinish, StateFailed, StateOffline, StateInit:
		return st
	}
	return StateUnknown
}

// IdleLike reports whether no print is in progress.
func (s GcodeState) IdleLike() bool {
	return s == StateIdle || s == StateFailed || s == StateFinish
}

// ActiveLike reports whether a print is in progress.
func (s GcodeState) ActiveLike() bool {
	return !s.IdleLike() && s != StateUnknown
}

// CancelErrorCode is the print_error value the device reports when the user
// cancels a print. It is reset to zero a few seconds later.
const CancelErrorCode = 50348044

// Slots is the number of AMS slots tracked for committed filament.
const Slots = 16

// PrintJob tracks the current or last print.
type PrintJob struct {
	Percent          int
	State            GcodeState
	GcodeFile        string
	SubtaskName      string
	PrintType        string
	CurrentLayer     int
	TotalLayers      int
	RemainingMinutes int
	PreparePercent   int
	StartTime        time.Time
	EndTime          time.Time
	PrintError       int
	UsageHours       float64
	SkippedObjects   []int

	TaskName    string
	Weight      float64
	Length      float64
	BedType     string
	CoverURL    string
	SlotWeights [Slots]float64
	SlotLengths [Slots]float64

	canceled bool
}

func newPrintJob(usageHours float64) PrintJob {
	return PrintJob{
		State:      StateUnknown,
		PrintType:  "unknown",
		BedType:    "unknown",
		UsageHours: usageHours,
	}
}

var printTypes = []string{"cloud", "local", "idle", "system", "unknown"}

func (j *PrintJob) applyDelta(d *Device, p payload) bool {
	before := j.clone()
	prev := j.State

	if v, ok := p.int("mc_percent"); ok {
		j.Percent = v
	}
	if s, ok := p.str("gcode_state"); ok {
		j.State = ParseGcodeState(s)
		if j.State == StateUnknown && s != "" {
			d.log.Warn("unrecognized gcode_state", zap.String("value", s))
		}
	}
	if s, ok := p.str("gcode_file"); ok {
		j.GcodeFile = s
	}
	if s, ok := p.str("print_type"); ok {
		j.PrintType = strings.ToLower(s)
		if !slices.Contains(printTypes, j.PrintType) {
			j.PrintType = "unknown"
		}
	}
	if s, ok := p.str("subtask_name"); ok {
		j.SubtaskName = s
	}
	if v, ok := p.int("layer_num"); ok {
		j.CurrentLayer = v
	}
	if v, ok := p.int("total_layer_num"); ok {
		j.TotalLayers = v
	}
	if ids, ok := p.ints("s_obj"); ok {
		j.SkippedObjects = ids
	}
	if v, ok := p.int("gcode_file_prepare_percent"); ok {
		j.PreparePercent = v
	}

	nativeStart := j.nativeStartTime(d, p)
	if !nativeStart.IsZero() {
		j.StartTime = nativeStart
	}

	if prev == StateUnknown && j.State != StateUnknown {
		d.requestEnrichment()
	}

	if prev.IdleLike() && j.State.ActiveLike() {
		d.emit(EventPrintStarted)
		j.canceled = false
		j.PreparePercent = 0
		if nativeStart.IsZero() {
			j.StartTime = d.now()
		}
		j.EndTime = time.Time{}
		d.requestEnrichment()
	}

	if perr, ok := p.int("print_error"); ok {
		if perr == CancelErrorCode && j.PrintError == 0 {
			j.canceled = true
			d.emit(EventPrintCanceled)
		}
		j.PrintError = perr
	}

	// A first report of a job that already ended is not a transition.
	if prev != StateUnknown && prev != StateFailed && j.State == StateFailed && !j.canceled {
		d.emit(EventPrintFailed)
	}
	if prev != StateUnknown && prev != StateFinish && j.State == StateFinish {
		d.emit(EventPrintFinished)
	}

	if prev.ActiveLike() && j.State.IdleLike() && !j.StartTime.IsZero() {
		j.UsageHours += roundHours(d.now().Sub(j.StartTime))
		j.UsageHours = math.Round(j.UsageHours*100) / 100
	}

	if v, ok := p.int("mc_remaining_time"); ok {
		changed := v != j.RemainingMinutes
		j.RemainingMinutes = v
		if changed && !j.StartTime.IsZero() {
			j.EndTime = d.now().Add(time.Duration(v) * time.Minute).Truncate(time.Minute)
		}
	}
	if j.StartTime.IsZero() {
		j.EndTime = time.Time{}
	}

	return !j.equal(before)
}

// nativeStartTime reads gcode_start_time on models that report it.
func (j *PrintJob) nativeStartTime(d *Device, p payload) time.Time {
	if !d.Supports(FeatureStartTime) {
		return time.Time{}
	}
	s, ok := p.str("gcode_start_time")
	if !ok {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// roundHours converts a duration to hours with two decimals, so each unit is
// 36 seconds.
func roundHours(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return math.Round(elapsed.Seconds()/36) / 100
}

// Active reports whether a print is in progress.
func (j PrintJob) Active() bool { return j.State.ActiveLike() }

func (j PrintJob) clone() PrintJob {
	c := j
	c.SkippedObjects = slices.Clone(j.SkippedObjects)
	return c
}

// equal compares field by field; SkippedObjects keeps PrintJob from being
// comparable with ==.
func (j PrintJob) equal(o PrintJob) bool {
	return j.Percent == o.Percent &&
		j.State == o.State &&
		j.GcodeFile == o.GcodeFile &&
		j.SubtaskName == o.SubtaskName &&
		j.PrintType == o.PrintType &&
		j.CurrentLayer == o.CurrentLayer &&
		j.TotalLayers == o.TotalLayers &&
		j.RemainingMinutes == o.RemainingMinutes &&
		j.PreparePercent == o.PreparePercent &&
		j.StartTime.Equal(o.StartTime) &&
		j.EndTime.Equal(o.EndTime) &&
		j.PrintError == o.PrintError &&
		j.UsageHours == o.UsageHours &&
		slices.Equal(j.SkippedObjects, o.SkippedObjects) &&
		j.TaskName == o.TaskName &&
		j.Weight == o.Weight &&
		j.Length == o.Length &&
		j.BedType == o.BedType &&
		j.CoverURL == o.CoverURL &&
		j.SlotWeights == o.SlotWeights &&
		j.SlotLengths == o.SlotLengths &&
		j.canceled == o.canceled
}

func (j *PrintJob) resetTaskData() {
	j.TaskName = ""
	j.Weight = 0
	j.Length = 0
	j.BedType = "unknown"
	j.CoverURL = ""
	j.SlotWeights = [Slots]float64{}
	j.SlotLengths = [Slots]float64{}
}
