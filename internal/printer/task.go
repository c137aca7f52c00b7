package printer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// enrichTimeout bounds one task-history lookup.
const enrichTimeout = 20 * time.Second

// ErrHistoryUnauthorized is returned by a TaskHistory whose credentials
// were rejected.
var ErrHistoryUnauthorized = errors.New("task history: unauthorized")

// Task is historical job metadata for the most recent print.
type Task struct {
	ID          int64
	Title       string
	CoverURL    string
	Status      int
	StartTime   time.Time
	EndTime     time.Time
	Weight      float64
	Length      float64
	BedType     string
	SlotWeights [Slots]float64
	SlotLengths [Slots]float64
}

// TaskHistory supplies historical job metadata keyed by device serial.
type TaskHistory interface {
	Authenticated() bool
	LatestTask(ctx context.Context, serial string) (*Task, error)
}

// requestEnrichment starts a background lookup of the latest task. The
// result is applied through Options.Apply and discarded if a newer request
// has been made meanwhile.
func (d *Device) requestEnrichment() {
	d.enrichGen++
	gen := d.enrichGen

	h := d.opts.History
	if h == nil || !h.Authenticated() {
		d.PrintJob.resetTaskData()
		return
	}
	if d.opts.Apply == nil {
		return
	}

	serial := d.Info.Serial
	parent := d.opts.Context
	apply := d.opts.Apply
	log := d.log
	go func() {
		ctx, cancel := context.WithTimeout(parent, enrichTimeout)
		defer cancel()
		task, err := h.LatestTask(ctx, serial)
		if err != nil && ctx.Err() == nil {
			log.Warn("task history lookup failed", zap.Error(err))
		}
		if parent.Err() != nil {
			return
		}
		apply(func(dev *Device) bool { return dev.applyTask(gen, task, err) })
	}()
}

func (d *Device) applyTask(gen uint64, task *Task, err error) bool {
	if gen != d.enrichGen {
		d.log.Debug("discarding stale task data")
		return false
	}
	before := d.PrintJob.clone()

	if errors.Is(err, ErrHistoryUnauthorized) {
		d.emit(EventAuthFailed)
	}
	if err != nil || task == nil {
		d.PrintJob.resetTaskData()
		return !d.PrintJob.equal(before)
	}

	j := &d.PrintJob
	j.TaskName = task.Title
	j.Weight = task.Weight
	j.Length = task.Length
	j.BedType = task.BedType
	if j.BedType == "" {
		j.BedType = "unknown"
	}
	j.CoverURL = task.CoverURL
	j.SlotWeights = task.SlotWeights
	j.SlotLengths = task.SlotLengths
	return !j.equal(before)
}
