package ws

import (
	"time"

	"github.com/HerbHall/bambulink/internal/printer"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessagePrinterEvent MessageType = "printer.event"
	MessageHello        MessageType = "printer.hello"
)

// Message is the envelope for all WebSocket messages. Seq increases by one
// per broadcast; a hello carries the last Seq sent before it, so a client
// can detect a gap.
type Message struct {
	Type      MessageType `json:"type"`
	Seq       uint64      `json:"seq"`
	Serial    string      `json:"serial"`
	Event     string      `json:"event,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

// StatusData summarizes the Device for browser clients.
type StatusData struct {
	Model            string  `json:"model"`
	Firmware         string  `json:"firmware"`
	Online           bool    `json:"online"`
	State            string  `json:"state"`
	Percent          int     `json:"percent"`
	RemainingMinutes int     `json:"remaining_minutes"`
	Layer            int     `json:"layer"`
	TotalLayers      int     `json:"total_layers"`
	TaskName         string  `json:"task_name,omitempty"`
	BedTemp          int     `json:"bed_temp"`
	BedTarget        int     `json:"bed_target"`
	NozzleTemp       int     `json:"nozzle_temp"`
	NozzleTarget     int     `json:"nozzle_target"`
	ChamberTemp      int     `json:"chamber_temp"`
	Stage            string  `json:"stage"`
	UsageHours       float64 `json:"usage_hours"`
	HMSErrors        int     `json:"hms_errors"`
	PrintError       string  `json:"print_error,omitempty"`
}

// NewStatusData reads a summary from d. Callers hold whatever lock guards d.
func NewStatusData(d *printer.Device) StatusData {
	nozzle := d.Info.ActiveNozzle
	if nozzle < 0 || nozzle > 1 {
		nozzle = 0
	}
	return StatusData{
		Model:            string(d.Info.Model),
		Firmware:         d.Info.SWVersion,
		Online:           d.Info.Online,
		State:            string(d.PrintJob.State),
		Percent:          d.PrintJob.Percent,
		RemainingMinutes: d.PrintJob.RemainingMinutes,
		Layer:            d.PrintJob.CurrentLayer,
		TotalLayers:      d.PrintJob.TotalLayers,
		TaskName:         d.PrintJob.TaskName,
		BedTemp:          d.Temperature.Bed,
		BedTarget:        d.Temperature.BedTarget,
		NozzleTemp:       d.Temperature.Nozzle[nozzle],
		NozzleTarget:     d.Temperature.NozzleTarget[nozzle],
		ChamberTemp:      d.Temperature.Chamber,
		Stage:            d.Stage.Description,
		UsageHours:       d.PrintJob.UsageHours,
		HMSErrors:        d.Diagnostics.Count(),
		PrintError:       d.Diagnostics.PrintErrorText,
	}
}
