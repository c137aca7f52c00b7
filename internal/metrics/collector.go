// Package metrics exports printer state and event counts to Prometheus.
package metrics

import (
	"strconv"

	"github.com/HerbHall/bambulink/internal/printer"
	"github.com/prometheus/client_golang/prometheus"
)

// Source gives read access to a Device under its owner's lock.
type Source interface {
	View(fn func(*printer.Device))
}

// Compile-time interface guard.
var _ prometheus.Collector = (*Collector)(nil)

// Collector reads the Device on every scrape. All series carry a serial
// label.
type Collector struct {
	source Source
	serial string

	online       *prometheus.Desc
	percent      *prometheus.Desc
	remaining    *prometheus.Desc
	layer        *prometheus.Desc
	totalLayers  *prometheus.Desc
	state        *prometheus.Desc
	temperature  *prometheus.Desc
	target       *prometheus.Desc
	fan          *prometheus.Desc
	hmsErrors    *prometheus.Desc
	usageHours   *prometheus.Desc
	amsHumidity  *prometheus.Desc
	amsTemp      *prometheus.Desc
	amsRemaining *prometheus.Desc
}

// NewCollector creates a Collector for one printer.
func NewCollector(serial string, source Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc("bambulink_printer_"+name, help,
			append([]string{"serial"}, labels...), nil)
	}
	return &Collector{
		source:       source,
		serial:       serial,
		online:       desc("online", "1 when the printer is reporting."),
		percent:      desc("print_percent", "Print progress in percent."),
		remaining:    desc("print_remaining_minutes", "Estimated minutes left in the print."),
		layer:        desc("print_layer", "Current layer."),
		totalLayers:  desc("print_total_layers", "Layers in the job."),
		state:        desc("print_state", "1 for the current print state.", "state"),
		temperature:  desc("temperature_celsius", "Current temperature.", "sensor"),
		target:       desc("target_temperature_celsius", "Target temperature.", "sensor"),
		fan:          desc("fan_percent", "Fan speed in percent.", "fan"),
		hmsErrors:    desc("hms_errors", "Active HMS notifications."),
		usageHours:   desc("usage_hours", "Accumulated printing hours."),
		amsHumidity:  desc("ams_humidity_percent", "AMS relative humidity.", "unit"),
		amsTemp:      desc("ams_temperature_celsius", "AMS temperature.", "unit"),
		amsRemaining: desc("ams_drying_remaining_minutes", "Minutes left in an AMS drying cycle.", "unit"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.online, c.percent, c.remaining, c.layer, c.totalLayers, c.state,
		c.temperature, c.target, c.fan, c.hmsErrors, c.usageHours,
		c.amsHumidity, c.amsTemp, c.amsRemaining,
	} {
		ch <- d
	}
}

var printStates = []printer.GcodeState{
	printer.StateUnknown, printer.StateIdle, printer.StatePrepare, printer.StateSlicing,
	printer.StateRunning, printer.StatePause, printer.StateFinish, printer.StateFailed,
	printer.StateOffline, printer.StateInit,
}

// Collect implements prometheus.Collector. The Device is copied under the
// source's lock and the metrics built outside it.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var (
		info  printer.Info
		job   printer.PrintJob
		temp  printer.Temperature
		fans  printer.Fans
		hms   int
		units []printer.Unit
	)
	c.source.View(func(d *printer.Device) {
		info, job, temp, fans = d.Info, d.PrintJob, d.Temperature, d.Fans
		hms = d.Diagnostics.Count()
		units = d.AMS.Units()
	})

	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v,
			append([]string{c.serial}, labels...)...)
	}

	gauge(c.online, boolValue(info.Online))
	gauge(c.percent, float64(job.Percent))
	gauge(c.remaining, float64(job.RemainingMinutes))
	gauge(c.layer, float64(job.CurrentLayer))
	gauge(c.totalLayers, float64(job.TotalLayers))
	for _, s := range printStates {
		gauge(c.state, boolValue(job.State == s), string(s))
	}

	gauge(c.temperature, float64(temp.Bed), "bed")
	gauge(c.target, float64(temp.BedTarget), "bed")
	gauge(c.temperature, float64(temp.Chamber), "chamber")
	for i := range temp.Nozzle {
		sensor := "nozzle" + strconv.Itoa(i)
		gauge(c.temperature, float64(temp.Nozzle[i]), sensor)
		gauge(c.target, float64(temp.NozzleTarget[i]), sensor)
	}

	gauge(c.fan, float64(printer.FanPercent(fans.PartCooling)), "part_cooling")
	gauge(c.fan, float64(printer.FanPercent(fans.Aux)), "aux")
	gauge(c.fan, float64(printer.FanPercent(fans.Chamber)), "chamber")
	gauge(c.fan, float64(printer.FanPercent(fans.Heatbreak)), "heatbreak")

	gauge(c.hmsErrors, float64(hms))
	gauge(c.usageHours, job.UsageHours)

	for _, u := range units {
		unit := strconv.Itoa(u.Index)
		gauge(c.amsHumidity, float64(u.Humidity), unit)
		gauge(c.amsTemp, u.Temperature, unit)
		gauge(c.amsRemaining, float64(u.RemainingDryingMinutes), unit)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
