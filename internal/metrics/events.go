package metrics

import (
	"context"

	"github.com/HerbHall/bambulink/internal/event"
	"github.com/prometheus/client_golang/prometheus"
)

// EventCounter counts bus events by printer and event name.
type EventCounter struct {
	total *prometheus.CounterVec
}

// NewEventCounter creates an EventCounter. Register it like any other
// collector.
func NewEventCounter() *EventCounter {
	return &EventCounter{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bambulink_printer_events_total",
				Help: "Printer events delivered, by event name.",
			},
			[]string{"serial", "event"},
		),
	}
}

// Describe implements prometheus.Collector.
func (e *EventCounter) Describe(ch chan<- *prometheus.Desc) { e.total.Describe(ch) }

// Collect implements prometheus.Collector.
func (e *EventCounter) Collect(ch chan<- prometheus.Metric) { e.total.Collect(ch) }

// Handle is an event.Handler.
func (e *EventCounter) Handle(_ context.Context, ev event.Event) {
	e.total.WithLabelValues(ev.Source, ev.Topic).Inc()
}

// Attach subscribes the counter to every topic on bus.
func (e *EventCounter) Attach(bus *event.Bus) (unsubscribe func()) {
	return bus.SubscribeAll(e.Handle)
}
