// Package event fans printer events out to in-process subscribers such as
// the websocket hub and the metrics collector.
package event

import (
	"context"
	"time"

	"github.com/HerbHall/bambulink/internal/printer"
)

// Event is one notification on the bus. Topic is the printer event name.
type Event struct {
	Topic     string
	Source    string // printer serial
	Timestamp time.Time
	Payload   any
}

// Handler processes events from the bus.
type Handler func(ctx context.Context, event Event)

// Callback adapts the bus to the callback a printer client delivers events
// to. payload, when non-nil, is called once per event to attach data.
func (b *Bus) Callback(ctx context.Context, source string, payload func(printer.Event) any) func(printer.Event) {
	return func(e printer.Event) {
		ev := Event{Topic: string(e), Source: source, Timestamp: b.now()}
		if payload != nil {
			ev.Payload = payload(e)
		}
		b.Publish(ctx, ev)
	}
}
