package printer

import (
	"testing"
	"time"

	"github.com/HerbHall/bambulink/internal/hms"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time           { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDevice(t *testing.T, model Model, mutate ...func(*Options)) (*Device, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts := Options{
		Serial:   "01S00C000000001",
		Model:    model,
		Language: "en",
		Catalog:  hms.Default(),
		Logger:   zaptest.NewLogger(t),
		Now:      clk.now,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return New(opts), clk
}

func mustDecode(t *testing.T, js string) map[string]any {
	t.Helper()
	m, err := Decode([]byte(js))
	require.NoError(t, err)
	return m
}

func merge(t *testing.T, d *Device, js string) bool {
	t.Helper()
	return d.MergeStateDelta(mustDecode(t, js))
}

func countEvents(events []Event) map[Event]int {
	out := make(map[Event]int)
	for _, e := range events {
		out[e]++
	}
	return out
}

// withFirmware marks the device as fully identified so feature gates apply.
func withFirmware(d *Device, sw string) {
	d.Info.SWVersion = sw
}
