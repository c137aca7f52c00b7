package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/bambulink/internal/printer"
)

const testSerial = "01S00C000000001"

type fakeSession struct {
	onMessage func([]byte)
	onLost    func(error)

	mu          sync.Mutex
	published   []map[string]any
	topics      []string
	closed      bool
	failPublish bool
	respond     func(cmd string) string
}

func (s *fakeSession) Publish(_ context.Context, topic string, payload []byte) error {
	s.mu.Lock()
	if s.failPublish {
		s.mu.Unlock()
		return errors.New("broker unavailable")
	}
	var m map[string]any
	_ = json.Unmarshal(payload, &m)
	s.published = append(s.published, m)
	s.topics = append(s.topics, topic)
	respond := s.respond
	s.mu.Unlock()

	if respond != nil {
		if reply := respond(commandName(m)); reply != "" {
			go s.onMessage([]byte(reply))
		}
	}
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) deliver(js string) { s.onMessage([]byte(js)) }

func (s *fakeSession) drop() { s.onLost(errors.New("connection reset by peer")) }

// commands lists the published command names in order.
func (s *fakeSession) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.published))
	for _, m := range s.published {
		out = append(out, commandName(m))
	}
	return out
}

// last returns the params of the most recent published command.
func (s *fakeSession) last() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.published) == 0 {
		return nil
	}
	for _, v := range s.published[len(s.published)-1] {
		if obj, ok := v.(map[string]any); ok {
			return obj
		}
	}
	return nil
}

func commandName(m map[string]any) string {
	for _, v := range m {
		if obj, ok := v.(map[string]any); ok {
			name, _ := obj["command"].(string)
			return name
		}
	}
	return ""
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	failures []error
	respond  func(cmd string) string
	dialed   chan *fakeSession
}

func newFakeDialer(failures ...error) *fakeDialer {
	return &fakeDialer{failures: failures, dialed: make(chan *fakeSession, 16)}
}

func (f *fakeDialer) Dial(_ context.Context, onMessage func([]byte), onLost func(error)) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	s := &fakeSession{onMessage: onMessage, onLost: onLost, respond: f.respond}
	f.dialed <- s
	return s, nil
}

func (f *fakeDialer) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeDialer) next(t *testing.T) *fakeSession {
	t.Helper()
	select {
	case s := <-f.dialed:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no session dialed")
		return nil
	}
}

type recorder struct {
	ch chan printer.Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan printer.Event, 256)} }

func (r *recorder) record(e printer.Event) { r.ch <- e }

// until collects events up to and including want.
func (r *recorder) until(t *testing.T, want printer.Event) []printer.Event {
	t.Helper()
	var seen []printer.Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-r.ch:
			seen = append(seen, e)
			if e == want {
				return seen
			}
		case <-deadline:
			t.Fatalf("event %q not seen; got %v", want, seen)
			return nil
		}
	}
}

// drain returns whatever arrives within d.
func (r *recorder) drain(d time.Duration) []printer.Event {
	var seen []printer.Event
	deadline := time.After(d)
	for {
		select {
		case e := <-r.ch:
			seen = append(seen, e)
		case <-deadline:
			return seen
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Serial = testSerial
	cfg.Host = "192.0.2.10"
	cfg.AccessCode = "12345678"
	cfg.ReconnectBackoff = 20 * time.Millisecond
	cfg.WatchdogTimeout = 0
	return cfg
}
