// Package webhook posts selected printer events to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/HerbHall/bambulink/internal/event"
	"github.com/HerbHall/bambulink/internal/printer"
	"github.com/HerbHall/bambulink/internal/version"
	"go.uber.org/zap"
)

const queueSize = 64

// Config holds the webhook settings.
type Config struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Events  []string      `mapstructure:"events"`
}

// DefaultEvents are delivered when Config.Events is empty.
var DefaultEvents = []string{
	string(printer.EventPrintStarted),
	string(printer.EventPrintFinished),
	string(printer.EventPrintFailed),
	string(printer.EventPrintCanceled),
	string(printer.EventPrintError),
	string(printer.EventHMSErrors),
	string(printer.EventAuthFailed),
}

// DefaultConfig returns sensible defaults for the notifier.
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// Payload is the JSON body sent to the webhook URL.
type Payload struct {
	Event     string `json:"event"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Notifier delivers events in order from a single worker so a slow
// endpoint never stalls the bus.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	queue  chan Payload
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a Notifier. It does nothing until Start.
func New(cfg Config, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if len(cfg.Events) == 0 {
		cfg.Events = DefaultEvents
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		queue:  make(chan Payload, queueSize),
	}
}

// Enabled reports whether a URL is configured.
func (n *Notifier) Enabled() bool { return n.cfg.URL != "" }

// Start subscribes to bus and runs the delivery worker until ctx ends or
// Close is called. It returns an unsubscribe function.
func (n *Notifier) Start(ctx context.Context, bus *event.Bus) (unsubscribe func()) {
	if !n.Enabled() {
		n.logger.Info("webhook URL not configured; notifications disabled")
		return func() {}
	}
	n.wg.Add(1)
	go n.run(ctx)

	unsubscribe = bus.Subscribe(n.handleEvent, n.cfg.Events...)
	n.logger.Info("webhook notifier started",
		zap.String("url", n.cfg.URL),
		zap.Strings("events", n.cfg.Events),
	)
	return unsubscribe
}

// Close stops accepting events and waits for queued deliveries.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.queue) })
	n.wg.Wait()
}

// Wants reports whether topic is delivered.
func (n *Notifier) Wants(topic string) bool { return slices.Contains(n.cfg.Events, topic) }

func (n *Notifier) handleEvent(_ context.Context, e event.Event) {
	p := Payload{
		Event:     e.Topic,
		Source:    e.Source,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Data:      e.Payload,
	}
	defer func() {
		// Send on a closed queue after Close.
		if recover() != nil {
			n.logger.Debug("webhook closed, dropping event", zap.String("topic", e.Topic))
		}
	}()
	select {
	case n.queue <- p:
	default:
		n.logger.Warn("webhook queue full, dropping event", zap.String("topic", e.Topic))
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-n.queue:
			if !ok {
				return
			}
			n.deliver(ctx, p)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, p Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		n.logger.Error("failed to marshal webhook payload",
			zap.String("topic", p.Event),
			zap.Error(err),
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to create webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bambulink-webhook/"+version.Short())

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("url", n.cfg.URL),
			zap.String("topic", p.Event),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Warn("webhook endpoint returned error",
			zap.String("url", n.cfg.URL),
			zap.String("topic", p.Event),
			zap.Int("status_code", resp.StatusCode),
		)
		return
	}

	n.logger.Debug("webhook delivered",
		zap.String("topic", p.Event),
		zap.Int("status_code", resp.StatusCode),
	)
}
