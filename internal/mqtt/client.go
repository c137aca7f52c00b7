// Package mqtt is the printer connection manager. It owns one broker
// session per printer, reconnects it with a fixed backoff, funnels every
// inbound message through a single state actor that owns the Device, and
// hands derived events to one callback on a dispatcher goroutine.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HerbHall/bambulink/internal/command"
	"github.com/HerbHall/bambulink/internal/printer"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	inboxSize  = 64
	eventsSize = 128
)

// AMSRegistry is the host-side record of AMS units attached to a printer.
// When the printer becomes ready, units it no longer reports are handed
// back for removal.
type AMSRegistry interface {
	AttachedAMS(printerSerial string) []string
	RemoveAMS(printerSerial string, amsSerials []string)
}

// Options configures a Client beyond its connection settings.
type Options struct {
	Device   printer.Options
	Registry AMSRegistry
	Dialer   Dialer
	Logger   *zap.Logger
}

// Client maintains the session for one printer and owns its Device.
type Client struct {
	cfg      Config
	dialer   Dialer
	registry AMSRegistry
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	device *printer.Device

	inbox   chan []byte
	applyCh chan func(*printer.Device) bool
	events  chan printer.Event

	sessMu  sync.Mutex
	session Session
	seq     atomic.Uint64

	started     atomic.Bool
	shutdown    atomic.Bool
	connected   atomic.Bool
	authOK      atomic.Bool
	lastMessage atomic.Int64

	refresh   *rate.Limiter
	closeOnce sync.Once
}

// New creates a Client. Nothing is dialed until Connect.
func New(cfg Config, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	logger := opts.Logger.Named("mqtt").With(zap.String("serial", cfg.Serial))
	if opts.Dialer == nil {
		opts.Dialer = NewPahoDialer(cfg, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		dialer:   opts.Dialer,
		registry: opts.Registry,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		inbox:    make(chan []byte, inboxSize),
		applyCh:  make(chan func(*printer.Device) bool, inboxSize),
		events:   make(chan printer.Event, eventsSize),
		refresh:  rate.NewLimiter(rate.Every(cfg.RefreshInterval), 1),
	}

	dopts := opts.Device
	dopts.Serial = cfg.Serial
	if dopts.Mode == "" {
		dopts.Mode = cfg.Mode
	}
	if dopts.Logger == nil {
		dopts.Logger = logger.Named("device")
	}
	dopts.Context = ctx
	dopts.Apply = c.enqueueApply
	c.device = printer.New(dopts)
	c.authOK.Store(true)
	return c
}

// Connect starts the supervisor, the state actor and the event dispatcher,
// then returns. cb receives every event from the dispatcher goroutine.
func (c *Client) Connect(cb func(printer.Event)) error {
	if c.shutdown.Load() {
		return ErrClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("already connected")
	}
	if cb == nil {
		cb = func(printer.Event) {}
	}
	c.wg.Add(3)
	go c.dispatch(cb)
	go c.runActor()
	go c.supervise()
	return nil
}

// Disconnect tears the connection down. It is idempotent and safe to call
// from any goroutine, including the event callback. No merge or event
// happens once it has begun.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		c.shutdown.Store(true)
		c.cancel()
		c.closeSession()
		c.logger.Info("disconnected")
	})
}

// Wait blocks until the background goroutines have exited after
// Disconnect. It must not be called from the event callback.
func (c *Client) Wait() { c.wg.Wait() }

// Connected reports whether a session is currently established.
func (c *Client) Connected() bool { return c.connected.Load() }

// AuthOK reports whether the broker accepted the last credentials tried.
func (c *Client) AuthOK() bool { return c.authOK.Load() }

// View runs fn with exclusive access to the Device. fn must not retain the
// pointer or block.
func (c *Client) View(fn func(*printer.Device)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.device)
}

// Publish sends a command on the request topic. It returns false if there
// is no session or the broker did not acknowledge within the publish
// timeout; failures are logged, never raised.
func (c *Client) Publish(cmd command.Command) bool {
	return c.publish(cmd) == nil
}

func (c *Client) publish(cmd command.Command) error {
	sess := c.currentSession()
	if sess == nil || c.shutdown.Load() {
		publishes.WithLabelValues("not_connected").Inc()
		c.logger.Debug("publish without session", zap.Stringer("command", cmd))
		return ErrNotConnected
	}
	payload, err := cmd.Encode(c.seq.Add(1))
	if err != nil {
		publishes.WithLabelValues("error").Inc()
		c.logger.Warn("encode command", zap.Stringer("command", cmd), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.PublishTimeout)
	defer cancel()
	if err := sess.Publish(ctx, c.cfg.requestTopic(), payload); err != nil {
		publishes.WithLabelValues("error").Inc()
		c.logger.Warn("publish failed", zap.Stringer("command", cmd), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	publishes.WithLabelValues("ok").Inc()
	c.logger.Debug("published", zap.Stringer("command", cmd))
	return nil
}

// Refresh requests a full state report, at most once per refresh interval.
func (c *Client) Refresh() bool {
	if !c.refresh.Allow() {
		c.logger.Debug("refresh rate limited")
		return false
	}
	return c.Publish(command.PushAll())
}

func (c *Client) currentSession() Session {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.session
}

func (c *Client) setSession(s Session) {
	c.sessMu.Lock()
	c.session = s
	c.sessMu.Unlock()
}

func (c *Client) closeSession() {
	c.sessMu.Lock()
	s := c.session
	c.session = nil
	c.sessMu.Unlock()
	if s != nil {
		s.Close()
	}
	c.connected.Store(false)
}

// supervise dials, waits for the session to drop, and dials again after
// the backoff, until Disconnect.
func (c *Client) supervise() {
	defer c.wg.Done()
	authAnnounced := false

	for attempt := 0; ; attempt++ {
		if c.ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			reconnectAttempts.Inc()
		}

		lost := make(chan error, 1)
		sess, err := c.dialer.Dial(c.ctx, c.enqueueMessage, func(err error) {
			select {
			case lost <- err:
			default:
			}
		})
		if err != nil {
			if errors.Is(err, ErrAuthRefused) {
				c.authOK.Store(false)
				if !authAnnounced {
					authAnnounced = true
					c.notify(printer.EventAuthFailed)
				}
			}
			c.logger.Warn("connect failed", zap.Error(err), zap.Duration("retry_in", c.cfg.ReconnectBackoff))
			if !c.sleep(c.cfg.ReconnectBackoff) {
				return
			}
			continue
		}

		c.authOK.Store(true)
		authAnnounced = false
		c.startSession(sess)

		c.watch(lost)

		c.closeSession()
		if c.ctx.Err() != nil {
			return
		}
		c.mutate(func(d *printer.Device) bool { return d.SetOnline(false) })
		if !c.sleep(c.cfg.ReconnectBackoff) {
			return
		}
	}
}

func (c *Client) startSession(sess Session) {
	c.seq.Store(0)
	c.setSession(sess)
	if c.ctx.Err() != nil {
		c.closeSession()
		return
	}
	c.connected.Store(true)
	c.lastMessage.Store(time.Now().UnixNano())
	c.mutate(func(d *printer.Device) bool {
		d.ResetSession()
		return false
	})
	c.requestFullState()
}

// requestFullState asks for a version report followed by a full state report.
func (c *Client) requestFullState() {
	c.Publish(command.GetVersion())
	c.Publish(command.PushAll())
}

// watch blocks until the session drops or the client shuts down. While
// connected, a silent stream is marked offline and nudged with a push
// start request.
func (c *Client) watch(lost <-chan error) {
	interval := c.cfg.WatchdogTimeout / 4
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case err := <-lost:
			c.logger.Warn("connection lost", zap.Error(err))
			return
		case <-ticker.C:
			if c.cfg.WatchdogTimeout <= 0 {
				continue
			}
			silent := time.Since(time.Unix(0, c.lastMessage.Load()))
			if silent < c.cfg.WatchdogTimeout {
				continue
			}
			c.logger.Warn("no data from printer", zap.Duration("silent_for", silent))
			c.lastMessage.Store(time.Now().UnixNano())
			c.mutate(func(d *printer.Device) bool { return d.SetOnline(false) })
			c.Publish(command.StartPush())
		}
	}
}

func (c *Client) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// enqueueMessage is called by the session in arrival order. It blocks
// rather than drop, so ordering is kept under load.
func (c *Client) enqueueMessage(payload []byte) {
	c.lastMessage.Store(time.Now().UnixNano())
	select {
	case c.inbox <- payload:
	case <-c.ctx.Done():
	}
}

func (c *Client) enqueueApply(fn func(*printer.Device) bool) {
	select {
	case c.applyCh <- fn:
	case <-c.ctx.Done():
	}
}

// runActor is the only goroutine that mutates the Device from the wire.
func (c *Client) runActor() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.inbox:
			c.handleMessage(msg)
		case fn := <-c.applyCh:
			c.mutate(fn)
		}
	}
}

// mutate applies fn under the lock and emits the resulting events.
func (c *Client) mutate(fn func(*printer.Device) bool) {
	if c.shutdown.Load() {
		return
	}
	c.mu.Lock()
	changed := fn(c.device)
	evs := c.device.TakeEvents()
	c.mu.Unlock()
	c.emit(evs, changed, printer.EventDataUpdated)
}

func (c *Client) emit(evs []printer.Event, changed bool, trailer printer.Event) {
	for _, e := range evs {
		c.notify(e)
	}
	if changed {
		c.notify(trailer)
	}
}

func (c *Client) notify(e printer.Event) {
	if c.shutdown.Load() {
		return
	}
	select {
	case c.events <- e:
	case <-c.ctx.Done():
	}
}

// dispatch invokes the callback for each event, isolating panics.
func (c *Client) dispatch(cb func(printer.Event)) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case e := <-c.events:
			if c.shutdown.Load() {
				return
			}
			c.safeCall(cb, e)
		}
	}
}

func (c *Client) safeCall(cb func(printer.Event), e printer.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event callback panicked",
				zap.String("event", string(e)),
				zap.Any("panic", r),
			)
		}
	}()
	cb(e)
}

func (c *Client) handleMessage(raw []byte) {
	if c.shutdown.Load() {
		return
	}
	msg, err := printer.Decode(raw)
	if err != nil {
		messagesDropped.Inc()
		c.logger.Warn("dropping malformed message", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}

	if report, ok := msg["print"].(map[string]any); ok {
		messagesReceived.WithLabelValues("print").Inc()
		c.mergeReport(report)
	}
	if report, ok := msg["info"].(map[string]any); ok {
		if cmd, _ := report["command"].(string); cmd == "get_version" {
			messagesReceived.WithLabelValues("info").Inc()
			c.mergeVersion(report)
		} else {
			messagesReceived.WithLabelValues("info_ignored").Inc()
			c.logger.Debug("ignoring info reply", zap.String("command", cmd))
		}
	}
	if ev, ok := msg["event"].(map[string]any); ok {
		messagesReceived.WithLabelValues("event").Inc()
		c.handleCloudEvent(ev)
	}
}

func (c *Client) mergeReport(report map[string]any) {
	c.mu.Lock()
	changed := c.device.MergeStateDelta(report)
	evs := c.device.TakeEvents()
	c.mu.Unlock()
	c.afterMerge(evs)
	c.emit(evs, changed, printer.EventDataUpdated)
}

func (c *Client) mergeVersion(report map[string]any) {
	c.mu.Lock()
	c.device.MergeInfo(report)
	evs := c.device.TakeEvents()
	c.mu.Unlock()
	c.afterMerge(evs)
	c.emit(evs, true, printer.EventInfoUpdated)
}

// afterMerge hands stale AMS units to the registry once the printer is ready.
func (c *Client) afterMerge(evs []printer.Event) {
	if c.registry == nil || !slices.Contains(evs, printer.EventPrinterReady) {
		return
	}
	var current []string
	c.View(func(d *printer.Device) { current = d.AMS.CatalogSerials() })

	stale := printer.StaleUnits(c.registry.AttachedAMS(c.cfg.Serial), current)
	if len(stale) == 0 {
		return
	}
	c.logger.Info("removing stale AMS units", zap.Strings("ams", stale))
	c.registry.RemoveAMS(c.cfg.Serial, stale)
}

// handleCloudEvent reacts to the cloud broker's presence notifications.
func (c *Client) handleCloudEvent(ev map[string]any) {
	name, _ := ev["event"].(string)
	switch name {
	case "client.connected":
		c.logger.Info("printer connected to cloud")
		go c.requestFullState()
	case "client.disconnected":
		c.logger.Info("printer disconnected from cloud")
		c.mutate(func(d *printer.Device) bool { return d.SetOnline(false) })
	default:
		c.logger.Debug("ignoring cloud event", zap.String("event", name))
	}
}
