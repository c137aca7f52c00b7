package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/bambulink/internal/command"
	"github.com/HerbHall/bambulink/internal/printer"
	"go.uber.org/zap"
)

// ProbeResult is what a successful probe learned about the printer.
type ProbeResult struct {
	Model     printer.Model
	HWVersion string
	SWVersion string
}

// TryConnection connects once, waits for a single version report, and
// disconnects in every case. It validates credentials and reachability; it
// never starts the supervisor.
func TryConnection(ctx context.Context, cfg Config, dialer Dialer, timeout time.Duration, logger *zap.Logger) (ProbeResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	logger = logger.Named("probe").With(zap.String("serial", cfg.Serial))
	if dialer == nil {
		dialer = NewPahoDialer(cfg, logger)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reports := make(chan map[string]any, 1)
	onMessage := func(raw []byte) {
		msg, err := printer.Decode(raw)
		if err != nil {
			logger.Debug("probe ignoring malformed message", zap.Error(err))
			return
		}
		info, ok := msg["info"].(map[string]any)
		if !ok {
			return
		}
		if cmd, _ := info["command"].(string); cmd != "get_version" {
			return
		}
		select {
		case reports <- info:
		default:
		}
	}

	sess, err := dialer.Dial(ctx, onMessage, func(error) {})
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe: %w", err)
	}
	defer sess.Close()

	payload, err := command.GetVersion().Encode(1)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe: %w", err)
	}
	if err := sess.Publish(ctx, cfg.requestTopic(), payload); err != nil {
		return ProbeResult{}, fmt.Errorf("probe: %w: %w", ErrPublishFailed, err)
	}

	select {
	case info := <-reports:
		d := printer.New(printer.Options{Serial: cfg.Serial, Mode: cfg.Mode, Logger: logger})
		d.MergeInfo(info)
		res := ProbeResult{Model: d.Info.Model, HWVersion: d.Info.HWVersion, SWVersion: d.Info.SWVersion}
		logger.Info("probe succeeded",
			zap.String("model", string(res.Model)),
			zap.String("firmware", res.SWVersion),
		)
		return res, nil
	case <-ctx.Done():
		return ProbeResult{}, ErrProbeTimeout
	}
}

// TryConnection probes with this client's settings without touching its
// session or Device.
func (c *Client) TryConnection(ctx context.Context, timeout time.Duration) (ProbeResult, error) {
	return TryConnection(ctx, c.cfg, c.dialer, timeout, c.logger)
}
