package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger for cfg. Entries carry the printer
// serial so logs from several bridges can be merged.
func NewLogger(cfg Config) (*zap.Logger, error) {
	logger, err := cfg.Logging.Build()
	if err != nil {
		return nil, err
	}
	if cfg.Printer.Serial != "" {
		logger = logger.With(zap.String("printer", cfg.Printer.Serial))
	}
	return logger, nil
}

// Build creates the logger described by c. An empty level means info and an
// empty output means stderr.
func (c LoggingConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	var zc zap.Config
	switch c.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	case "json", "":
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", c.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	// Reports arrive every second while printing; sampling would hide
	// most of them when tracing at debug.
	if level <= zapcore.DebugLevel {
		zc.Sampling = nil
	}
	if c.Output != "" {
		zc.OutputPaths = []string{c.Output}
	}

	return zc.Build()
}
