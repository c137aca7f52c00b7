package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/bambulink/internal/cloud"
	"github.com/HerbHall/bambulink/internal/config"
	"github.com/HerbHall/bambulink/internal/event"
	"github.com/HerbHall/bambulink/internal/hms"
	"github.com/HerbHall/bambulink/internal/metrics"
	"github.com/HerbHall/bambulink/internal/mqtt"
	"github.com/HerbHall/bambulink/internal/printer"
	"github.com/HerbHall/bambulink/internal/server"
	"github.com/HerbHall/bambulink/internal/version"
	"github.com/HerbHall/bambulink/internal/webhook"
	"github.com/HerbHall/bambulink/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "probe":
			os.Exit(runProbe(os.Args[2:]))
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	v, cfg, logger := setup(*configPath)
	defer func() { _ = logger.Sync() }()

	logger.Info("bambulink starting",
		zap.String("version", version.Short()),
		zap.String("serial", cfg.Printer.Serial),
		zap.String("mode", cfg.Printer.Mode),
	)
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults and environment", zap.String("component", "config"))
	}

	catalog := loadCatalog(cfg.HMS, logger)
	history := cloud.NewClient(cfg.CloudConfig(), logger)

	client := mqtt.New(cfg.MQTTConfig(), mqtt.Options{
		Device: printer.Options{
			Model:      printer.ParseModel(cfg.Printer.DeviceType),
			Language:   cfg.Printer.Language,
			Catalog:    catalog,
			History:    history,
			UsageHours: cfg.Printer.UsageHours,
		},
		Logger: logger,
	})

	bus := event.NewBus(logger.Named("event"))
	status := func() (string, ws.StatusData) {
		var data ws.StatusData
		client.View(func(d *printer.Device) { data = ws.NewStatusData(d) })
		return cfg.Printer.Serial, data
	}
	wsHandler := ws.NewHandler(bus, cfg.Server.WSToken, status, logger.Named("ws"))
	defer wsHandler.Close()

	counter := metrics.NewEventCounter()
	defer counter.Attach(bus)()
	prometheus.MustRegister(metrics.NewCollector(cfg.Printer.Serial, client), counter)

	bus.SubscribeAll(func(_ context.Context, e event.Event) {
		switch printer.Event(e.Topic) {
		case printer.EventAuthFailed:
			logger.Error("printer rejected credentials; check access code or token")
		case printer.EventPrintFailed, printer.EventPrintError:
			logger.Warn("print problem", zap.String("event", e.Topic))
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := webhook.New(cfg.Webhook, logger.Named("webhook"))
	defer notifier.Close()
	defer notifier.Start(ctx, bus)()
	payload := func(printer.Event) any {
		_, data := status()
		return data
	}
	if err := client.Connect(bus.Callback(ctx, cfg.Printer.Serial, payload)); err != nil {
		logger.Fatal("failed to start printer connection", zap.Error(err))
	}

	srv := server.New(cfg.Server.Addr(), client, nil, logger.Named("server"), wsHandler)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	logger.Info("bambulink ready", zap.String("addr", cfg.Server.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	client.Disconnect()
	client.Wait()

	logger.Info("bambulink stopped")
}

// setup loads configuration and builds the logger, exiting on failure.
func setup(configPath string) (*viper.Viper, config.Config, *zap.Logger) {
	v, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return v, cfg, logger
}

// loadCatalog returns the translated catalog from disk when configured,
// falling back to the embedded English one.
func loadCatalog(c config.HMSConfig, logger *zap.Logger) *hms.Catalog {
	if c.CatalogDir == "" {
		return hms.Default()
	}
	catalog, err := hms.LoadDir(c.CatalogDir)
	if err != nil {
		logger.Warn("falling back to embedded HMS catalog",
			zap.String("dir", c.CatalogDir),
			zap.Error(err),
		)
		return hms.Default()
	}
	logger.Info("HMS catalog loaded",
		zap.String("dir", c.CatalogDir),
		zap.Strings("models", catalog.Models()),
	)
	return catalog
}
