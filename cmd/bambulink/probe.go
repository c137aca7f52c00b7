package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HerbHall/bambulink/internal/mqtt"
	"go.uber.org/zap"
)

// runProbe connects once, prints what the printer reports and exits.
func runProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	timeout := fs.Duration("timeout", 15*time.Second, "how long to wait for the printer")
	_ = fs.Parse(args)

	_, cfg, logger := setup(*configPath)
	defer func() { _ = logger.Sync() }()

	res, err := mqtt.TryConnection(context.Background(), cfg.MQTTConfig(), nil, *timeout, logger)
	if err != nil {
		logger.Error("probe failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		return 1
	}
	fmt.Printf("serial:   %s\nmodel:    %s\nhardware: %s\nfirmware: %s\n",
		cfg.Printer.Serial, res.Model, res.HWVersion, res.SWVersion)
	return 0
}
