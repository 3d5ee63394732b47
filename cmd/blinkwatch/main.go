// blinkwatch watches a driver's eyes through a camera, counts blinks and
// speaks an alert when the eyes stay out of sight too long.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/blinkwatch/internal/config"
	"github.com/teslashibe/blinkwatch/internal/log"
	"github.com/teslashibe/blinkwatch/pkg/app"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	headless := flag.Bool("headless", false, "Disable the preview window")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Init("info")
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *headless {
		cfg.Display.Window = false
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	logger := log.Init(cfg.LogLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := a.Init(); err != nil {
		a.Shutdown()
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		a.Shutdown()
		os.Exit(1)
	}
}
