package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"MetalsMonitor/internal/app"
	"MetalsMonitor/internal/config"
	"MetalsMonitor/internal/logging"
)

type options struct {
	Config   string `long:"config" env:"METALS_MONITOR_CONFIG" description:"Path to YAML configuration file"`
	Once     bool   `long:"once" description:"Run a single pipeline pass and exit"`
	LogLevel string `long:"log-level" env:"LOG_LEVEL" description:"Override configured log level"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	cfg := config.Load(opts.Config)
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("cannot start", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.Once {
		if err := application.RunOnce(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := application.RunScheduled(ctx); err != nil {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
}
