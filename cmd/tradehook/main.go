// Command tradehook runs the webhook trading service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openquant/tradehook/internal/app/runtime"
	"github.com/openquant/tradehook/internal/config"
	"github.com/openquant/tradehook/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	host := flag.String("host", "", "listen host (overrides HOST)")
	port := flag.Int("port", 0, "listen port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Dir:    cfg.Logging.DataDir,
	}).WithField("service", "tradehook")

	app, err := runtime.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to build application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start")
		os.Exit(1)
	}
	log.WithFields(map[string]interface{}{
		"addr":        cfg.Server.Addr(),
		"environment": cfg.Server.Environment,
	}).Info("tradehook started")

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
	log.Info("tradehook stopped")
}
