// Package main is the entry point for the marketpulse dashboard backend.
//
// It serves cached market data for the signal dashboard and keeps serving the
// last known values outside trading hours, along with the combined health of
// the market session, the broker login and the live feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/di"
	"github.com/aristath/marketpulse/internal/server"
	"github.com/aristath/marketpulse/internal/version"
	"github.com/aristath/marketpulse/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
		File:   cfg.LogFile,
	})

	log.Info().
		Str("version", version.Version).
		Str("data_dir", cfg.DataDir).
		Str("timezone", cfg.Market.Location.String()).
		Msg("Starting marketpulse")

	// Opens cache.db and config.db, restores backup slots, registers jobs
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Version:   version.Version,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Verify the stored token and warm the cache before the first scheduled tick
	for _, name := range []string{"auth_check", "quote_poll"} {
		if job, ok := container.Jobs[name]; ok {
			if err := container.Scheduler.RunNow(job); err != nil {
				log.Warn().Err(err).Str("job", name).Msg("Startup run failed")
			}
		}
	}

	container.StatusMonitor.Start()
	container.Scheduler.Start()
	if container.TickStream != nil {
		container.TickStream.Start()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Scheduler.Stop()
	if container.TickStream != nil {
		container.TickStream.Stop()
	}
	container.StatusMonitor.Stop()

	// Persist the latest values so the next start serves them as backup data
	if job, ok := container.Jobs["cache_backup"]; ok {
		if err := container.Scheduler.RunNow(job); err != nil {
			log.Error().Err(err).Msg("Final cache backup failed")
		}
	}

	log.Info().Msg("Server stopped")
}
