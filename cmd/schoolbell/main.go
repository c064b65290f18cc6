/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	// Embedded zoneinfo so Europe/Belgrade resolves on minimal kiosk images.
	_ "time/tzdata"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/config"
	"github.com/friendsincode/schoolbell/internal/db"
	"github.com/friendsincode/schoolbell/internal/events"
	"github.com/friendsincode/schoolbell/internal/kiosk"
	"github.com/friendsincode/schoolbell/internal/logbuffer"
	"github.com/friendsincode/schoolbell/internal/logging"
	"github.com/friendsincode/schoolbell/internal/schedule"
	"github.com/friendsincode/schoolbell/internal/server"
	"github.com/friendsincode/schoolbell/internal/settings"
	"github.com/friendsincode/schoolbell/internal/telemetry"
	"github.com/friendsincode/schoolbell/internal/timesync"
	"github.com/friendsincode/schoolbell/internal/version"
)

const (
	historyCapacity   = 200
	logBufferCapacity = 2000
	dbMetricsInterval = 30 * time.Second
)

var (
	logger    zerolog.Logger
	cfg       *config.Config
	logCloser io.Closer
	logBuf    = logbuffer.New(logBufferCapacity)
)

var rootCmd = &cobra.Command{
	Use:   "schoolbell",
	Short: "Schoolbell - school timetable display and bell controller",
	Long:  "Schoolbell shows the current class or break with a countdown and rings the school bell at every period boundary.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the display feed, tick loop and bell trigger",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser = logging.SetupWithFile(cfg.Environment, logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Capture:    logBuf,
	})
	if cfg.InstanceID != "" {
		logger = logger.With().Str("instance", cfg.InstanceID).Logger()
	}
	if cfg.EnvFileLoaded != "" {
		logger.Debug().Str("path", cfg.EnvFileLoaded).Msg("loaded env file")
	}
	return nil
}

func closeLog() {
	if logCloser != nil {
		_ = logCloser.Close()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	defer closeLog()

	logger.Info().Str("version", version.Version).Msg("Schoolbell starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "schoolbell",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	bus := events.NewBus()

	settingsStore, err := settings.NewStore(ctx, database, cfg.BellDefaults, logger)
	if err != nil {
		return fmt.Errorf("load bell settings: %w", err)
	}
	cancelObserve := settingsStore.Observe(func(s settings.Settings) {
		bus.Publish(events.EventSettings, time.Now(), s)
	})
	defer cancelObserve()

	clock := timesync.New(timesync.Config{
		URL:      cfg.TimeAPIURL,
		Location: cfg.Location,
		Interval: cfg.TimeSyncInterval,
		OnSync: func(off timesync.Offset) {
			bus.Publish(events.EventClockSync, time.Now(), off)
		},
	}, logger)
	clock.Start(ctx)
	defer clock.Stop()

	live, closeLive, err := buildLiveSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLive()
	fallback, err := buildFallback(ctx, cfg)
	if err != nil {
		return err
	}
	schedules := schedule.NewStore(live, fallback, cfg.ScheduleWait, logger)

	opener, err := buildOpener(cfg)
	if err != nil {
		return err
	}
	link := bell.NewLink(opener, settingsStore, logger)
	history := bell.NewHistory(historyCapacity)
	trigger := bell.NewTrigger(link, history, logger)

	runner := kiosk.NewRunner(clock, trigger, bus, shiftLabels(cfg), logger)
	unsubscribe := schedules.Subscribe(runner.SetSchedule)
	defer unsubscribe()

	srv, err := server.New(cfg, server.Deps{
		State:    runner,
		Schedule: schedules,
		Settings: settingsStore,
		Bell:     link,
		Clock:    clock,
		History:  history,
		Bus:      bus,
		Logs:     logBuf,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return schedules.Run(gctx) })
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error {
		link.AutoConnect(gctx)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(dbMetricsInterval)
		defer ticker.Stop()
		for {
			db.UpdateConnectionMetrics(database)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	err = g.Wait()
	logger.Info().Msg("shutting down gracefully...")

	// Disconnect sends any pending stop frame so the relay is not left on.
	if derr := link.Disconnect(); derr != nil {
		logger.Error().Err(derr).Msg("bell link disconnect failed")
	}
	if err != nil {
		return err
	}

	logger.Info().Msg("Schoolbell stopped")
	return nil
}
