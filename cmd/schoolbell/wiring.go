/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/config"
	"github.com/friendsincode/schoolbell/internal/resolver"
	"github.com/friendsincode/schoolbell/internal/schedule"
	"github.com/friendsincode/schoolbell/internal/telemetry"
)

const fallbackFetchTimeout = 10 * time.Second

// buildLiveSource returns the configured live timetable feed, or nil for
// "none". The returned func closes any client it opened.
func buildLiveSource(cfg *config.Config, logger zerolog.Logger) (schedule.Source, func(), error) {
	switch cfg.ScheduleSource {
	case config.ScheduleSourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		src := schedule.NewRedisSource(client, cfg.ScheduleRedisKey, cfg.ScheduleRedisChannel, logger)
		return src, func() { _ = client.Close() }, nil

	case config.ScheduleSourceNATS:
		conn, err := nats.Connect(cfg.NATSURL,
			nats.Name("schoolbell"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			// An unreachable server at boot leaves the store on its fallback
			// until the connection comes up.
			nats.RetryOnFailedConnect(true),
			nats.ConnectHandler(func(c *nats.Conn) {
				logger.Info().Str("url", c.ConnectedUrl()).Msg("nats connected")
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
			}),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn().Err(err).Msg("nats disconnected")
				}
			}),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		src := schedule.NewNATSSource(conn, cfg.ScheduleNATSSubject, logger)
		return src, conn.Close, nil

	case config.ScheduleSourceFile:
		return schedule.NewFileSource(cfg.ScheduleFile, logger), func() {}, nil

	default:
		return nil, func() {}, nil
	}
}

func buildFallback(ctx context.Context, cfg *config.Config) (schedule.Loader, error) {
	loader, err := schedule.NewLoader(ctx, cfg.ScheduleFallback, schedule.S3Options{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		UsePathStyle:    cfg.S3UsePathStyle,
	}, telemetry.HTTPClient(fallbackFetchTimeout))
	if err != nil {
		return nil, fmt.Errorf("schedule fallback: %w", err)
	}
	return loader, nil
}

func buildOpener(cfg *config.Config) (bell.Opener, error) {
	switch cfg.BellTransport {
	case config.BellTransportSerial:
		return bell.NewSerialOpener(cfg.BellDevice, cfg.BellDevices), nil
	case config.BellTransportTCP:
		return &bell.TCPOpener{Addr: cfg.BellTCPAddr}, nil
	case config.BellTransportNone:
		return bell.NoDevice{}, nil
	default:
		return nil, fmt.Errorf("unsupported bell transport %q", cfg.BellTransport)
	}
}

func shiftLabels(cfg *config.Config) resolver.Labels {
	return resolver.Labels{FirstShift: cfg.FirstShiftLabel, SecondShift: cfg.SecondShiftLabel}
}
