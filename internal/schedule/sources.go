/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisSource reads the timetable from a Redis key and re-reads it whenever
// anything is published on the notify channel.
type RedisSource struct {
	client  *redis.Client
	key     string
	channel string
	logger  zerolog.Logger
}

// NewRedisSource creates a Redis-backed live source.
func NewRedisSource(client *redis.Client, key, channel string, logger zerolog.Logger) *RedisSource {
	return &RedisSource{
		client:  client,
		key:     key,
		channel: channel,
		logger:  logger.With().Str("component", "schedule_redis").Logger(),
	}
}

func (s *RedisSource) Name() string { return "redis:" + s.key }

func (s *RedisSource) Watch(ctx context.Context, handle func(*Schedule, error)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Receive confirms the subscription so no update slips in before the first read.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.fetch(ctx, handle)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			s.logger.Debug().Str("channel", s.channel).Msg("schedule change notified")
			s.fetch(ctx, handle)
		}
	}
}

func (s *RedisSource) fetch(ctx context.Context, handle func(*Schedule, error)) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		handle(nil, fmt.Errorf("key %s: %w", s.key, ErrInvalidSchedule))
		return
	}
	if err != nil {
		handle(nil, fmt.Errorf("get %s: %w", s.key, err))
		return
	}
	handle(Decode(raw))
}

// NATSSource receives full timetables published on a subject. The initial
// value is requested on "<subject>.get".
type NATSSource struct {
	conn           *nats.Conn
	subject        string
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewNATSSource creates a NATS-backed live source.
func NewNATSSource(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSSource {
	return &NATSSource{
		conn:           conn,
		subject:        subject,
		requestTimeout: 2 * time.Second,
		logger:         logger.With().Str("component", "schedule_nats").Logger(),
	}
}

func (s *NATSSource) Name() string { return "nats:" + s.subject }

func (s *NATSSource) Watch(ctx context.Context, handle func(*Schedule, error)) error {
	msgs := make(chan *nats.Msg, 16)
	sub, err := s.conn.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.logger.Debug().Err(err).Msg("unsubscribe failed")
		}
	}()

	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	reply, err := s.conn.RequestWithContext(reqCtx, s.subject+".get", nil)
	cancel()
	if err != nil {
		// No responder is normal; the store's bounded wait handles it.
		s.logger.Debug().Err(err).Msg("initial schedule request unanswered")
	} else {
		handle(Decode(reply.Data))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			handle(Decode(msg.Data))
		}
	}
}

// FileSource treats a local file as a live source, re-reading it whenever it
// is written or replaced.
type FileSource struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger
}

// NewFileSource creates a file-watching live source.
func NewFileSource(path string, logger zerolog.Logger) *FileSource {
	return &FileSource{
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
		logger:   logger.With().Str("component", "schedule_file").Logger(),
	}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Watch(ctx context.Context, handle func(*Schedule, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file by rename are seen.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.read(handle)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				pending = time.After(s.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			s.logger.Warn().Err(err).Msg("file watcher error")
		case <-pending:
			pending = nil
			s.read(handle)
		}
	}
}

func (s *FileSource) read(handle func(*Schedule, error)) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		handle(nil, fmt.Errorf("read %s: %w", s.path, err))
		return
	}
	handle(DecodeFile(s.path, raw))
}
