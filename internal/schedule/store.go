/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/telemetry"
)

// DefaultWait bounds how long the store waits for the first live value.
const DefaultWait = 3 * time.Second

// defaultRetryDelay spaces out reconnects when a live source stops.
const defaultRetryDelay = 30 * time.Second

// SourceKind says where an accepted timetable came from.
type SourceKind string

const (
	SourceLive  SourceKind = "live"
	SourceLocal SourceKind = "local"
)

// Update is one accepted timetable snapshot.
type Update struct {
	Schedule   *Schedule  `json:"schedule"`
	Source     SourceKind `json:"source"`
	Origin     string     `json:"origin"`
	ReceivedAt time.Time  `json:"received_at"`
}

// Source is a push-based live timetable feed. Watch blocks until ctx is done
// or the feed fails, calling handle for every value it sees. handle may be
// called from any goroutine.
type Source interface {
	Name() string
	Watch(ctx context.Context, handle func(*Schedule, error)) error
}

// Loader fetches the static fallback timetable.
type Loader interface {
	Name() string
	Load(ctx context.Context) (*Schedule, error)
}

// Store keeps the latest valid timetable and fans it out to subscribers.
type Store struct {
	live       Source
	fallback   Loader
	wait       time.Duration
	retryDelay time.Duration
	logger     zerolog.Logger

	mu      sync.RWMutex
	current *Update
	subs    map[int]func(Update)
	nextSub int
	gotLive bool
	// liveGen counts accepted live values; a fallback load started before
	// the latest one is discarded.
	liveGen uint64
}

// NewStore creates a store. live may be nil, in which case the fallback is
// loaded immediately.
func NewStore(live Source, fallback Loader, wait time.Duration, logger zerolog.Logger) *Store {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Store{
		live:       live,
		fallback:   fallback,
		wait:       wait,
		retryDelay: defaultRetryDelay,
		logger:     logger.With().Str("component", "schedule_store").Logger(),
		subs:       make(map[int]func(Update)),
	}
}

// Subscribe registers handler for every accepted update. If a timetable is
// already known the handler is called with it before Subscribe returns.
func (s *Store) Subscribe(handler func(Update)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = handler
	var cur *Update
	if s.current != nil {
		c := *s.current
		cur = &c
	}
	s.mu.Unlock()

	if cur != nil {
		handler(*cur)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Current returns the latest accepted update.
func (s *Store) Current() (Update, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Update{}, false
	}
	return *s.current, true
}

// Run drives the live source and the bounded-wait fallback until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	if s.live == nil {
		s.loadFallback(ctx, "no live source configured")
		<-ctx.Done()
		return nil
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()
	go func() {
		select {
		case <-ctx.Done():
		case <-timer.C:
			if _, ok := s.Current(); !ok {
				s.loadFallback(ctx, "live source timed out")
			}
		}
	}()

	for {
		err := s.live.Watch(ctx, func(sch *Schedule, err error) {
			s.handleLive(ctx, sch, err)
		})
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Str("source", s.live.Name()).Dur("retry_in", s.retryDelay).Msg("live schedule source stopped")
		if _, ok := s.Current(); !ok {
			s.loadFallback(ctx, "live source unavailable")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retryDelay):
		}
	}
}

// LiveSeen reports whether any valid live value has been accepted.
func (s *Store) LiveSeen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gotLive
}

func (s *Store) handleLive(ctx context.Context, sch *Schedule, err error) {
	if err == nil {
		err = sch.Validate()
	}
	if err != nil {
		reason := "error"
		if errors.Is(err, ErrInvalidSchedule) {
			reason = "invalid"
		}
		telemetry.ScheduleRejectedTotal.WithLabelValues(string(SourceLive), reason).Inc()
		s.logger.Warn().Err(err).Str("source", s.live.Name()).Msg("live schedule unusable, loading local schedule")
		s.loadFallback(ctx, "live value unusable")
		return
	}

	s.publish(sch, SourceLive, s.live.Name(), 0)
	s.logger.Info().Str("source", s.live.Name()).Msg("schedule loaded from live source")
}

func (s *Store) loadFallback(ctx context.Context, reason string) {
	if s.fallback == nil {
		s.logger.Error().Str("reason", reason).Msg("no fallback schedule configured")
		return
	}
	s.mu.RLock()
	gen := s.liveGen
	s.mu.RUnlock()

	sch, err := s.fallback.Load(ctx)
	if err == nil {
		err = sch.Validate()
	}
	if err != nil {
		telemetry.ScheduleRejectedTotal.WithLabelValues(string(SourceLocal), "invalid").Inc()
		s.logger.Error().Err(err).Str("loader", s.fallback.Name()).Msg("local schedule is not valid")
		return
	}
	if !s.publish(sch, SourceLocal, s.fallback.Name(), gen) {
		s.logger.Info().Str("loader", s.fallback.Name()).Msg("live schedule arrived during fallback load, discarding local schedule")
		return
	}
	s.logger.Info().Str("loader", s.fallback.Name()).Str("reason", reason).Msg("schedule loaded from local fallback")
}

// publish makes sch current. A local schedule is only accepted while no live
// value newer than liveGen has been seen.
func (s *Store) publish(sch *Schedule, kind SourceKind, origin string, liveGen uint64) bool {
	if bad := sch.MalformedPeriods(); len(bad) > 0 {
		s.logger.Warn().Strs("periods", bad).Msg("schedule has periods with unparseable times; they will be skipped")
	}
	u := Update{
		Schedule:   sch.Clone(),
		Source:     kind,
		Origin:     origin,
		ReceivedAt: time.Now(),
	}

	s.mu.Lock()
	switch kind {
	case SourceLive:
		s.gotLive = true
		s.liveGen++
	case SourceLocal:
		if s.liveGen != liveGen {
			s.mu.Unlock()
			return false
		}
	}
	s.current = &u
	handlers := make([]func(Update), 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	telemetry.ScheduleUpdatesTotal.WithLabelValues(string(kind)).Inc()
	for _, h := range handlers {
		h(u)
	}
	return true
}
