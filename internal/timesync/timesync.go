/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timesync keeps a network-corrected wall clock. A periodic fetch of a
// trusted time endpoint yields an offset that Now applies to the local clock.
package timesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/telemetry"
	"github.com/friendsincode/schoolbell/internal/version"
)

// DefaultURL is the public time endpoint used when none is configured.
const DefaultURL = "https://timeapi.io/api/Time/current/zone?timeZone=Europe/Belgrade"

const (
	defaultInterval = 5 * time.Minute
	defaultTimeout  = 10 * time.Second
	maxPayloadBytes = 64 << 10
)

// ErrMalformedPayload is returned when the time endpoint answers with missing
// or out-of-range fields.
var ErrMalformedPayload = errors.New("timesync: malformed time payload")

// Offset is the correction applied to the local clock.
type Offset struct {
	Offset       time.Duration `json:"offset"`
	Trusted      bool          `json:"trusted"`
	LastSyncedAt time.Time     `json:"last_synced_at"`
}

// Response is the time endpoint payload. Fields are pointers so a missing
// field is distinguishable from zero.
type Response struct {
	Year         *int   `json:"year"`
	Month        *int   `json:"month"`
	Day          *int   `json:"day"`
	Hour         *int   `json:"hour"`
	Minute       *int   `json:"minute"`
	Seconds      *int   `json:"seconds"`
	MilliSeconds *int   `json:"milliSeconds"`
	DateTime     string `json:"dateTime"`
}

// Time returns the reference instant the payload describes in loc.
func (r Response) Time(loc *time.Location) (time.Time, error) {
	fields := []struct {
		name     string
		v        *int
		min, max int
	}{
		{"year", r.Year, 1, 9999},
		{"month", r.Month, 1, 12},
		{"day", r.Day, 1, 31},
		{"hour", r.Hour, 0, 23},
		{"minute", r.Minute, 0, 59},
		{"seconds", r.Seconds, 0, 59},
		{"milliSeconds", r.MilliSeconds, 0, 999},
	}
	for _, f := range fields {
		if f.v == nil {
			return time.Time{}, fmt.Errorf("%w: missing %s", ErrMalformedPayload, f.name)
		}
		if *f.v < f.min || *f.v > f.max {
			return time.Time{}, fmt.Errorf("%w: %s=%d out of range", ErrMalformedPayload, f.name, *f.v)
		}
	}

	t := time.Date(*r.Year, time.Month(*r.Month), *r.Day, *r.Hour, *r.Minute, *r.Seconds,
		*r.MilliSeconds*int(time.Millisecond), loc)
	if t.Day() != *r.Day {
		return time.Time{}, fmt.Errorf("%w: day %d does not exist in month %d", ErrMalformedPayload, *r.Day, *r.Month)
	}
	return t, nil
}

// Config configures a Source.
type Config struct {
	URL      string
	Location *time.Location
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
	// OnSync, if set, is called after every sync attempt with the resulting offset.
	OnSync func(Offset)
}

// Source is the trusted clock. Now never performs I/O.
type Source struct {
	mu     sync.RWMutex
	offset Offset

	url      string
	loc      *time.Location
	interval time.Duration
	client   *http.Client
	now      func() time.Time
	onSync   func(Offset)
	logger   zerolog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Source. It starts untrusted until the first successful sync.
func New(cfg Config, logger zerolog.Logger) *Source {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = telemetry.HTTPClient(cfg.Timeout)
	}
	return &Source{
		url:      cfg.URL,
		loc:      cfg.Location,
		interval: cfg.Interval,
		client:   cfg.Client,
		now:      time.Now,
		onSync:   cfg.OnSync,
		logger:   logger.With().Str("component", "timesync").Logger(),
	}
}

// Start syncs in the background, then resyncs every interval until Stop or
// ctx is done. Now reports the local clock until the first sync succeeds.
func (s *Source) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		_ = s.Sync(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.Sync(ctx)
			}
		}
	}()
}

// Stop ends periodic resync and waits for the loop to exit.
func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// Now returns the corrected time in the configured zone, or the local clock
// when the last sync failed.
func (s *Source) Now() time.Time {
	s.mu.RLock()
	off := s.offset
	s.mu.RUnlock()

	t := s.now()
	if off.Trusted {
		t = t.Add(off.Offset)
	}
	return t.In(s.loc)
}

// IsTrusted reports whether the last sync succeeded.
func (s *Source) IsTrusted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset.Trusted
}

// Offset returns the current correction.
func (s *Source) Offset() Offset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Location returns the zone Now reports in.
func (s *Source) Location() *time.Location {
	return s.loc
}

// Sync performs one fetch. Failures mark the clock untrusted and are returned
// for callers that care; the periodic loop only logs them.
func (s *Source) Sync(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "timesync", "timesync.sync")
	defer span.End()

	off, err := s.fetch(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.ClockSyncTotal.WithLabelValues("failure").Inc()
		telemetry.ClockTrusted.Set(0)

		s.mu.Lock()
		s.offset.Trusted = false
		result := s.offset
		s.mu.Unlock()

		s.logger.Warn().Err(err).Str("url", s.url).Msg("time sync failed, using system time")
		s.notify(result)
		return err
	}

	telemetry.ClockSyncTotal.WithLabelValues("success").Inc()
	telemetry.ClockTrusted.Set(1)
	telemetry.ClockOffsetSeconds.Set(off.Seconds())

	result := Offset{Offset: off, Trusted: true, LastSyncedAt: s.now()}
	s.mu.Lock()
	s.offset = result
	s.mu.Unlock()

	s.logger.Info().Int64("offset_ms", off.Milliseconds()).Msg("time synced")
	s.notify(result)
	return nil
}

func (s *Source) notify(off Offset) {
	if s.onSync != nil {
		s.onSync(off)
	}
}

func (s *Source) fetch(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "schoolbell/"+version.Version)

	before := s.now()
	resp, err := s.client.Do(req)
	after := s.now()
	if err != nil {
		return 0, fmt.Errorf("fetch time: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("fetch time: unexpected status %d", resp.StatusCode)
	}

	var payload Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ref, err := payload.Time(s.loc)
	if err != nil {
		return 0, err
	}

	delay := after.Sub(before) / 2
	off := ref.Add(delay).Sub(s.now())
	return off.Round(time.Millisecond), nil
}
