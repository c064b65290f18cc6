/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/resolver"
	"github.com/friendsincode/schoolbell/internal/telemetry"
)

// boundaryWindow is how close to a boundary a tick must land to fire.
const boundaryWindow = time.Second

// Kind distinguishes period starts from period ends.
type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
)

// Drop reasons recorded on events that did not ring.
const (
	DropNotConnected = "not_connected"
	DropDisabled     = "disabled"
	DropBusy         = "already_ringing"
	DropRingFailed   = "ring_failed"
)

// Event is one detected boundary crossing.
type Event struct {
	ID                  string    `json:"id"`
	BoundaryTimestampMs int64     `json:"boundary_timestamp_ms"`
	Kind                Kind      `json:"kind"`
	Period              string    `json:"period"`
	FiredAt             time.Time `json:"fired_at"`
	Rang                bool      `json:"rang"`
	DropReason          string    `json:"drop_reason,omitempty"`
	Error               string    `json:"error,omitempty"`
}

// Ringer is the part of Link the trigger needs.
type Ringer interface {
	IsConnected() bool
	BellEnabled() bool
	Ring(ctx context.Context, d time.Duration) error
}

// Trigger fires the bell once per period boundary. It is driven from a single
// goroutine and is not safe for concurrent OnTick calls.
type Trigger struct {
	link    Ringer
	history *History
	logger  zerolog.Logger

	lastBoundary int64
	fired        bool
}

// NewTrigger creates a trigger. history may be nil.
func NewTrigger(link Ringer, history *History, logger zerolog.Logger) *Trigger {
	return &Trigger{
		link:    link,
		history: history,
		logger:  logger.With().Str("component", "bell_trigger").Logger(),
	}
}

// OnTick checks the active period's start and then its end against now and
// rings for each boundary not fired yet. It returns the events raised.
func (t *Trigger) OnTick(ctx context.Context, active *resolver.ActivePeriod, now time.Time) []Event {
	if active == nil {
		return nil
	}
	var out []Event
	if e, ok := t.check(ctx, active, active.StartTime, KindStart, now); ok {
		out = append(out, e)
	}
	if e, ok := t.check(ctx, active, active.EndTime, KindEnd, now); ok {
		out = append(out, e)
	}
	return out
}

// LastBoundary returns the marker and whether anything has fired yet.
func (t *Trigger) LastBoundary() (int64, bool) {
	return t.lastBoundary, t.fired
}

func (t *Trigger) check(ctx context.Context, active *resolver.ActivePeriod, boundary time.Time, kind Kind, now time.Time) (Event, bool) {
	delta := now.Sub(boundary)
	if delta < 0 {
		delta = -delta
	}
	ms := boundary.UnixMilli()
	if delta >= boundaryWindow || (t.fired && t.lastBoundary == ms) {
		return Event{}, false
	}
	t.lastBoundary = ms
	t.fired = true

	e := Event{
		ID:                  uuid.NewString(),
		BoundaryTimestampMs: ms,
		Kind:                kind,
		Period:              active.DisplayName,
		FiredAt:             now,
	}
	log := t.logger.With().Str("kind", string(kind)).Str("period", active.DisplayName).Logger()

	switch {
	case !t.link.IsConnected():
		e.DropReason = DropNotConnected
		log.Warn().Msg("bell boundary reached but link not connected, dropping")
	case !t.link.BellEnabled():
		e.DropReason = DropDisabled
		log.Info().Msg("bell boundary reached, bell disabled")
	default:
		err := t.link.Ring(ctx, 0)
		switch {
		case err == nil:
			e.Rang = true
			log.Info().Msg("bell boundary reached, ringing")
		case errors.Is(err, ErrAlreadyRinging):
			e.DropReason = DropBusy
			log.Warn().Msg("bell boundary reached while still ringing")
		default:
			e.DropReason = DropRingFailed
			e.Error = err.Error()
			log.Error().Err(err).Msg("bell ring failed")
		}
	}

	outcome := "rang"
	if !e.Rang {
		outcome = e.DropReason
	}
	telemetry.BellEventsTotal.WithLabelValues(string(kind), outcome).Inc()
	if t.history != nil {
		t.history.Add(e)
	}
	return e, true
}
