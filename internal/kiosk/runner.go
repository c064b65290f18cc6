/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package kiosk runs the 1 Hz loop that reads the trusted clock, resolves the
// timetable and checks bell boundaries, in that order, once per tick.
package kiosk

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/events"
	"github.com/friendsincode/schoolbell/internal/resolver"
	"github.com/friendsincode/schoolbell/internal/schedule"
	"github.com/friendsincode/schoolbell/internal/telemetry"
)

const defaultInterval = time.Second

// Clock is the time source read at the top of each tick.
type Clock interface {
	Now() time.Time
	IsTrusted() bool
}

// Snapshot is what the display renders for one tick.
type Snapshot struct {
	resolver.State
	Now                time.Time           `json:"now"`
	ClockTrusted       bool                `json:"clock_trusted"`
	ScheduleSource     schedule.SourceKind `json:"schedule_source,omitempty"`
	OutsideSchoolHours bool                `json:"outside_school_hours"`
}

// Runner owns the tick loop and the current timetable snapshot.
type Runner struct {
	clock    Clock
	trigger  *bell.Trigger
	bus      *events.Bus
	labels   resolver.Labels
	interval time.Duration
	logger   zerolog.Logger

	pending atomic.Pointer[schedule.Update]
	notify  chan struct{}
	latest  atomic.Pointer[Snapshot]

	// owned by the Run goroutine
	current *schedule.Update
}

// NewRunner creates a runner. trigger and bus may be nil.
func NewRunner(clock Clock, trigger *bell.Trigger, bus *events.Bus, labels resolver.Labels, logger zerolog.Logger) *Runner {
	return &Runner{
		clock:    clock,
		trigger:  trigger,
		bus:      bus,
		labels:   labels,
		interval: defaultInterval,
		logger:   logger.With().Str("component", "kiosk").Logger(),
		notify:   make(chan struct{}, 1),
	}
}

// SetSchedule hands a new timetable to the loop. It never blocks; the loop
// swaps it in and re-evaluates immediately.
func (r *Runner) SetSchedule(u schedule.Update) {
	r.pending.Store(&u)
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Latest returns the most recent snapshot.
func (r *Runner) Latest() (Snapshot, bool) {
	s := r.latest.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Run ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("kiosk loop started")
	r.adoptPending()
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("kiosk loop stopped")
			return nil
		case <-r.notify:
			if r.adoptPending() {
				r.tick(ctx)
			}
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) adoptPending() bool {
	u := r.pending.Swap(nil)
	if u == nil {
		return false
	}
	r.current = u
	r.logger.Info().Str("source", string(u.Source)).Str("origin", u.Origin).Msg("timetable applied")
	if r.bus != nil {
		r.bus.Publish(events.EventScheduleUpdate, u.ReceivedAt, *u)
	}
	return true
}

func (r *Runner) tick(ctx context.Context) Snapshot {
	started := time.Now()

	now := r.clock.Now()

	var (
		sch    *schedule.Schedule
		source schedule.SourceKind
	)
	if r.current != nil {
		sch, source = r.current.Schedule, r.current.Source
	}
	state := resolver.Resolve(now, sch, r.labels)

	var fired []bell.Event
	if r.trigger != nil {
		fired = r.trigger.OnTick(ctx, state.Active, now)
	}

	snap := Snapshot{
		State:              state,
		Now:                now,
		ClockTrusted:       r.clock.IsTrusted(),
		ScheduleSource:     source,
		OutsideSchoolHours: state.OutsideSchoolHours(),
	}
	r.latest.Store(&snap)

	if r.bus != nil {
		r.bus.Publish(events.EventTick, now, snap)
		for _, e := range fired {
			r.bus.Publish(events.EventBell, now, e)
		}
	}

	telemetry.TicksTotal.Inc()
	telemetry.ShiftActive.Set(telemetry.BoolGauge(!snap.OutsideSchoolHours))
	telemetry.TickDuration.Observe(time.Since(started).Seconds())
	return snap
}
