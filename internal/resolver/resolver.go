/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package resolver turns the current time and a two-shift timetable into the
// state shown on the kiosk: active shift, active period, next period and the
// countdown to the end of the active period.
package resolver

import (
	"fmt"
	"time"

	"github.com/friendsincode/schoolbell/internal/schedule"
)

// Names given to breaks synthesized from gaps between periods.
const (
	MajorBreak = "MAJOR BREAK"
	MinorBreak = "MINOR BREAK"
)

// majorBreakAfter is the gap length a break must exceed to count as major.
const majorBreakAfter = 5 * time.Minute

// Labels are the display names of the two shifts.
type Labels struct {
	FirstShift  string
	SecondShift string
}

// DefaultLabels returns the Serbian shift names used on the kiosk.
func DefaultLabels() Labels {
	return Labels{FirstShift: "Prva smena", SecondShift: "Druga smena"}
}

// ActivePeriod is the period (or synthesized break) containing "now".
type ActivePeriod struct {
	DisplayName   string    `json:"display_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	IsBreak       bool      `json:"is_break"`
	IsLastInShift bool      `json:"is_last_in_shift"`
	ClassOrdinal  *int      `json:"class_ordinal,omitempty"`
	TotalClasses  *int      `json:"total_classes,omitempty"`
}

// State is the resolver output for one tick.
type State struct {
	ShiftLabel       string           `json:"shift_label"`
	Active           *ActivePeriod    `json:"active,omitempty"`
	Next             *schedule.Period `json:"next,omitempty"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Remaining        string           `json:"remaining"`
}

// OutsideSchoolHours reports whether no shift is active.
func (s State) OutsideSchoolHours() bool {
	return s.ShiftLabel == "" && s.Active == nil
}

// BreakName names a gap break by its length; the threshold is strict.
func BreakName(gap time.Duration) string {
	if gap > majorBreakAfter {
		return MajorBreak
	}
	return MinorBreak
}

// Resolve evaluates s at now. Period times are anchored to now's calendar day
// and location. A nil schedule yields the empty state.
func Resolve(now time.Time, s *schedule.Schedule, labels Labels) State {
	if s == nil {
		return State{}
	}

	var (
		label   string
		periods []schedule.Period
	)
	switch {
	case withinShift(now, s.FirstShift):
		label, periods = labels.FirstShift, s.FirstShift
	case withinShift(now, s.SecondShift):
		label, periods = labels.SecondShift, s.SecondShift
	default:
		return State{}
	}

	active, next := scan(now, periods)
	if active == nil {
		active, next = upcoming(now, periods)
		if active == nil {
			// Inside the outer window but nothing ahead: treat as outside school hours.
			return State{}
		}
	}

	st := State{ShiftLabel: label, Active: active, Next: next}
	st.RemainingSeconds, st.Remaining = remaining(now, active.EndTime)
	return st
}

// withinShift tests the inclusive window [first.start, last.end].
func withinShift(now time.Time, periods []schedule.Period) bool {
	if len(periods) == 0 {
		return false
	}
	start, okStart := periods[0].StartOn(now)
	end, okEnd := periods[len(periods)-1].EndOn(now)
	if !okStart || !okEnd {
		return false
	}
	return !now.Before(start) && !now.After(end)
}

// scan finds the period containing now (inclusive on both ends) or the gap
// strictly between two consecutive periods.
func scan(now time.Time, periods []schedule.Period) (*ActivePeriod, *schedule.Period) {
	total := countClasses(periods)
	ordinal := 0

	for i, p := range periods {
		isBreak := p.IsBreak()
		if !isBreak {
			ordinal++
		}
		start, end, ok := p.Bounds(now)
		if !ok {
			continue
		}

		if !now.Before(start) && !now.After(end) {
			active := &ActivePeriod{
				DisplayName:   p.Name,
				StartTime:     start,
				EndTime:       end,
				IsBreak:       isBreak,
				IsLastInShift: i == len(periods)-1,
				TotalClasses:  intPtr(total),
			}
			if !isBreak {
				active.ClassOrdinal = intPtr(ordinal)
			}
			var next *schedule.Period
			if i < len(periods)-1 {
				next = &periods[i+1]
			}
			return active, next
		}

		if i < len(periods)-1 {
			nextStart, ok := periods[i+1].StartOn(now)
			if ok && now.After(end) && now.Before(nextStart) {
				return gapBreak(end, nextStart), &periods[i+1]
			}
		}
	}
	return nil, nil
}

// upcoming synthesizes a break up to the next period that has not started yet.
func upcoming(now time.Time, periods []schedule.Period) (*ActivePeriod, *schedule.Period) {
	for i, p := range periods {
		start, ok := p.StartOn(now)
		if !ok || !now.Before(start) {
			continue
		}
		from := now
		if i > 0 {
			if prevEnd, ok := periods[i-1].EndOn(now); ok {
				from = prevEnd
			}
		}
		return gapBreak(from, start), &periods[i]
	}
	return nil, nil
}

func gapBreak(from, to time.Time) *ActivePeriod {
	return &ActivePeriod{
		DisplayName: BreakName(to.Sub(from)),
		StartTime:   from,
		EndTime:     to,
		IsBreak:     true,
	}
}

func countClasses(periods []schedule.Period) int {
	n := 0
	for _, p := range periods {
		if !p.IsBreak() {
			n++
		}
	}
	return n
}

// remaining returns whole seconds left until end, never negative, and the
// MM:SS rendering of that value.
func remaining(now, end time.Time) (int, string) {
	secs := int(end.Sub(now) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return secs, FormatRemaining(secs)
}

// FormatRemaining renders seconds as MM:SS. Minutes are not wrapped at 60.
func FormatRemaining(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func intPtr(v int) *int { return &v }
