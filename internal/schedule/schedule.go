/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule holds the two-shift timetable model and the store that keeps
// the latest valid timetable from a live source with a local fallback.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchedule is returned when a timetable is missing either shift.
var ErrInvalidSchedule = errors.New("schedule: missing firstShift or secondShift")

// breakKeywords mark a period as a break rather than a counted class.
var breakKeywords = []string{"odmor", "break"}

// TimeOfDay is a wall-clock hours:minutes value without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: bad minute", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// On anchors t to the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Period is one named span of a shift. Start and End keep their wire form so
// a malformed value only disables this period instead of the whole timetable.
type Period struct {
	Name  string `json:"class" yaml:"class"`
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// IsBreak reports whether the period name carries a break keyword.
func (p Period) IsBreak() bool {
	name := strings.ToLower(p.Name)
	for _, kw := range breakKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// StartOn returns the period start anchored to day.
func (p Period) StartOn(day time.Time) (time.Time, bool) {
	t, err := ParseTimeOfDay(p.Start)
	if err != nil {
		return time.Time{}, false
	}
	return t.On(day), true
}

// EndOn returns the period end anchored to day.
func (p Period) EndOn(day time.Time) (time.Time, bool) {
	t, err := ParseTimeOfDay(p.End)
	if err != nil {
		return time.Time{}, false
	}
	return t.On(day), true
}

// Bounds returns both ends anchored to day; ok is false if either is malformed.
func (p Period) Bounds(day time.Time) (start, end time.Time, ok bool) {
	start, okStart := p.StartOn(day)
	end, okEnd := p.EndOn(day)
	return start, end, okStart && okEnd
}

// Schedule is the full daily timetable. A nil shift slice means the field was
// absent on the wire; an empty one is valid and simply never active.
type Schedule struct {
	FirstShift  []Period `json:"firstShift" yaml:"firstShift"`
	SecondShift []Period `json:"secondShift" yaml:"secondShift"`
}

// Validate checks the structural shape only.
func (s *Schedule) Validate() error {
	if s == nil || s.FirstShift == nil || s.SecondShift == nil {
		return ErrInvalidSchedule
	}
	return nil
}

// Clone returns a deep copy so callers can hold a snapshot safely.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	out := &Schedule{}
	if s.FirstShift != nil {
		out.FirstShift = append(make([]Period, 0, len(s.FirstShift)), s.FirstShift...)
	}
	if s.SecondShift != nil {
		out.SecondShift = append(make([]Period, 0, len(s.SecondShift)), s.SecondShift...)
	}
	return out
}

// MalformedPeriods lists "shift[index]" for every period with an unparseable time.
func (s *Schedule) MalformedPeriods() []string {
	if s == nil {
		return nil
	}
	var out []string
	check := func(label string, periods []Period) {
		for i, p := range periods {
			if _, err := ParseTimeOfDay(p.Start); err != nil {
				out = append(out, fmt.Sprintf("%s[%d]", label, i))
				continue
			}
			if _, err := ParseTimeOfDay(p.End); err != nil {
				out = append(out, fmt.Sprintf("%s[%d]", label, i))
			}
		}
	}
	check("firstShift", s.FirstShift)
	check("secondShift", s.SecondShift)
	return out
}

// Decode parses a JSON timetable and validates its shape.
func Decode(raw []byte) (*Schedule, error) {
	var s Schedule
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeYAML parses a YAML timetable and validates its shape.
func DecodeYAML(raw []byte) (*Schedule, error) {
	var s Schedule
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode schedule yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeFile picks the decoder from the file extension.
func DecodeFile(name string, raw []byte) (*Schedule, error) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return DecodeYAML(raw)
	}
	return Decode(raw)
}
