/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRingEvictsOldest(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Add(Entry{Message: msg, Level: "info"})
	}

	got := b.Entries()
	if len(got) != 3 || got[0].Message != "b" || got[2].Message != "d" {
		t.Fatalf("entries = %+v", got)
	}
	if s := b.Stats(); s.Count != 3 || s.Capacity != 3 || s.LevelCount["info"] != 3 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestWriterCapturesZerologLines(t *testing.T) {
	b := New(10)
	logger := zerolog.New(b).With().Timestamp().Logger()

	logger.Info().Str("component", "bell_link").Str("device", "/dev/ttyUSB0").Msg("bell link connected")
	logger.Error().Str("component", "timesync").Err(errTest("timeout")).Msg("time sync failed")

	entries := b.Entries()
	if len(entries) != 2 {
		t.Fatalf("captured %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Level != "info" || first.Component != "bell_link" || first.Message != "bell link connected" {
		t.Fatalf("first = %+v", first)
	}
	if first.Fields["device"] != "/dev/ttyUSB0" {
		t.Fatalf("fields = %v", first.Fields)
	}
	if entries[1].Error != "timeout" {
		t.Fatalf("error field = %q", entries[1].Error)
	}
}

func TestWriteIgnoresNonJSON(t *testing.T) {
	b := New(4)
	n, err := b.Write([]byte("plain text\n"))
	if err != nil || n != len("plain text\n") {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if len(b.Entries()) != 0 {
		t.Fatal("non-JSON line must not be captured")
	}
}

func TestQuery(t *testing.T) {
	b := New(10)
	base := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	b.Add(Entry{Time: base, Level: "debug", Component: "kiosk", Message: "tick"})
	b.Add(Entry{Time: base.Add(time.Minute), Level: "info", Component: "bell_link", Message: "bell ringing"})
	b.Add(Entry{Time: base.Add(2 * time.Minute), Level: "warn", Component: "timesync", Message: "time sync failed", Error: "Connection refused"})
	b.Add(Entry{Time: base.Add(3 * time.Minute), Level: "error", Component: "bell_link", Message: "bell link error"})

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{name: "all newest first", q: Query{}, want: []string{"bell link error", "time sync failed", "bell ringing", "tick"}},
		{name: "min level", q: Query{MinLevel: "warn"}, want: []string{"bell link error", "time sync failed"}},
		{name: "component", q: Query{Component: "bell_link"}, want: []string{"bell link error", "bell ringing"}},
		{name: "search error text", q: Query{Search: "refused"}, want: []string{"time sync failed"}},
		{name: "since", q: Query{Since: base.Add(90 * time.Second)}, want: []string{"bell link error", "time sync failed"}},
		{name: "limit", q: Query{Limit: 1}, want: []string{"bell link error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Query(tt.q)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, e := range got {
				if e.Message != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, e.Message, tt.want[i])
				}
			}
		})
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
