/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/config"
	"github.com/friendsincode/schoolbell/internal/resolver"
	"github.com/friendsincode/schoolbell/internal/schedule"
)

func TestParseInstant(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ref := time.Date(2026, 10, 19, 9, 30, 15, 123, loc)

	tests := []struct {
		name    string
		date    string
		clock   string
		want    time.Time
		wantErr bool
	}{
		{name: "defaults to ref", want: time.Date(2026, 10, 19, 9, 30, 15, 0, loc)},
		{name: "hours and minutes", clock: "07:47", want: time.Date(2026, 10, 19, 7, 47, 0, 0, loc)},
		{name: "with seconds", clock: "13:05:30", want: time.Date(2026, 10, 19, 13, 5, 30, 0, loc)},
		{name: "other day", date: "2026-09-01", clock: "08:00", want: time.Date(2026, 9, 1, 8, 0, 0, 0, loc)},
		{name: "bad clock", clock: "25:00", wantErr: true},
		{name: "bad date", date: "01.09.2026", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInstant(tt.date, tt.clock, ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInstant: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildOpener(t *testing.T) {
	tests := []struct {
		transport config.BellTransport
		check     func(bell.Opener) bool
	}{
		{config.BellTransportSerial, func(o bell.Opener) bool { _, ok := o.(*bell.SerialOpener); return ok }},
		{config.BellTransportTCP, func(o bell.Opener) bool { _, ok := o.(*bell.TCPOpener); return ok }},
		{config.BellTransportNone, func(o bell.Opener) bool { _, ok := o.(bell.NoDevice); return ok }},
	}
	for _, tt := range tests {
		t.Run(string(tt.transport), func(t *testing.T) {
			o, err := buildOpener(&config.Config{BellTransport: tt.transport, BellTCPAddr: "10.0.0.5:4001"})
			if err != nil {
				t.Fatalf("buildOpener: %v", err)
			}
			if !tt.check(o) {
				t.Fatalf("unexpected opener %T", o)
			}
		})
	}

	if _, err := buildOpener(&config.Config{BellTransport: "bluetooth"}); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestBuildLiveSource(t *testing.T) {
	src, closeFn, err := buildLiveSource(&config.Config{ScheduleSource: config.ScheduleSourceNone}, zerolog.Nop())
	if err != nil || src != nil {
		t.Fatalf("none source = %v, %v", src, err)
	}
	closeFn()

	src, closeFn, err = buildLiveSource(&config.Config{ScheduleSource: config.ScheduleSourceFile, ScheduleFile: "raspored.json"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("file source: %v", err)
	}
	defer closeFn()
	if src.Name() != "file:raspored.json" {
		t.Fatalf("Name() = %q", src.Name())
	}

	src, closeFn, err = buildLiveSource(&config.Config{
		ScheduleSource:   config.ScheduleSourceRedis,
		RedisAddr:        "127.0.0.1:0",
		ScheduleRedisKey: "schoolbell:schedule",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("redis source: %v", err)
	}
	defer closeFn()
	if src.Name() != "redis:schoolbell:schedule" {
		t.Fatalf("Name() = %q", src.Name())
	}

	src, closeFn, err = buildLiveSource(&config.Config{
		ScheduleSource:      config.ScheduleSourceNATS,
		NATSURL:             "nats://127.0.0.1:1",
		ScheduleNATSSubject: "schoolbell.schedule",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unreachable nats must not fail startup: %v", err)
	}
	defer closeFn()
	if src.Name() != "nats:schoolbell.schedule" {
		t.Fatalf("Name() = %q", src.Name())
	}
}

func TestPrintState(t *testing.T) {
	sch, err := schedule.EmbeddedLoader{}.Load(context.Background())
	if err != nil {
		t.Fatalf("load embedded schedule: %v", err)
	}
	labels := shiftLabels(&config.Config{FirstShiftLabel: "Prva smena", SecondShiftLabel: "Druga smena"})

	var out bytes.Buffer
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	printState(&out, now, resolver.Resolve(now, sch, labels))
	if !strings.Contains(out.String(), "Outside school hours") {
		t.Fatalf("early morning output = %q", out.String())
	}

	out.Reset()
	now = time.Date(2026, 10, 19, 8, 10, 0, 0, time.UTC)
	printState(&out, now, resolver.Resolve(now, sch, labels))
	for _, want := range []string{"Shift:     Prva smena", "1. čas (1/6)", "Remaining: 35:00"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
