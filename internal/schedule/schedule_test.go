/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "07:45", want: TimeOfDay{Hour: 7, Minute: 45}},
		{in: "7:05", want: TimeOfDay{Hour: 7, Minute: 5}},
		{in: " 14:00 ", want: TimeOfDay{Hour: 14, Minute: 0}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimeOfDay(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayAnchorsToDay(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	day := time.Date(2026, 10, 19, 23, 59, 59, 0, loc)
	got := TimeOfDay{Hour: 7, Minute: 50}.On(day)
	want := time.Date(2026, 10, 19, 7, 50, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("On() = %v, want %v", got, want)
	}
}

func TestPeriodIsBreak(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"1. čas", false},
		{"Veliki ODMOR", true},
		{"Lunch Break", true},
		{"breakfast club", true},
		{"Matematika", false},
	}
	for _, tt := range tests {
		if got := (Period{Name: tt.name}).IsBreak(); got != tt.want {
			t.Errorf("IsBreak(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDecodeValidatesShape(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "both shifts", raw: `{"firstShift":[{"class":"1. čas","start":"07:00","end":"07:45"}],"secondShift":[]}`},
		{name: "missing second shift", raw: `{"firstShift":[]}`, wantErr: ErrInvalidSchedule},
		{name: "null first shift", raw: `{"firstShift":null,"secondShift":[]}`, wantErr: ErrInvalidSchedule},
		{name: "empty object", raw: `{}`, wantErr: ErrInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestDecodeYAML(t *testing.T) {
	raw := []byte(`
firstShift:
  - class: "1. čas"
    start: "07:00"
    end: "07:45"
secondShift: []
`)
	s, err := DecodeFile("raspored.yaml", raw)
	if err != nil {
		t.Fatalf("DecodeFile() error: %v", err)
	}
	if len(s.FirstShift) != 1 || s.FirstShift[0].Name != "1. čas" {
		t.Fatalf("unexpected first shift: %+v", s.FirstShift)
	}
	if s.SecondShift == nil || len(s.SecondShift) != 0 {
		t.Fatalf("expected empty but present second shift, got %#v", s.SecondShift)
	}
}

func TestMalformedPeriods(t *testing.T) {
	s := &Schedule{
		FirstShift:  []Period{{Name: "a", Start: "07:00", End: "07:45"}, {Name: "b", Start: "7-50", End: "08:35"}},
		SecondShift: []Period{{Name: "c", Start: "14:00", End: "oops"}},
	}
	got := s.MalformedPeriods()
	if len(got) != 2 || got[0] != "firstShift[1]" || got[1] != "secondShift[0]" {
		t.Fatalf("MalformedPeriods() = %v", got)
	}
}

func TestEmbeddedLoader(t *testing.T) {
	s, err := EmbeddedLoader{}.Load(context.Background())
	if err != nil {
		t.Fatalf("embedded schedule invalid: %v", err)
	}
	if len(s.FirstShift) == 0 || len(s.SecondShift) == 0 {
		t.Fatal("embedded schedule should define both shifts")
	}
	if bad := s.MalformedPeriods(); len(bad) > 0 {
		t.Fatalf("embedded schedule has malformed periods: %v", bad)
	}
}

func TestNewLoaderSelectsBackend(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		location string
		want     string
	}{
		{"", "embedded"},
		{"/etc/schoolbell/schedule.json", "file:/etc/schoolbell/schedule.json"},
		{"https://example.com/schedule.json", "https://example.com/schedule.json"},
	}
	for _, tt := range tests {
		l, err := NewLoader(ctx, tt.location, S3Options{}, nil)
		if err != nil {
			t.Fatalf("NewLoader(%q) error: %v", tt.location, err)
		}
		if l.Name() != tt.want {
			t.Errorf("NewLoader(%q).Name() = %q, want %q", tt.location, l.Name(), tt.want)
		}
	}
	if _, err := NewLoader(ctx, "s3://bucket-only", S3Options{}, nil); err == nil {
		t.Error("expected error for s3 location without key")
	}
}

func TestFileLoaderReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yml")
	content := "firstShift: []\nsecondShift:\n  - {class: \"1. čas\", start: \"14:00\", end: \"14:45\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := FileLoader{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(s.SecondShift) != 1 {
		t.Fatalf("expected one second shift period, got %d", len(s.SecondShift))
	}
}
