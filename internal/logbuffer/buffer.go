/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent log lines in memory so the kiosk
// can show them without shell access.
package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCapacity = 2000

// Entry is one captured log line.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a fixed-size ring of entries. It implements io.Writer for
// zerolog's JSON output.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
	now     func() time.Time
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer{entries: make([]Entry, capacity), now: time.Now}
}

// Add appends e, evicting the oldest entry when full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Entries returns all entries, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, b.count)
	start := 0
	if b.count == len(b.entries) {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(start+i)%len(b.entries)]
	}
	return out
}

// Query filters the buffer.
type Query struct {
	// MinLevel keeps entries at or above this zerolog level name.
	MinLevel  string
	Component string
	// Search is matched case-insensitively against message, component and error.
	Search string
	Since  time.Time
	Limit  int
}

// Query returns matching entries, newest first.
func (b *Buffer) Query(q Query) []Entry {
	minLevel := zerolog.TraceLevel
	if q.MinLevel != "" {
		if lvl, err := zerolog.ParseLevel(q.MinLevel); err == nil {
			minLevel = lvl
		}
	}
	search := strings.ToLower(q.Search)

	all := b.Entries()
	out := make([]Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if lvl, err := zerolog.ParseLevel(e.Level); err == nil && lvl < minLevel {
			continue
		}
		if q.Component != "" && e.Component != q.Component {
			continue
		}
		if !q.Since.IsZero() && e.Time.Before(q.Since) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Message), search) &&
			!strings.Contains(strings.ToLower(e.Component), search) &&
			!strings.Contains(strings.ToLower(e.Error), search) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Stats summarizes the buffer.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
}

// Stats returns per-level counts.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{Capacity: len(b.entries), Count: b.count, LevelCount: make(map[string]int)}
	for i := 0; i < b.count; i++ {
		s.LevelCount[b.entries[i].Level]++
	}
	return s
}

// Write implements io.Writer. Lines that are not JSON objects are dropped.
func (b *Buffer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil
	}

	e := Entry{Time: b.now()}
	if v, ok := raw[zerolog.LevelFieldName].(string); ok {
		e.Level = v
	}
	if v, ok := raw[zerolog.MessageFieldName].(string); ok {
		e.Message = v
	}
	if v, ok := raw["component"].(string); ok {
		e.Component = v
	}
	if v, ok := raw[zerolog.ErrorFieldName].(string); ok {
		e.Error = v
	}
	switch ts := raw[zerolog.TimestampFieldName].(type) {
	case float64:
		e.Time = time.Unix(int64(ts), 0)
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Time = t
		}
	}

	for _, k := range []string{zerolog.LevelFieldName, zerolog.MessageFieldName, "component", zerolog.ErrorFieldName, zerolog.TimestampFieldName} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		e.Fields = raw
	}

	b.Add(e)
	return len(p), nil
}
