/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import "sync"

const defaultHistoryCapacity = 256

// History is a thread-safe ring buffer of recent bell events.
type History struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	head     int
	count    int
}

// NewHistory creates a history holding up to capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &History{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Add records an event, evicting the oldest when full.
func (h *History) Add(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events[h.head] = e
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
}

// All returns events oldest first.
func (h *History) All() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, h.count)
	start := 0
	if h.count == h.capacity {
		start = h.head
	}
	for i := 0; i < h.count; i++ {
		out[i] = h.events[(start+i)%h.capacity]
	}
	return out
}

// Recent returns up to limit events, newest first. A limit of 0 returns all.
func (h *History) Recent(limit int) []Event {
	all := h.All()
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Event, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
