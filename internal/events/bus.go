/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package events is the in-process fan-out between the tick loop and the
// display feed.
package events

import (
	"sync"
	"time"
)

// EventType enumerates event categories.
type EventType string

const (
	EventTick           EventType = "state.tick"
	EventScheduleUpdate EventType = "schedule.update"
	EventBell           EventType = "bell.event"
	EventClockSync      EventType = "clock.sync"
	EventSettings       EventType = "settings.update"
)

// Event is one published message. Data is owned by the publisher and must not
// be mutated by subscribers.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Subscriber receives events. Slow subscribers miss events rather than block
// the publisher.
type Subscriber chan Event

const subscriberBuffer = 16

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers one subscriber for all of the given types.
func (b *Bus) Subscribe(types ...EventType) Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	b.mu.Lock()
	for _, t := range types {
		b.subs[t] = append(b.subs[t], ch)
	}
	b.mu.Unlock()
	return ch
}

// Publish sends an event to subscribers without blocking.
func (b *Bus) Publish(eventType EventType, at time.Time, data any) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()

	ev := Event{Type: eventType, At: at, Data: data}
	for _, sub := range subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Unsubscribe removes the subscriber from every type and closes it.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	found := false
	for t, subs := range b.subs {
		for i, candidate := range subs {
			if candidate == sub {
				b.subs[t] = append(subs[:i:i], subs[i+1:]...)
				found = true
				break
			}
		}
	}
	if found {
		close(sub)
	}
}
