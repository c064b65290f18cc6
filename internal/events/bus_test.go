/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"testing"
	"time"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	both := b.Subscribe(EventTick, EventBell)
	tickOnly := b.Subscribe(EventTick)

	now := time.Now()
	b.Publish(EventTick, now, "tick")
	b.Publish(EventBell, now, "bell")

	if ev := <-both; ev.Type != EventTick || ev.Data != "tick" {
		t.Fatalf("first event = %+v", ev)
	}
	if ev := <-both; ev.Type != EventBell {
		t.Fatalf("second event = %+v", ev)
	}
	if ev := <-tickOnly; ev.Type != EventTick {
		t.Fatalf("tick subscriber got %+v", ev)
	}
	select {
	case ev := <-tickOnly:
		t.Fatalf("tick subscriber got unexpected %+v", ev)
	default:
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventTick)
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(EventTick, time.Now(), i)
	}
	if len(sub) != subscriberBuffer {
		t.Fatalf("buffered = %d, want %d", len(sub), subscriberBuffer)
	}
}

func TestBusUnsubscribeClosesOnce(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventTick, EventClockSync)
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	b.Unsubscribe(sub)
	b.Publish(EventTick, time.Now(), nil)
}
