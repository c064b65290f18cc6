/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/config"
	"github.com/friendsincode/schoolbell/internal/events"
	"github.com/friendsincode/schoolbell/internal/kiosk"
	"github.com/friendsincode/schoolbell/internal/logbuffer"
	"github.com/friendsincode/schoolbell/internal/resolver"
	"github.com/friendsincode/schoolbell/internal/schedule"
	"github.com/friendsincode/schoolbell/internal/settings"
	"github.com/friendsincode/schoolbell/internal/timesync"
)

type fakeState struct {
	snap kiosk.Snapshot
	ok   bool
}

func (f fakeState) Latest() (kiosk.Snapshot, bool) { return f.snap, f.ok }

type fakeSchedule struct {
	u  schedule.Update
	ok bool
}

func (f fakeSchedule) Current() (schedule.Update, bool) { return f.u, f.ok }

type fakeClock struct{ off timesync.Offset }

func (f fakeClock) Offset() timesync.Offset { return f.off }

type fakeBell struct {
	mu         sync.Mutex
	connectErr error
	ringErr    error
	connected  bool
	rings      []time.Duration
}

func (b *fakeBell) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connectErr != nil {
		return b.connectErr
	}
	b.connected = true
	return nil
}

func (b *fakeBell) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *fakeBell) Ring(ctx context.Context, d time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ringErr != nil {
		return b.ringErr
	}
	b.rings = append(b.rings, d)
	return nil
}

func (b *fakeBell) Status() bell.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bell.Status{Connected: b.connected}
}

func testSnapshot() kiosk.Snapshot {
	now := time.Date(2026, 10, 19, 7, 10, 0, 0, time.UTC)
	return kiosk.Snapshot{
		State: resolver.State{
			ShiftLabel:       "Prva smena",
			Active:           &resolver.ActivePeriod{DisplayName: "1. čas"},
			RemainingSeconds: 2100,
			Remaining:        "35:00",
		},
		Now:            now,
		ClockTrusted:   true,
		ScheduleSource: schedule.SourceLive,
	}
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.State == nil {
		deps.State = fakeState{}
	}
	if deps.Schedule == nil {
		deps.Schedule = fakeSchedule{}
	}
	if deps.Settings == nil {
		store, err := settings.NewStore(context.Background(), nil, settings.Defaults(), zerolog.Nop())
		if err != nil {
			t.Fatalf("settings store: %v", err)
		}
		deps.Settings = store
	}
	if deps.Bell == nil {
		deps.Bell = &fakeBell{}
	}
	srv, err := New(&config.Config{HTTPBind: "127.0.0.1", HTTPPort: 0}, deps, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestNewRequiresCoreDeps(t *testing.T) {
	if _, err := New(&config.Config{}, Deps{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error without dependencies")
	}
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestServer(t, Deps{}), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode(t, rr)["status"]; got != "ok" {
		t.Fatalf("status field = %v", got)
	}
}

func TestStateEndpoint(t *testing.T) {
	t.Run("no snapshot yet", func(t *testing.T) {
		rr := do(t, newTestServer(t, Deps{}), http.MethodGet, "/api/v1/state", "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("snapshot with clock", func(t *testing.T) {
		synced := time.Date(2026, 10, 19, 7, 5, 0, 0, time.UTC)
		srv := newTestServer(t, Deps{
			State: fakeState{snap: testSnapshot(), ok: true},
			Clock: fakeClock{off: timesync.Offset{Offset: 1500 * time.Millisecond, Trusted: true, LastSyncedAt: synced}},
		})
		rr := do(t, srv, http.MethodGet, "/api/v1/state", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
		}
		body := decode(t, rr)
		if body["shift_label"] != "Prva smena" || body["remaining"] != "35:00" || body["schedule_source"] != "live" {
			t.Fatalf("body = %v", body)
		}
		clock, ok := body["clock"].(map[string]any)
		if !ok || clock["offset_ms"] != float64(1500) || clock["trusted"] != true {
			t.Fatalf("clock = %v", body["clock"])
		}
		if _, ok := body["bell"].(map[string]any); !ok {
			t.Fatalf("bell status missing: %v", body)
		}
	})
}

func TestScheduleEndpoint(t *testing.T) {
	rr := do(t, newTestServer(t, Deps{}), http.MethodGet, "/api/v1/schedule", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status without schedule = %d", rr.Code)
	}

	u := schedule.Update{
		Schedule: &schedule.Schedule{
			FirstShift:  []schedule.Period{{Name: "1. čas", Start: "07:00", End: "07:45"}, {Name: "bad", Start: "7", End: "08:00"}},
			SecondShift: []schedule.Period{},
		},
		Source: schedule.SourceLocal,
		Origin: "embedded",
	}
	rr = do(t, newTestServer(t, Deps{Schedule: fakeSchedule{u: u, ok: true}}), http.MethodGet, "/api/v1/schedule", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode(t, rr)
	if body["source"] != "local" || body["origin"] != "embedded" {
		t.Fatalf("body = %v", body)
	}
	if malformed, _ := body["malformed"].([]any); len(malformed) != 1 {
		t.Fatalf("malformed = %v", body["malformed"])
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rr := do(t, srv, http.MethodGet, "/api/v1/settings", "")
	if rr.Code != http.StatusOK || decode(t, rr)["baudRate"] != float64(9600) {
		t.Fatalf("get = %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/api/v1/settings", `{"bellDuration":3000,"bellEnabled":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put = %d %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["bellDuration"] != float64(3000) || body["bellEnabled"] != false || body["baudRate"] != float64(9600) {
		t.Fatalf("updated = %v", body)
	}

	tests := []struct {
		name string
		body string
	}{
		{name: "bad baud", body: `{"baudRate":4800}`},
		{name: "too short", body: `{"bellDuration":500}`},
		{name: "not json", body: `bell`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPut, "/api/v1/settings", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
		})
	}

	rr = do(t, srv, http.MethodDelete, "/api/v1/settings", "")
	if rr.Code != http.StatusOK || decode(t, rr)["bellDuration"] != float64(5000) {
		t.Fatalf("reset = %d %s", rr.Code, rr.Body.String())
	}
}

func TestBellRing(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		ringErr  error
		wantCode int
		wantErr  string
		wantRing time.Duration
	}{
		{name: "configured duration", wantCode: http.StatusAccepted, wantRing: 0},
		{name: "explicit duration", body: `{"duration_ms":2000}`, wantCode: http.StatusAccepted, wantRing: 2 * time.Second},
		{name: "duration out of range", body: `{"duration_ms":60000}`, wantCode: http.StatusBadRequest, wantErr: "invalid_duration"},
		{name: "not connected", ringErr: bell.ErrNotConnected, wantCode: http.StatusConflict, wantErr: "not_connected"},
		{name: "already ringing", ringErr: bell.ErrAlreadyRinging, wantCode: http.StatusConflict, wantErr: "already_ringing"},
		{name: "write failure", ringErr: errors.New("io error"), wantCode: http.StatusBadGateway, wantErr: "ring_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBell{ringErr: tt.ringErr}
			rr := do(t, newTestServer(t, Deps{Bell: b}), http.MethodPost, "/api/v1/bell/ring", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantErr != "" {
				if got := decode(t, rr)["error"]; got != tt.wantErr {
					t.Fatalf("error = %v, want %s", got, tt.wantErr)
				}
				return
			}
			if len(b.rings) != 1 || b.rings[0] != tt.wantRing {
				t.Fatalf("rings = %v, want [%v]", b.rings, tt.wantRing)
			}
		})
	}
}

func TestBellConnectAndDisconnect(t *testing.T) {
	b := &fakeBell{}
	srv := newTestServer(t, Deps{Bell: b})

	rr := do(t, srv, http.MethodPost, "/api/v1/bell/connect", "")
	if rr.Code != http.StatusOK || decode(t, rr)["connected"] != true {
		t.Fatalf("connect = %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPost, "/api/v1/bell/disconnect", "")
	if rr.Code != http.StatusOK || decode(t, rr)["connected"] != false {
		t.Fatalf("disconnect = %d %s", rr.Code, rr.Body.String())
	}

	b.connectErr = errors.New("connect: permission denied")
	rr = do(t, srv, http.MethodPost, "/api/v1/bell/connect", "")
	body := decode(t, rr)
	if rr.Code != http.StatusBadGateway || body["error"] != "connect_failed" || body["detail"] != "connect: permission denied" {
		t.Fatalf("connect failure = %d %v", rr.Code, body)
	}

	b.connectErr = bell.ErrNoDevice
	if rr := do(t, srv, http.MethodPost, "/api/v1/bell/connect", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("no device = %d", rr.Code)
	}
}

func TestBellHistory(t *testing.T) {
	h := bell.NewHistory(10)
	for i := 0; i < 3; i++ {
		h.Add(bell.Event{ID: string(rune('a' + i)), Kind: bell.KindStart})
	}
	srv := newTestServer(t, Deps{History: h})

	rr := do(t, srv, http.MethodGet, "/api/v1/bell/history?limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	list, _ := decode(t, rr)["events"].([]any)
	if len(list) != 2 || list[0].(map[string]any)["id"] != "c" {
		t.Fatalf("events = %v", list)
	}

	if rr := do(t, srv, http.MethodGet, "/api/v1/bell/history?limit=x", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", rr.Code)
	}
}

func TestStateWebSocketFeed(t *testing.T) {
	bus := events.NewBus()
	srv := newTestServer(t, Deps{State: fakeState{snap: testSnapshot(), ok: true}, Bus: bus})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/state/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	var first events.Event
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read initial frame: %v", err)
	}
	if first.Type != events.EventTick {
		t.Fatalf("initial frame type = %s", first.Type)
	}
	if data, _ := first.Data.(map[string]any); data["shift_label"] != "Prva smena" {
		t.Fatalf("initial frame data = %v", first.Data)
	}

	next := testSnapshot()
	next.Remaining = "34:59"
	bus.Publish(events.EventTick, next.Now.Add(time.Second), next)

	var second events.Event
	if err := wsjson.Read(ctx, conn, &second); err != nil {
		t.Fatalf("read tick frame: %v", err)
	}
	if data, _ := second.Data.(map[string]any); data["remaining"] != "34:59" {
		t.Fatalf("tick frame data = %v", second.Data)
	}
}

func TestStateWebSocketWithoutBus(t *testing.T) {
	rr := do(t, newTestServer(t, Deps{}), http.MethodGet, "/api/v1/state/ws", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	if rr := do(t, newTestServer(t, Deps{}), http.MethodGet, "/api/v1/logs", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("status without buffer = %d", rr.Code)
	}

	logs := logbuffer.New(10)
	logs.Add(logbuffer.Entry{Level: "info", Component: "bell_link", Message: "bell ringing"})
	logs.Add(logbuffer.Entry{Level: "error", Component: "bell_link", Message: "bell link error"})
	srv := newTestServer(t, Deps{Logs: logs})

	rr := do(t, srv, http.MethodGet, "/api/v1/logs?level=warn", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	entries, _ := decode(t, rr)["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["message"] != "bell link error" {
		t.Fatalf("entries = %v", entries)
	}

	if rr := do(t, srv, http.MethodGet, "/api/v1/logs?since=yesterday", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad since = %d", rr.Code)
	}
}
