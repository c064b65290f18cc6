/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/kiosk"
	"github.com/friendsincode/schoolbell/internal/logbuffer"
	"github.com/friendsincode/schoolbell/internal/schedule"
	"github.com/friendsincode/schoolbell/internal/settings"
	"github.com/friendsincode/schoolbell/internal/version"
)

const (
	defaultHistoryLimit = 50
	maxBodyBytes        = 64 << 10
)

type clockInfo struct {
	OffsetMs     int64      `json:"offset_ms"`
	Trusted      bool       `json:"trusted"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

type stateResponse struct {
	kiosk.Snapshot
	Clock *clockInfo  `json:"clock,omitempty"`
	Bell  bell.Status `json:"bell"`
}

type scheduleResponse struct {
	schedule.Update
	Malformed []string `json:"malformed,omitempty"`
}

type ringRequest struct {
	DurationMs int `json:"duration_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.deps.State.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "state_unavailable")
		return
	}
	resp := stateResponse{Snapshot: snap, Bell: s.deps.Bell.Status()}
	if s.deps.Clock != nil {
		off := s.deps.Clock.Offset()
		info := &clockInfo{OffsetMs: off.Offset.Milliseconds(), Trusted: off.Trusted}
		if !off.LastSyncedAt.IsZero() {
			at := off.LastSyncedAt
			info.LastSyncedAt = &at
		}
		resp.Clock = info
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	u, ok := s.deps.Schedule.Current()
	if !ok || u.Schedule == nil {
		writeError(w, http.StatusNotFound, "no_schedule")
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Update: u, Malformed: u.Schedule.MalformedPeriods()})
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Settings.Current())
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	updated, err := s.deps.Settings.Update(r.Context(), patch)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_settings", "detail": err.Error()})
			return
		}
		s.logger.Error().Err(err).Msg("settings update failed")
		writeError(w, http.StatusInternalServerError, "settings_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleSettingsReset(w http.ResponseWriter, r *http.Request) {
	defaults, err := s.deps.Settings.Reset(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("settings reset failed")
		writeError(w, http.StatusInternalServerError, "settings_reset_failed")
		return
	}
	writeJSON(w, http.StatusOK, defaults)
}

func (s *Server) handleBellStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Bell.Status())
}

func (s *Server) handleBellHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}

	out := []bell.Event{}
	if s.deps.History != nil {
		out = s.deps.History.Recent(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Logs == nil {
		writeError(w, http.StatusNotFound, "logs_disabled")
		return
	}
	q := logbuffer.Query{
		MinLevel:  r.URL.Query().Get("level"),
		Component: r.URL.Query().Get("component"),
		Search:    r.URL.Query().Get("search"),
		Limit:     defaultHistoryLimit,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		q.Limit = parsed
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		q.Since = since
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.deps.Logs.Query(q),
		"stats":   s.deps.Logs.Stats(),
	})
}

func (s *Server) handleBellConnect(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Bell.Connect(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.deps.Bell.Status())
	case errors.Is(err, bell.ErrNoDevice):
		writeError(w, http.StatusNotFound, "no_device")
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "connect_failed", "detail": err.Error()})
	}
}

func (s *Server) handleBellDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bell.Disconnect(); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "disconnect_failed", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Bell.Status())
}

// handleBellRing rings once. An empty body uses the configured duration.
func (s *Server) handleBellRing(w http.ResponseWriter, r *http.Request) {
	var req ringRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.DurationMs != 0 && (req.DurationMs < settings.MinBellDurationMs || req.DurationMs > settings.MaxBellDurationMs) {
		writeError(w, http.StatusBadRequest, "invalid_duration")
		return
	}

	err := s.deps.Bell.Ring(r.Context(), time.Duration(req.DurationMs)*time.Millisecond)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, s.deps.Bell.Status())
	case errors.Is(err, bell.ErrNotConnected):
		writeError(w, http.StatusConflict, "not_connected")
	case errors.Is(err, bell.ErrAlreadyRinging):
		writeError(w, http.StatusConflict, "already_ringing")
	default:
		s.logger.Warn().Err(err).Msg("manual ring failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "ring_failed", "detail": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
