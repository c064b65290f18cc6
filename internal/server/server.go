/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/bell"
	"github.com/friendsincode/schoolbell/internal/config"
	"github.com/friendsincode/schoolbell/internal/events"
	"github.com/friendsincode/schoolbell/internal/kiosk"
	"github.com/friendsincode/schoolbell/internal/logbuffer"
	"github.com/friendsincode/schoolbell/internal/schedule"
	"github.com/friendsincode/schoolbell/internal/settings"
	"github.com/friendsincode/schoolbell/internal/telemetry"
	"github.com/friendsincode/schoolbell/internal/timesync"
)

// StateReader returns the most recent resolved snapshot.
type StateReader interface {
	Latest() (kiosk.Snapshot, bool)
}

// ScheduleReader returns the timetable currently in effect.
type ScheduleReader interface {
	Current() (schedule.Update, bool)
}

// SettingsStore reads and changes the persisted bell settings.
type SettingsStore interface {
	Current() settings.Settings
	Update(ctx context.Context, p settings.Patch) (settings.Settings, error)
	Reset(ctx context.Context) (settings.Settings, error)
}

// BellController is the user-facing side of the bell link.
type BellController interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Ring(ctx context.Context, d time.Duration) error
	Status() bell.Status
}

// ClockReader exposes the last clock sync result.
type ClockReader interface {
	Offset() timesync.Offset
}

// Deps are the components the HTTP surface reads from and drives.
// Clock, History, Bus and Logs may be nil.
type Deps struct {
	State    StateReader
	Schedule ScheduleReader
	Settings SettingsStore
	Bell     BellController
	Clock    ClockReader
	History  *bell.History
	Bus      *events.Bus
	Logs     *logbuffer.Buffer
}

// Server bundles the display feed and control API.
type Server struct {
	cfg        *config.Config
	deps       Deps
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error
}

// New constructs the server and registers routes.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.State == nil || deps.Schedule == nil || deps.Settings == nil || deps.Bell == nil {
		return nil, errors.New("server: state, schedule, settings and bell are required")
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		return telemetry.HTTPHandler(next, "schoolbell-api")
	})
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for the websocket feed
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "server").Logger(),
		router: router,
	}
	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the websocket feed
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// securityHeadersMiddleware applies baseline browser hardening headers.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(timeoutCtx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return <-errCh
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/state/ws", s.handleStateWS)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/logs", s.handleLogs)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleSettingsGet)
			r.Put("/", s.handleSettingsUpdate)
			r.Delete("/", s.handleSettingsReset)
		})

		r.Route("/bell", func(r chi.Router) {
			r.Get("/status", s.handleBellStatus)
			r.Get("/history", s.handleBellHistory)
			r.Post("/connect", s.handleBellConnect)
			r.Post("/disconnect", s.handleBellDisconnect)
			r.Post("/ring", s.handleBellRing)
		})
	})
}
