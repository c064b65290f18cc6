/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/settings"
	"github.com/friendsincode/schoolbell/internal/telemetry"
)

// Status is a snapshot of the link for display and the API.
type Status struct {
	Connected bool   `json:"connected"`
	Device    string `json:"device,omitempty"`
	Ringing   bool   `json:"ringing"`
	LastError string `json:"last_error,omitempty"`
}

// Link owns the relay port. Connect, Disconnect and AutoConnect are
// serialized; Ring is guarded so rings never overlap.
type Link struct {
	opener   Opener
	settings settings.Provider
	logger   zerolog.Logger

	connMu sync.Mutex // serializes connect/disconnect

	mu        sync.Mutex
	port      Port
	device    string
	lastErr   string
	stopTimer *time.Timer

	ringing atomic.Bool
}

// NewLink creates a disconnected link.
func NewLink(opener Opener, provider settings.Provider, logger zerolog.Logger) *Link {
	return &Link{
		opener:   opener,
		settings: provider,
		logger:   logger.With().Str("component", "bell_link").Logger(),
	}
}

// IsConnected reports whether a port is open.
func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// IsRinging reports whether a ring is waiting for its stop frame.
func (l *Link) IsRinging() bool {
	return l.ringing.Load()
}

// LastError returns the message of the last user-visible failure.
func (l *Link) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// BellEnabled reports the current enable flag.
func (l *Link) BellEnabled() bool {
	return l.settings.Current().BellEnabled
}

// Status returns a snapshot of the link.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Connected: l.port != nil,
		Device:    l.device,
		Ringing:   l.ringing.Load(),
		LastError: l.lastErr,
	}
}

// Connect requests a device and opens it. It is a no-op when already
// connected. A cancelled request returns nil and records nothing.
func (l *Link) Connect(ctx context.Context) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.IsConnected() {
		l.logger.Debug().Msg("already connected")
		return nil
	}
	l.setError("")

	device, err := l.opener.Request(ctx)
	if errors.Is(err, ErrPickerCancelled) {
		l.logger.Debug().Msg("device request cancelled")
		return nil
	}
	if err != nil {
		return l.fail("connect", err)
	}

	baud := l.settings.Current().BaudRate
	port, err := l.opener.Open(ctx, device, baud)
	if err != nil {
		return l.fail("connect", err)
	}
	l.attach(port, device)
	l.logger.Info().Str("device", device).Int("baud_rate", baud).Msg("bell link connected")
	return nil
}

// AutoConnect opens the most recently authorized device without asking.
// Failures are only logged.
func (l *Link) AutoConnect(ctx context.Context) {
	if !l.settings.Current().AutoConnectEnabled {
		return
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.IsConnected() {
		return
	}
	devices, err := l.opener.Authorized(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("auto-connect failed to list devices")
		return
	}
	if len(devices) == 0 {
		l.logger.Debug().Msg("auto-connect found no authorized device")
		return
	}

	baud := l.settings.Current().BaudRate
	port, err := l.opener.Open(ctx, devices[0], baud)
	if err != nil {
		l.logger.Warn().Err(err).Str("device", devices[0]).Msg("auto-connect failed")
		return
	}
	l.attach(port, devices[0])
	l.logger.Info().Str("device", devices[0]).Int("baud_rate", baud).Msg("bell link auto-connected")
}

// Disconnect closes the port. State is cleared only if the close succeeds.
// A pending stop is sent before closing.
func (l *Link) Disconnect() error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	l.mu.Lock()
	port := l.port
	timer := l.stopTimer
	l.mu.Unlock()

	if port == nil {
		return nil
	}

	if timer != nil && timer.Stop() {
		if _, err := port.Write(StopFrame); err != nil {
			l.logger.Warn().Err(err).Msg("failed to send stop frame before disconnect")
		}
		l.mu.Lock()
		l.stopTimer = nil
		l.mu.Unlock()
		l.ringing.Store(false)
	}

	if err := port.Close(); err != nil {
		return l.fail("disconnect", err)
	}

	l.mu.Lock()
	l.port = nil
	l.device = ""
	l.lastErr = ""
	l.mu.Unlock()
	telemetry.BellConnected.Set(0)
	l.logger.Info().Msg("bell link disconnected")
	return nil
}

// Ring sends the start frame and schedules the stop frame after d. A zero d
// uses the configured bell duration. With the bell disabled Ring does nothing
// and returns nil.
func (l *Link) Ring(ctx context.Context, d time.Duration) error {
	s := l.settings.Current()
	if !s.BellEnabled {
		telemetry.BellRingsTotal.WithLabelValues("disabled").Inc()
		l.logger.Debug().Msg("bell disabled in settings")
		return nil
	}

	l.mu.Lock()
	port := l.port
	l.mu.Unlock()
	if port == nil {
		telemetry.BellRingsTotal.WithLabelValues("not_connected").Inc()
		return ErrNotConnected
	}

	if !l.ringing.CompareAndSwap(false, true) {
		telemetry.BellRingsTotal.WithLabelValues("busy").Inc()
		l.logger.Debug().Msg("bell already ringing, skipping")
		return ErrAlreadyRinging
	}
	if d <= 0 {
		d = s.BellDuration()
	}

	if _, err := port.Write(StartFrame); err != nil {
		l.ringing.Store(false)
		telemetry.BellRingsTotal.WithLabelValues("error").Inc()
		l.logger.Error().Err(err).Msg("failed to send start frame")
		return fmt.Errorf("write start frame: %w", err)
	}

	l.mu.Lock()
	l.stopTimer = time.AfterFunc(d, func() { l.stop(port) })
	l.mu.Unlock()

	telemetry.BellRingsTotal.WithLabelValues("ok").Inc()
	l.logger.Info().Dur("duration", d).Msg("bell ringing")
	return nil
}

func (l *Link) stop(port Port) {
	l.mu.Lock()
	l.stopTimer = nil
	l.mu.Unlock()

	if _, err := port.Write(StopFrame); err != nil {
		l.logger.Error().Err(err).Msg("failed to send stop frame")
	} else {
		l.logger.Info().Msg("bell stopped")
	}
	l.ringing.Store(false)
}

func (l *Link) attach(port Port, device string) {
	l.mu.Lock()
	l.port = port
	l.device = device
	l.lastErr = ""
	l.mu.Unlock()
	telemetry.BellConnected.Set(1)
}

func (l *Link) setError(msg string) {
	l.mu.Lock()
	l.lastErr = msg
	l.mu.Unlock()
}

func (l *Link) fail(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	l.setError(err.Error())
	l.logger.Error().Err(err).Msg("bell link error")
	return err
}
