/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package settings holds the operator-adjustable bell settings and their
// persisted store.
package settings

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidSettings is returned for values outside the accepted ranges.
var ErrInvalidSettings = errors.New("settings: invalid value")

// ValidBaudRates are the serial speeds the relay boards accept.
var ValidBaudRates = []int{9600, 19200, 38400, 57600, 115200}

// Bell duration bounds in milliseconds.
const (
	MinBellDurationMs = 1000
	MaxBellDurationMs = 30000
)

// Settings configure the bell link and trigger.
type Settings struct {
	BaudRate           int  `json:"baudRate"`
	BellDurationMs     int  `json:"bellDuration"`
	BellEnabled        bool `json:"bellEnabled"`
	AutoConnectEnabled bool `json:"autoConnectEnabled"`
}

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		BaudRate:           9600,
		BellDurationMs:     5000,
		BellEnabled:        true,
		AutoConnectEnabled: true,
	}
}

// Validate checks baud rate and duration ranges.
func (s Settings) Validate() error {
	if !slices.Contains(ValidBaudRates, s.BaudRate) {
		return fmt.Errorf("%w: baud rate %d not in %v", ErrInvalidSettings, s.BaudRate, ValidBaudRates)
	}
	if s.BellDurationMs < MinBellDurationMs || s.BellDurationMs > MaxBellDurationMs {
		return fmt.Errorf("%w: bell duration %dms outside [%d, %d]", ErrInvalidSettings,
			s.BellDurationMs, MinBellDurationMs, MaxBellDurationMs)
	}
	return nil
}

// BellDuration returns the ring length.
func (s Settings) BellDuration() time.Duration {
	return time.Duration(s.BellDurationMs) * time.Millisecond
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	BaudRate           *int  `json:"baudRate,omitempty"`
	BellDurationMs     *int  `json:"bellDuration,omitempty"`
	BellEnabled        *bool `json:"bellEnabled,omitempty"`
	AutoConnectEnabled *bool `json:"autoConnectEnabled,omitempty"`
}

// Apply merges p over s.
func (s Settings) Apply(p Patch) Settings {
	if p.BaudRate != nil {
		s.BaudRate = *p.BaudRate
	}
	if p.BellDurationMs != nil {
		s.BellDurationMs = *p.BellDurationMs
	}
	if p.BellEnabled != nil {
		s.BellEnabled = *p.BellEnabled
	}
	if p.AutoConnectEnabled != nil {
		s.AutoConnectEnabled = *p.AutoConnectEnabled
	}
	return s
}

// Provider supplies the current settings to the bell components.
type Provider interface {
	Current() Settings
}

// Static is a Provider with fixed values.
type Static Settings

// Current implements Provider.
func (s Static) Current() Settings { return Settings(s) }
