/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package bell drives the relay that rings the school bell: the link that owns
// the physical port and the trigger that fires it at period boundaries.
package bell

import (
	"context"
	"errors"
)

// Command frames understood by the relay board. No acknowledgement is sent back.
var (
	StartFrame = []byte{0xA0, 0x01, 0x01, 0xA2}
	StopFrame  = []byte{0xA0, 0x01, 0x00, 0xA1}
)

var (
	// ErrNotConnected is returned when ringing without an open port.
	ErrNotConnected = errors.New("bell: not connected")
	// ErrAlreadyRinging is returned while a previous ring has not stopped.
	ErrAlreadyRinging = errors.New("bell: already ringing")
	// ErrPickerCancelled means the device request was abandoned by the caller.
	ErrPickerCancelled = errors.New("bell: device request cancelled")
	// ErrNoDevice means no candidate device was found.
	ErrNoDevice = errors.New("bell: no device available")
)

// Port is an open handle to the relay.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Opener finds and opens relay devices.
type Opener interface {
	// Request picks a device for a user-initiated connect.
	Request(ctx context.Context) (string, error)
	// Authorized lists devices that may be opened without asking, most recent first.
	Authorized(ctx context.Context) ([]string, error)
	// Open opens device at baud.
	Open(ctx context.Context, device string, baud int) (Port, error)
}

// NoDevice is the Opener used when no relay is configured. Connect reports
// ErrNoDevice and auto-connect finds nothing.
type NoDevice struct{}

func (NoDevice) Request(context.Context) (string, error) { return "", ErrNoDevice }

func (NoDevice) Authorized(context.Context) ([]string, error) { return nil, nil }

func (NoDevice) Open(context.Context, string, int) (Port, error) { return nil, ErrNoDevice }
