/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"context"
	"fmt"
	"slices"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialOpener opens USB/RS-232 relay boards.
type SerialOpener struct {
	// Device is used for user-initiated connects. Empty picks the first port found.
	Device string
	// Allowed lists devices auto-connect may open, most recent first.
	Allowed []string

	listPorts func() ([]string, error)
}

// NewSerialOpener creates an opener for device with an auto-connect allow list.
func NewSerialOpener(device string, allowed []string) *SerialOpener {
	return &SerialOpener{Device: device, Allowed: allowed, listPorts: serial.GetPortsList}
}

// Request implements Opener.
func (o *SerialOpener) Request(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrPickerCancelled
	}
	if o.Device != "" {
		return o.Device, nil
	}
	ports, err := o.listPorts()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", ErrNoDevice
	}
	return ports[0], nil
}

// Authorized implements Opener. Only allowed devices that are present are returned.
func (o *SerialOpener) Authorized(ctx context.Context) ([]string, error) {
	allowed := o.Allowed
	if len(allowed) == 0 && o.Device != "" {
		allowed = []string{o.Device}
	}
	if len(allowed) == 0 {
		return nil, nil
	}
	present, err := o.listPorts()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	out := make([]string, 0, len(allowed))
	for _, d := range allowed {
		if slices.Contains(present, d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Open implements Opener.
func (o *SerialOpener) Open(ctx context.Context, device string, baud int) (Port, error) {
	p, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", device, baud, err)
	}
	return p, nil
}

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string `json:"name"`
	USB          bool   `json:"usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// ListPorts enumerates serial ports with USB details where available.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:         d.Name,
			USB:          d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return out, nil
}
