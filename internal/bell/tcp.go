/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPOpener reaches a relay behind a serial-to-TCP bridge. The bridge owns the
// line speed, so baud is ignored.
type TCPOpener struct {
	Addr        string
	DialTimeout time.Duration
}

// Request implements Opener.
func (o *TCPOpener) Request(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrPickerCancelled
	}
	if o.Addr == "" {
		return "", ErrNoDevice
	}
	return o.Addr, nil
}

// Authorized implements Opener.
func (o *TCPOpener) Authorized(ctx context.Context) ([]string, error) {
	if o.Addr == "" {
		return nil, nil
	}
	return []string{o.Addr}, nil
}

// Open implements Opener.
func (o *TCPOpener) Open(ctx context.Context, addr string, baud int) (Port, error) {
	timeout := o.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial relay bridge %s: %w", addr, err)
	}
	return conn, nil
}
