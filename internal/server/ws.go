/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/schoolbell/internal/events"
	"github.com/friendsincode/schoolbell/internal/telemetry"
)

const (
	wsPingInterval = 15 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// handleStateWS streams one frame per tick plus bell events. The first frame
// is the latest snapshot, if any.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "feed_unavailable")
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	sub := s.deps.Bus.Subscribe(events.EventTick, events.EventBell, events.EventScheduleUpdate, events.EventClockSync, events.EventSettings)
	defer s.deps.Bus.Unsubscribe(sub)

	// The feed is write-only; CloseRead handles control frames and
	// cancels ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())

	if snap, ok := s.deps.State.Latest(); ok {
		if err := s.writeFrame(ctx, conn, events.Event{Type: events.EventTick, At: snap.Now, Data: snap}); err != nil {
			s.logger.Debug().Err(err).Msg("initial state frame failed")
			return
		}
	}

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "client disconnected")
			return

		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}

		case ev, ok := <-sub:
			if !ok {
				conn.Close(ws.StatusGoingAway, "feed closed")
				return
			}
			if err := s.writeFrame(ctx, conn, ev); err != nil {
				s.logger.Debug().Err(err).Msg("websocket send failed")
				return
			}
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *ws.Conn, ev events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
