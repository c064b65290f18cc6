/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schoolbell"

var (
	// Tick loop
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Resolver ticks evaluated.",
	})
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Time spent resolving and checking the bell per tick.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})
	ShiftActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "shift_active",
		Help:      "1 while a shift window contains the current time.",
	})

	// Clock sync
	ClockSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clock_sync_total",
		Help:      "Trusted time sync attempts by result.",
	}, []string{"result"})
	ClockOffsetSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "clock_offset_seconds",
		Help:      "Offset between trusted time and the local clock.",
	})
	ClockTrusted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "clock_trusted",
		Help:      "1 when the last sync succeeded.",
	})

	// Schedule store
	ScheduleUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_updates_total",
		Help:      "Accepted timetable updates by source.",
	}, []string{"source"})
	ScheduleRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_rejected_total",
		Help:      "Timetable values rejected by source and reason.",
	}, []string{"source", "reason"})

	// Bell
	BellEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bell_events_total",
		Help:      "Boundary crossings detected by kind and outcome.",
	}, []string{"kind", "outcome"})
	BellRingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bell_rings_total",
		Help:      "Ring attempts by result.",
	}, []string{"result"})
	BellConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bell_link_connected",
		Help:      "1 while the bell link holds an open port.",
	})

	// Database
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "database_query_duration_seconds",
		Help:      "Settings database operation latency.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"operation", "table"})
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "database_errors_total",
		Help:      "Settings database errors by operation.",
	}, []string{"operation", "error_type"})
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "database_connections_active",
		Help:      "Open connections in the settings database pool.",
	})

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "endpoint", "status"})
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight HTTP requests.",
	})
	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_websocket_connections",
		Help:      "Open display feed websockets.",
	})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BoolGauge converts a flag into a gauge value.
func BoolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
