// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package metrics provides Prometheus instrumentation for the gateway
// pipeline: ingestion, queueing, batch writes, schema sync and bus traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	PointsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_points_received_total",
			Help: "Total data points decoded from the bus",
		},
		[]string{"logger"},
	)

	PointsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_points_dropped_total",
			Help: "Total data points dropped before commit",
		},
		[]string{"logger", "reason"}, // "overflow", "decode", "write_failed"
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_queue_depth",
			Help: "Current number of points buffered in the ingestion queue",
		},
		[]string{"logger"},
	)

	// Batch write metrics
	BatchesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_batches_written_total",
			Help: "Total batches committed to the sink",
		},
		[]string{"logger"},
	)

	BatchWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_batch_write_duration_seconds",
			Help:    "Duration of sink batch commits in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"logger"},
	)

	BatchWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_batch_write_errors_total",
			Help: "Total failed sink batch commits",
		},
		[]string{"logger"},
	)

	// Connection lifecycle metrics
	SinkReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_sink_reconnects_total",
			Help: "Total sink reconnect attempts",
		},
		[]string{"logger"},
	)

	SinkConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_sink_connected",
			Help: "1 while the sink connection is established, 0 otherwise",
		},
		[]string{"logger"},
	)

	// Schema sync metrics
	SchemaNodesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_schema_nodes_written_total",
			Help: "Total schema nodes upserted into the graph sink",
		},
		[]string{"system"},
	)

	SchemaSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_schema_sync_duration_seconds",
			Help:    "Duration of full schema synchronization runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"system"},
	)

	// History query metrics
	HistoryQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_history_queries_total",
			Help: "Total history queries answered over the bus",
		},
		[]string{"logger", "result"}, // "ok", "empty", "error"
	)
)

// RecordBatchWrite records one committed batch.
func RecordBatchWrite(logger string, elapsed time.Duration) {
	BatchesWritten.WithLabelValues(logger).Inc()
	BatchWriteDuration.WithLabelValues(logger).Observe(elapsed.Seconds())
}

// RecordDrop records dropped points with a reason label.
func RecordDrop(logger, reason string, n int) {
	PointsDropped.WithLabelValues(logger, reason).Add(float64(n))
}
