// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package logger implements the telemetry logging core: the connection
// lifecycle, the batch writer loop, the subscription manager, the history
// responder, the metrics reporter and the schema-sync runner.
//
// One Logger instance owns one sink connection and one ingestion queue.
// Bus handlers feed points in via Offer; a single writer worker drains the
// queue on a fixed cadence and commits one atomic batch per round trip.
package logger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/queue"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink"
)

// Connection lifecycle states.
const (
	StateDisconnected int32 = iota
	StateConnecting
	StateConnected
)

// Config holds one logger instance's settings.
type Config struct {
	// Name identifies the logger in subjects, logs and metrics.
	Name string

	// QueueSize bounds the ingestion queue. Default 10000.
	QueueSize int

	// BlockSize caps the rows committed per batch. Default 1000.
	BlockSize int

	// PollTimeout bounds the writer loop's wait for the first queued
	// point. Default 10ms.
	PollTimeout time.Duration

	// ReconnectDelay is the fixed wait between sink connect attempts.
	// Default 5s.
	ReconnectDelay time.Duration

	// WriteTimeout bounds a single batch commit. The commit runs on a
	// detached context so shutdown never cancels an in-flight write.
	// Default 30s.
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = queue.DefaultCapacity
	}
	if c.BlockSize <= 0 {
		c.BlockSize = 1000
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Millisecond
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
}

// Logger pumps data points from its ingestion queue into a sink.
type Logger struct {
	cfg   Config
	sink  sink.Sink
	queue *queue.Queue

	state   atomic.Int32
	breaker *gobreaker.CircuitBreaker[any]

	input  atomic.Int64
	output atomic.Int64

	connectAttempts atomic.Int64
}

// New creates a logger instance for the given sink.
func New(cfg Config, s sink.Sink) *Logger {
	cfg.applyDefaults()
	l := &Logger{
		cfg:   cfg,
		sink:  s,
		queue: queue.New(cfg.Name, cfg.QueueSize),
	}
	l.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: cfg.Name + "-sink",
	})
	return l
}

// Offer feeds one decoded point into the ingestion queue (non-blocking).
// Every call counts as input throughput whether or not the queue accepts it.
func (l *Logger) Offer(dp *model.DataPoint) bool {
	l.input.Add(1)
	metrics.PointsReceived.WithLabelValues(l.cfg.Name).Inc()
	return l.queue.Offer(dp)
}

// Name returns the logger's configured name.
func (l *Logger) Name() string { return l.cfg.Name }

// Sink returns the logger's storage adapter.
func (l *Logger) Sink() sink.Sink { return l.sink }

// InputCount returns the total points offered since start.
func (l *Logger) InputCount() int64 { return l.input.Load() }

// OutputCount returns the total points committed since start.
func (l *Logger) OutputCount() int64 { return l.output.Load() }

// IsConnected reports whether the sink connection is established.
func (l *Logger) IsConnected() bool { return l.state.Load() == StateConnected }

// ConnectAttempts returns the total sink connect attempts.
func (l *Logger) ConnectAttempts() int64 { return l.connectAttempts.Load() }

// Serve runs the connection lifecycle and the writer loop until ctx is
// canceled. It implements suture.Service.
//
// The lifecycle is Disconnected -> Connecting -> Connected; any write
// failure forces Disconnected and a reconnect after the fixed delay.
func (l *Logger) Serve(ctx context.Context) error {
	defer func() {
		l.state.Store(StateDisconnected)
		metrics.SinkConnected.WithLabelValues(l.cfg.Name).Set(0)

		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.sink.Close(closeCtx); err != nil {
			logging.Err(err).Str("logger", l.cfg.Name).Msg("Sink close failed")
		}
	}()

	for {
		if err := l.connect(ctx); err != nil {
			return err // ctx canceled
		}

		err := l.writeLoop(ctx)
		l.state.Store(StateDisconnected)
		metrics.SinkConnected.WithLabelValues(l.cfg.Name).Set(0)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logging.Err(err).Str("logger", l.cfg.Name).Msg("Writer loop failed, reconnecting")
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if cerr := l.sink.Close(closeCtx); cerr != nil {
			logging.Err(cerr).Str("logger", l.cfg.Name).Msg("Sink close failed")
		}
		cancel()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

// connect attempts the sink connection with the fixed retry delay until it
// succeeds or ctx is canceled.
func (l *Logger) connect(ctx context.Context) error {
	l.state.Store(StateConnecting)

	for {
		l.connectAttempts.Add(1)
		err := l.sink.Connect(ctx)
		if err == nil {
			l.state.Store(StateConnected)
			metrics.SinkConnected.WithLabelValues(l.cfg.Name).Set(1)
			logging.Info().Str("logger", l.cfg.Name).Msg("Logger connected")
			return nil
		}

		metrics.SinkReconnects.WithLabelValues(l.cfg.Name).Inc()
		logging.Warn().
			Err(err).
			Str("logger", l.cfg.Name).
			Dur("retry_in", l.cfg.ReconnectDelay).
			Msg("Sink connect failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

// writeLoop drains the queue into batches while Connected. Returns nil on
// shutdown, an error on a failed batch commit (the batch is dropped and the
// caller reconnects).
func (l *Logger) writeLoop(ctx context.Context) error {
	for {
		first := l.queue.Poll(ctx, l.cfg.PollTimeout)
		if first == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		batch := make([]*model.DataPoint, 0, l.cfg.BlockSize)
		batch = append(batch, first)
		batch = append(batch, l.queue.Drain(l.cfg.BlockSize-1)...)

		if err := l.commitBatch(batch); err != nil {
			metrics.BatchWriteErrors.WithLabelValues(l.cfg.Name).Inc()
			metrics.RecordDrop(l.cfg.Name, "write_failed", len(batch))
			logging.Err(err).
				Str("logger", l.cfg.Name).
				Int("dropped", len(batch)).
				Msg("Batch write failed, dropping batch")
			return err
		}

		l.output.Add(int64(len(batch)))
		if ctx.Err() != nil {
			return nil
		}
	}
}

// commitBatch flattens the batch into write rows and commits it through the
// circuit breaker. The commit uses a detached context so an in-flight write
// runs to completion even during shutdown.
func (l *Logger) commitBatch(batch []*model.DataPoint) error {
	if l.state.Load() != StateConnected {
		return sink.ErrNotConnected
	}

	rows := make([]model.WriteRow, 0, len(batch))
	for _, dp := range batch {
		rows = append(rows, model.NewWriteRow(dp))
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), l.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	_, err := l.breaker.Execute(func() (any, error) {
		return nil, l.sink.WriteBatch(writeCtx, rows)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("sink breaker open: %w", err)
		}
		return err
	}

	metrics.RecordBatchWrite(l.cfg.Name, time.Since(start))
	return nil
}
