// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package queue implements the bounded ingestion buffer between bus message
// handlers (many producers) and the batch writer loop (single consumer).
//
// Backpressure is non-blocking: once the buffer is full, new points are
// dropped and a single warning is logged per contiguous overflow episode.
// Producers are never blocked or slowed by a saturated sink.
package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
)

// DefaultCapacity is the queue size used when configuration does not set one.
const DefaultCapacity = 10000

// Queue is a bounded multi-producer/single-consumer buffer of pending writes.
type Queue struct {
	name string
	ch   chan *model.DataPoint

	// full tracks the overflow episode for edge-triggered logging.
	full atomic.Bool

	// timer is reused across Poll calls. Poll is single-consumer, so the
	// timer is never touched concurrently.
	timer *time.Timer

	accepted atomic.Int64
	dropped  atomic.Int64
}

// New creates a queue with the given capacity. Non-positive capacity falls
// back to DefaultCapacity. The name labels log lines and metrics.
func New(name string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		name: name,
		ch:   make(chan *model.DataPoint, capacity),
	}
}

// Offer attempts a non-blocking insert. It returns false and drops the point
// when the queue is full. The first rejection of an overflow episode logs a
// warning; the first successful insert after an episode logs the recovery.
func (q *Queue) Offer(dp *model.DataPoint) bool {
	select {
	case q.ch <- dp:
		q.accepted.Add(1)
		metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
		if q.full.Swap(false) {
			logging.Info().
				Str("logger", q.name).
				Msg("Ingestion queue accepting points again")
		}
		return true
	default:
		q.dropped.Add(1)
		metrics.RecordDrop(q.name, "overflow", 1)
		if !q.full.Swap(true) {
			logging.Warn().
				Str("logger", q.name).
				Int("capacity", cap(q.ch)).
				Msg("Ingestion queue full, dropping points")
		}
		return false
	}
}

// Poll waits up to timeout for the next point. It returns nil when the
// timeout elapses or the context is canceled. This bounded wait is the
// writer loop's only suspension point on the hot path.
func (q *Queue) Poll(ctx context.Context, timeout time.Duration) *model.DataPoint {
	// The timer is reset rather than reallocated: the writer loop calls
	// Poll every few milliseconds for the process lifetime.
	if q.timer == nil {
		q.timer = time.NewTimer(timeout)
	} else {
		q.timer.Reset(timeout)
	}
	defer q.timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-q.timer.C:
		return nil
	case dp := <-q.ch:
		metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
		return dp
	}
}

// Drain removes up to max points without blocking, preserving FIFO order.
func (q *Queue) Drain(max int) []*model.DataPoint {
	if max <= 0 {
		return nil
	}
	out := make([]*model.DataPoint, 0, max)
	for len(out) < max {
		select {
		case dp := <-q.ch:
			out = append(out, dp)
		default:
			metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
			return out
		}
	}
	metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
	return out
}

// Len returns the current number of buffered points.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the configured capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Accepted returns the total number of points accepted since creation.
func (q *Queue) Accepted() int64 {
	return q.accepted.Load()
}

// Dropped returns the total number of points rejected since creation.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
