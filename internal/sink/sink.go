// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package sink defines the write/query contract storage engines must satisfy
// to serve as a gateway logging target. Two adapters implement it: the DuckDB
// time-series variant and the Neo4j graph variant.
package sink

import (
	"context"
	"errors"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
)

var (
	// ErrNotConnected indicates an operation on a sink whose connection
	// is not established. Writes are never attempted in this state.
	ErrNotConnected = errors.New("sink not connected")

	// ErrUnsupported indicates an operation the sink variant does not
	// provide (range queries on the graph sink).
	ErrUnsupported = errors.New("operation not supported by sink")

	// ErrNoSeries indicates a range query that matched no stored series.
	ErrNoSeries = errors.New("no matching series")
)

// Sink is the storage adapter used by a logger instance.
//
// WriteBatch must commit the whole batch atomically: either every row is
// visible afterwards or none is. QueryRange takes an inclusive time range in
// epoch milliseconds and translates it to the engine's native unit.
type Sink interface {
	// Connect establishes the engine connection and prepares the session
	// (schema creation, prepared statements).
	Connect(ctx context.Context) error

	// Close releases the engine connection. Safe to call when not connected.
	Close(ctx context.Context) error

	// WriteBatch commits one batch of rows in a single atomic statement.
	WriteBatch(ctx context.Context, rows []model.WriteRow) error

	// QueryRange returns the stored value rows for (system, nodeID) within
	// [fromMs, toMs]. Returns ErrNoSeries when nothing matches and
	// ErrUnsupported when the variant has no query capability.
	QueryRange(ctx context.Context, system, nodeID string, fromMs, toMs int64) ([]model.RowValue, error)
}
