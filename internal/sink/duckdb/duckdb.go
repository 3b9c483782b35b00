// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package duckdb implements the time-series sink variant on DuckDB.
//
// Measurements are stored keyed by (system, node_id, source_time_ns) with an
// upsert per key, so re-delivered points are idempotent. Times are stored in
// nanoseconds; range queries translate the bus's epoch-millisecond bounds to
// the native unit.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS measurements (
	system         VARCHAR NOT NULL,
	node_id        VARCHAR NOT NULL,
	status         VARCHAR,
	value_num      DOUBLE,
	value_txt      VARCHAR,
	data_type      VARCHAR,
	server_time_ns BIGINT,
	source_time_ns BIGINT NOT NULL,
	PRIMARY KEY (system, node_id, source_time_ns)
)`

// Config holds the DuckDB sink configuration.
type Config struct {
	// Path is the database file. Empty means in-memory (tests, dry runs).
	Path string
}

// Sink is the DuckDB time-series adapter.
type Sink struct {
	cfg Config

	mu   sync.RWMutex
	conn *sql.DB
}

// New creates an unconnected DuckDB sink.
func New(cfg Config) *Sink {
	return &Sink{cfg: cfg}
}

// Connect opens the database and creates the measurement table.
func (s *Sink) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	conn, err := sql.Open("duckdb", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("ping duckdb: %w", err)
	}
	if _, err := conn.ExecContext(ctx, createTableSQL); err != nil {
		_ = conn.Close()
		return fmt.Errorf("create measurements table: %w", err)
	}

	s.conn = conn
	logging.Info().Str("path", s.cfg.Path).Msg("DuckDB sink connected")
	return nil
}

// Close releases the database connection.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// WriteBatch commits the batch as one multi-row upsert statement.
// The statement runs in an implicit transaction: all rows or none.
func (s *Sink) WriteBatch(ctx context.Context, rows []model.WriteRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return sink.ErrNotConnected
	}

	var b strings.Builder
	b.WriteString(`INSERT OR REPLACE INTO measurements
		(system, node_id, status, value_num, value_txt, data_type, server_time_ns, source_time_ns)
		VALUES `)

	args := make([]any, 0, len(rows)*8)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")

		var num sql.NullFloat64
		var txt sql.NullString
		switch v := row.Value.(type) {
		case float64:
			num = sql.NullFloat64{Float64: v, Valid: true}
		case string:
			txt = sql.NullString{String: v, Valid: true}
		default:
			txt = sql.NullString{String: fmt.Sprint(v), Valid: true}
		}

		args = append(args,
			row.System, row.NodeID, row.Status, num, txt, row.DataType,
			row.ServerTime.UnixNano(), row.SourceTime.UnixNano())
	}

	if _, err := conn.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("write batch of %d rows: %w", len(rows), err)
	}
	return nil
}

// QueryRange returns the value rows for (system, nodeID) within the
// inclusive [fromMs, toMs] range, ordered by source time. The millisecond
// bounds are translated to the stored nanosecond unit.
func (s *Sink) QueryRange(ctx context.Context, system, nodeID string, fromMs, toMs int64) ([]model.RowValue, error) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return nil, sink.ErrNotConnected
	}

	fromNs := fromMs * int64(time.Millisecond)
	toNs := toMs * int64(time.Millisecond)

	rows, err := conn.QueryContext(ctx, `
		SELECT value_num, value_txt, status, data_type, source_time_ns
		FROM measurements
		WHERE system = ? AND node_id = ? AND source_time_ns >= ? AND source_time_ns <= ?
		ORDER BY source_time_ns`,
		system, nodeID, fromNs, toNs)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.RowValue
	for rows.Next() {
		var (
			num      sql.NullFloat64
			txt      sql.NullString
			status   sql.NullString
			dataType sql.NullString
			sourceNs int64
		)
		if err := rows.Scan(&num, &txt, &status, &dataType, &sourceNs); err != nil {
			return nil, fmt.Errorf("scan range row: %w", err)
		}

		rv := model.RowValue{
			Time:     time.Unix(0, sourceNs),
			Status:   status.String,
			DataType: dataType.String,
		}
		if num.Valid {
			rv.Value = num.Float64
		} else {
			rv.Value = txt.String
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range rows: %w", err)
	}
	if len(out) == 0 {
		return nil, sink.ErrNoSeries
	}
	return out, nil
}
