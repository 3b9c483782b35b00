// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package neo4j implements the graph sink variant.
//
// Live values are upserted as node properties keyed by (System, NodeId) with
// one UNWIND-MERGE statement per batch. The sink has no range-query
// capability; history queries return ErrUnsupported. Schema synchronization
// (schema_sync.go) uses its own write path against the same driver.
package neo4j

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink"
)

// Config holds the Neo4j sink configuration.
type Config struct {
	URL      string
	Username string
	Password string
}

// cypherRunner executes one Cypher statement in a write transaction and
// returns the result rows. The indirection keeps the schema-sync protocol
// testable without a live engine.
type cypherRunner interface {
	run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Sink is the Neo4j graph adapter.
type Sink struct {
	cfg Config

	mu     sync.RWMutex
	driver neo4j.DriverWithContext
}

// New creates an unconnected Neo4j sink.
func New(cfg Config) *Sink {
	return &Sink{cfg: cfg}
}

// Connect establishes and verifies the driver connection.
func (s *Sink) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver != nil {
		return nil
	}

	driver, err := neo4j.NewDriverWithContext(s.cfg.URL, neo4j.BasicAuth(s.cfg.Username, s.cfg.Password, ""))
	if err != nil {
		return fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	s.driver = driver
	logging.Info().Str("url", s.cfg.URL).Msg("Neo4j sink connected")
	return nil
}

// Close releases the driver.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

// run executes one statement in a managed write transaction.
func (s *Sink) run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	s.mu.RLock()
	driver := s.driver
	s.mu.RUnlock()
	if driver == nil {
		return nil, sink.ErrNotConnected
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{})
	defer func() { _ = session.Close(ctx) }()

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			rows = append(rows, rec.AsMap())
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows, _ := out.([]map[string]any)
	return rows, nil
}

const writeBatchCypher = `
UNWIND $rows AS row
MERGE (n:Node {System: row.System, NodeId: row.NodeId})
SET n.Status = row.Status,
    n.Value = row.Value,
    n.DataType = row.DataType,
    n.ServerTime = row.ServerTime,
    n.SourceTime = row.SourceTime`

// WriteBatch upserts the batch with one merge statement in one transaction.
func (s *Sink) WriteBatch(ctx context.Context, rows []model.WriteRow) error {
	if len(rows) == 0 {
		return nil
	}

	params := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		params = append(params, map[string]any{
			"System":     row.System,
			"NodeId":     row.NodeID,
			"Status":     row.Status,
			"Value":      row.Value,
			"DataType":   row.DataType,
			"ServerTime": row.ServerTime.UnixMilli(),
			"SourceTime": row.SourceTime.UnixMilli(),
		})
	}

	if _, err := s.run(ctx, writeBatchCypher, map[string]any{"rows": params}); err != nil {
		return fmt.Errorf("write batch of %d rows: %w", len(rows), err)
	}
	return nil
}

// QueryRange is not supported by the graph variant.
func (s *Sink) QueryRange(ctx context.Context, system, nodeID string, fromMs, toMs int64) ([]model.RowValue, error) {
	return nil, sink.ErrUnsupported
}
