// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package logger

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/thejerf/suture/v4"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/discovery"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
)

// DefaultSchemaRequestTimeout bounds the browse on the upstream driver.
// Browsing a large address space server-side is slow, so this is generous.
const DefaultSchemaRequestTimeout = 10 * time.Minute

// GraphSchemaSink is implemented by sinks that can mirror a node hierarchy.
type GraphSchemaSink interface {
	SyncSchema(ctx context.Context, system string, tree model.SchemaTree) (int, error)
}

// SchemaSyncConfig describes one system whose address space is mirrored
// into the graph sink.
type SchemaSyncConfig struct {
	SystemType string
	System     string
	RootNodes  []string

	// RequestTimeout bounds the schema fetch. Default 10 minutes.
	RequestTimeout time.Duration

	// ArtifactDir receives the raw <system>.json schema dump. Default ".".
	ArtifactDir string
}

type schemaRequest struct {
	NodeIDs []string `json:"NodeIds"`
}

// SchemaSyncRunner executes the schema-sync protocol for one system:
// wait for the upstream driver to report UP, fetch the full node tree,
// persist the raw artifact, then mirror the tree into the graph sink.
type SchemaSyncRunner struct {
	cfg      SchemaSyncConfig
	registry *discovery.Client
	bus      discovery.Requester
	sink     GraphSchemaSink
}

// NewSchemaSyncRunner wires a one-shot runner for the given system.
func NewSchemaSyncRunner(cfg SchemaSyncConfig, registry *discovery.Client, bus discovery.Requester, sink GraphSchemaSink) *SchemaSyncRunner {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultSchemaRequestTimeout
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "."
	}
	return &SchemaSyncRunner{cfg: cfg, registry: registry, bus: bus, sink: sink}
}

// Serve runs the protocol once and asks the supervisor not to restart it:
// the mirror is a startup-time snapshot, not a continuously converging
// replica. It implements suture.Service.
func (r *SchemaSyncRunner) Serve(ctx context.Context) error {
	if err := r.run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Err(err).Str("system", r.cfg.System).Msg("Schema sync failed")
	}
	return suture.ErrDoNotRestart
}

func (r *SchemaSyncRunner) run(ctx context.Context) error {
	if _, err := r.registry.WaitUntilUp(ctx, r.cfg.SystemType, r.cfg.System); err != nil {
		return err
	}

	start := time.Now()
	raw, fetchErr := r.fetch(ctx)

	// The raw artifact is written even when the fetch fails; a truncated
	// or empty dump is still evidence for operators.
	if err := r.persistArtifact(raw); err != nil {
		logging.Err(err).Str("system", r.cfg.System).Msg("Schema artifact write failed")
	}
	if fetchErr != nil {
		return fmt.Errorf("fetch schema for %s: %w", r.cfg.System, fetchErr)
	}

	var tree model.SchemaTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode schema for %s: %w", r.cfg.System, err)
	}

	// The node counter is owned by the sink, which increments it per
	// committed root and level (covering partial writes on abort); the
	// runner only records the overall duration.
	written, err := r.sink.SyncSchema(ctx, r.cfg.System, tree)
	elapsed := time.Since(start)
	metrics.SchemaSyncDuration.WithLabelValues(r.cfg.System).Observe(elapsed.Seconds())
	if err != nil {
		return fmt.Errorf("mirror schema for %s: %w", r.cfg.System, err)
	}

	logging.Info().
		Str("system", r.cfg.System).
		Int("nodes", written).
		Dur("elapsed", elapsed).
		Msg("Schema sync complete")
	return nil
}

// fetch requests the recursive node tree from the upstream driver.
func (r *SchemaSyncRunner) fetch(ctx context.Context) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	subject := r.cfg.SystemType + "/" + r.cfg.System + "/Schema"
	var raw json.RawMessage
	err := r.bus.Request(reqCtx, subject, schemaRequest{NodeIDs: r.cfg.RootNodes}, &raw)
	return raw, err
}

// persistArtifact pretty-prints the raw schema reply into <system>.json.
func (r *SchemaSyncRunner) persistArtifact(raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		// Not valid JSON; dump it verbatim.
		pretty.Reset()
		pretty.Write(raw)
	}

	path := filepath.Join(r.cfg.ArtifactDir, r.cfg.System+".json")
	return os.WriteFile(path, pretty.Bytes(), 0o644)
}
