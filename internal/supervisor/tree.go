// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package supervisor builds the suture tree that keeps the gateway's
// long-running services alive.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree tuning.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the wait once the threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout caps the wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree groups the gateway services into three supervised layers:
//   - pipeline: logger write loops (sink connections)
//   - bus: subscription managers, history responders, throughput reporters
//   - schema: one-shot schema sync runners
//
// A crashing sink connection restarts without tearing down bus consumers,
// and vice versa.
type Tree struct {
	root     *suture.Supervisor
	pipeline *suture.Supervisor
	bus      *suture.Supervisor
	schema   *suture.Supervisor
	config   TreeConfig
}

// NewTree creates the supervisor hierarchy. Supervisor events are logged
// through the given slog logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("automation-gateway", rootSpec)
	pipeline := suture.New("pipeline-layer", childSpec)
	bus := suture.New("bus-layer", childSpec)
	schema := suture.New("schema-layer", childSpec)

	root.Add(pipeline)
	root.Add(bus)
	root.Add(schema)

	return &Tree{
		root:     root,
		pipeline: pipeline,
		bus:      bus,
		schema:   schema,
		config:   config,
	}
}

// AddPipelineService supervises a logger write loop.
func (t *Tree) AddPipelineService(svc suture.Service) suture.ServiceToken {
	return t.pipeline.Add(svc)
}

// AddBusService supervises a bus-facing service.
func (t *Tree) AddBusService(svc suture.Service) suture.ServiceToken {
	return t.bus.Add(svc)
}

// AddSchemaService supervises a schema sync runner.
func (t *Tree) AddSchemaService(svc suture.Service) suture.ServiceToken {
	return t.schema.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine; the returned channel
// yields the terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
