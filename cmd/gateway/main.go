// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package main is the entry point for the automation gateway.
//
// The gateway subscribes to live telemetry topics on a NATS bus, buffers
// the decoded points in bounded per-logger queues, and commits them in
// batches to pluggable storage backends (DuckDB for time series, Neo4j
// for graph mirroring). It additionally answers history queries over the
// bus, publishes per-logger throughput reports, and mirrors upstream
// address-space schemas into graph sinks at startup.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML, env)
//  2. Logging: zerolog with configured level and format
//  3. Bus: optional embedded NATS server, then the shared connection
//     plus Watermill subscriber/publisher for the measurement feed
//  4. Sinks and loggers: one pipeline per configured logger
//  5. Supervisor tree: pipeline, bus and schema layers under suture
//  6. Metrics: Prometheus endpoint on its own listener
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the root context; the supervisor tree stops
// all services, in-flight batch writes run to completion, and sinks are
// closed before exit.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/bus"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/config"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/discovery"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/logger"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink/duckdb"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink/neo4j"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Int("loggers", len(cfg.Loggers)).
		Bool("embedded_bus", cfg.Bus.Embedded).
		Msg("Starting automation gateway")

	busURL := cfg.Bus.URL
	if cfg.Bus.Embedded {
		srv, err := bus.StartEmbeddedServer(bus.ServerConfig{
			Host: cfg.Bus.EmbeddedHost,
			Port: cfg.Bus.EmbeddedPort,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded bus server")
		}
		defer srv.Shutdown()
		busURL = srv.ClientURL()
		logging.Info().Str("url", busURL).Msg("Embedded bus server started")
	}

	conn, err := bus.Connect(bus.Config{
		URL:           busURL,
		Name:          cfg.Bus.Name,
		MaxReconnects: cfg.Bus.MaxReconnects,
		ReconnectWait: cfg.Bus.ReconnectWait,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to bus")
	}
	defer conn.Close()

	subscriber, err := bus.NewSubscriber(busURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create bus subscriber")
	}
	defer func() { _ = subscriber.Close() }()

	publisher, err := bus.NewPublisher(busURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create bus publisher")
	}
	defer func() { _ = publisher.Close() }()

	registry := discovery.New(conn, cfg.Registry.RetryDelay)
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	for _, lc := range cfg.Loggers {
		s := buildSink(lc.Database)
		l := logger.New(logger.Config{
			Name:           lc.Name,
			QueueSize:      lc.WriteParameters.QueueSize,
			BlockSize:      lc.WriteParameters.BlockSize,
			PollTimeout:    lc.WriteParameters.PollTimeout,
			ReconnectDelay: lc.WriteParameters.ReconnectDelay,
		}, s)

		tree.AddPipelineService(l)
		tree.AddBusService(logger.NewSubscriptionManager(l, registry, conn, subscriber, lc.Topics()))
		tree.AddBusService(logger.NewReporter(l, publisher, time.Second))

		history := logger.NewHistoryService(lc.Name, s)
		if _, err := history.Register(conn); err != nil {
			logging.Fatal().Err(err).Str("logger", lc.Name).Msg("Failed to register history responder")
		}
		logging.Info().
			Str("logger", lc.Name).
			Str("subject", history.Subject()).
			Msg("History responder registered")

		if graph, ok := s.(logger.GraphSchemaSink); ok {
			for _, sc := range lc.Schemas {
				tree.AddSchemaService(logger.NewSchemaSyncRunner(logger.SchemaSyncConfig{
					SystemType:     sc.SystemType,
					System:         sc.System,
					RootNodes:      sc.RootNodes,
					RequestTimeout: sc.RequestTimeout,
					ArtifactDir:    sc.ArtifactDir,
				}, registry, conn, graph))
			}
		}
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree terminated")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}
	logging.Info().Msg("Gateway stopped")
}

// buildSink constructs the storage adapter for a logger. Validation has
// already confirmed the type, so unknown values cannot reach this point.
func buildSink(db config.DatabaseConfig) sink.Sink {
	switch db.Type {
	case config.SinkTypeNeo4j:
		return neo4j.New(neo4j.Config{
			URL:      db.URL,
			Username: db.Username,
			Password: db.Password,
		})
	default:
		return duckdb.New(duckdb.Config{Path: db.Path})
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logging.Info().Str("addr", addr).Msg("Metrics endpoint listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error().Err(err).Msg("Metrics endpoint failed")
	}
}
