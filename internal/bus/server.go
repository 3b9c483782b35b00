// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// ServerConfig holds embedded bus server settings.
type ServerConfig struct {
	Host string
	Port int // -1 picks a free port
}

// EmbeddedServer wraps an in-process NATS server for self-contained
// deployments and hermetic tests. Schema payloads can be large, so the
// payload limit is raised well beyond the NATS default.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// StartEmbeddedServer creates and starts an embedded bus server, waiting
// until it accepts connections.
func StartEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 4222
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: "automation-gateway-bus",
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoLog:      true,
		MaxPayload: 16 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("create bus server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("bus server not ready within timeout")
	}

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for completion.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
