// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package config defines the gateway configuration and its layered loader.
// Precedence is ENV > YAML file > built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Sink types accepted in DatabaseConfig.Type.
const (
	SinkTypeDuckDB = "duckdb"
	SinkTypeNeo4j  = "neo4j"
)

// Config is the root gateway configuration.
type Config struct {
	Bus      BusConfig      `koanf:"bus"`
	Registry RegistryConfig `koanf:"registry"`
	Loggers  []LoggerConfig `koanf:"loggers"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// BusConfig holds the message bus connection and the optional embedded
// server settings.
type BusConfig struct {
	URL           string        `koanf:"url"`
	Name          string        `koanf:"name"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`

	// Embedded starts an in-process bus server and connects to it,
	// ignoring URL. Meant for self-contained deployments and demos.
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`
}

// RegistryConfig tunes service discovery.
type RegistryConfig struct {
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// LoggerConfig describes one logger instance: its sink, its subscribed
// topics, its write tuning and the systems whose schemas it mirrors.
type LoggerConfig struct {
	Name            string          `koanf:"name"`
	Database        DatabaseConfig  `koanf:"database"`
	Logging         []TopicConfig   `koanf:"logging"`
	WriteParameters WriteParameters `koanf:"write_parameters"`
	Schemas         []SchemaConfig  `koanf:"schemas"`
}

// DatabaseConfig selects and parameterizes the sink backend.
type DatabaseConfig struct {
	Type     string `koanf:"type"`
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// Path is the file location for embedded backends; empty means
	// in-memory.
	Path string `koanf:"path"`
}

// TopicConfig is one subscription entry.
type TopicConfig struct {
	Topic string `koanf:"topic"`
}

// WriteParameters tunes the ingestion queue and the batch writer.
type WriteParameters struct {
	QueueSize      int           `koanf:"queue_size"`
	BlockSize      int           `koanf:"block_size"`
	PollTimeout    time.Duration `koanf:"poll_timeout"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
}

// SchemaConfig describes one system whose address space is mirrored into
// a graph sink at startup.
type SchemaConfig struct {
	System         string        `koanf:"system"`
	SystemType     string        `koanf:"system_type"`
	RootNodes      []string      `koanf:"root_nodes"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ArtifactDir    string        `koanf:"artifact_dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address"`
}

// Topics flattens the logger's subscription entries.
func (l LoggerConfig) Topics() []string {
	topics := make([]string, 0, len(l.Logging))
	for _, t := range l.Logging {
		topics = append(topics, t.Topic)
	}
	return topics
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.Loggers) == 0 {
		return fmt.Errorf("at least one logger must be configured")
	}

	seen := make(map[string]bool, len(c.Loggers))
	for i, l := range c.Loggers {
		if l.Name == "" {
			return fmt.Errorf("logger %d: name is required", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("logger %q: duplicate name", l.Name)
		}
		seen[l.Name] = true

		switch l.Database.Type {
		case SinkTypeDuckDB:
		case SinkTypeNeo4j:
			if l.Database.URL == "" {
				return fmt.Errorf("logger %q: neo4j sink requires database.url", l.Name)
			}
		default:
			return fmt.Errorf("logger %q: unknown database type %q", l.Name, l.Database.Type)
		}

		if l.Database.Type != SinkTypeNeo4j && len(l.Schemas) > 0 {
			return fmt.Errorf("logger %q: schema sync requires a graph sink", l.Name)
		}
		for j, s := range l.Schemas {
			if s.System == "" || s.SystemType == "" {
				return fmt.Errorf("logger %q: schema %d needs system and system_type", l.Name, j)
			}
			if len(s.RootNodes) == 0 {
				return fmt.Errorf("logger %q: schema %q needs root_nodes", l.Name, s.System)
			}
		}

		for j, t := range l.Logging {
			if t.Topic == "" {
				return fmt.Errorf("logger %q: logging entry %d has an empty topic", l.Name, j)
			}
		}
	}

	if !c.Bus.Embedded && c.Bus.URL == "" {
		return fmt.Errorf("bus.url is required unless bus.embedded is set")
	}

	return nil
}
