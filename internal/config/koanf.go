// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"gateway.yaml",
	"gateway.yml",
	"/etc/automation-gateway/gateway.yaml",
	"/etc/automation-gateway/gateway.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "GATEWAY_CONFIG"

// envPrefix scopes which environment variables the loader reads.
const envPrefix = "GATEWAY_"

func defaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			URL:           "nats://127.0.0.1:4222",
			Name:          "automation-gateway",
			MaxReconnects: -1, // retry forever
			ReconnectWait: 2 * time.Second,
			Embedded:      false,
			EmbeddedHost:  "127.0.0.1",
			EmbeddedPort:  4222,
		},
		Registry: RegistryConfig{
			RetryDelay: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
	}
}

// defaultWriteParameters fills unset writer tuning per logger. The loader
// applies these after unmarshal so partial overrides keep the rest.
func defaultWriteParameters(p WriteParameters) WriteParameters {
	if p.QueueSize <= 0 {
		p.QueueSize = 10000
	}
	if p.BlockSize <= 0 {
		p.BlockSize = 1000
	}
	if p.PollTimeout <= 0 {
		p.PollTimeout = 10 * time.Millisecond
	}
	if p.ReconnectDelay <= 0 {
		p.ReconnectDelay = 5 * time.Second
	}
	return p
}

// Load reads the configuration with layered sources:
//  1. built-in defaults
//  2. optional YAML config file
//  3. environment variables (highest priority)
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile loads the configuration from the given YAML file path (empty
// skips the file layer) plus defaults and environment variables.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	for i := range cfg.Loggers {
		cfg.Loggers[i].WriteParameters = defaultWriteParameters(cfg.Loggers[i].WriteParameters)
		for j := range cfg.Loggers[i].Schemas {
			if cfg.Loggers[i].Schemas[j].RequestTimeout <= 0 {
				cfg.Loggers[i].Schemas[j].RequestTimeout = 10 * time.Minute
			}
			if cfg.Loggers[i].Schemas[j].ArtifactDir == "" {
				cfg.Loggers[i].Schemas[j].ArtifactDir = "."
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps GATEWAY_* variables to koanf paths. Double underscore
// separates nesting levels so multi-word keys stay intact:
//
//	GATEWAY_BUS__URL              -> bus.url
//	GATEWAY_LOGGING__LEVEL        -> logging.level
//	GATEWAY_REGISTRY__RETRY_DELAY -> registry.retry_delay
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
