// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package bus wraps the NATS connection used by all gateway components.
//
// Live measurement feeds go through Watermill (watermill.go); everything
// request/reply shaped — service discovery, Subscribe requests, schema
// fetches, history queries — uses the core connection directly.
package bus

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/goccy/go-json"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
)

// Config holds the bus connection configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// Name identifies this client on the server.
	Name string

	// MaxReconnects limits reconnect attempts; -1 retries forever.
	MaxReconnects int

	// ReconnectWait is the delay between reconnect attempts.
	ReconnectWait time.Duration
}

// DefaultConfig returns the bus defaults.
func DefaultConfig() Config {
	return Config{
		URL:           natsgo.DefaultURL,
		Name:          "automation-gateway",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Conn is the shared bus connection.
type Conn struct {
	nc  *natsgo.Conn
	url string
}

// Connect establishes the bus connection with automatic reconnection.
func Connect(cfg Config) (*Conn, error) {
	if cfg.URL == "" {
		cfg.URL = natsgo.DefaultURL
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	nc, err := natsgo.Connect(cfg.URL,
		natsgo.Name(cfg.Name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Err(err).Msg("Bus disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("Bus reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect bus at %s: %w", cfg.URL, err)
	}

	return &Conn{nc: nc, url: cfg.URL}, nil
}

// Request sends a JSON request and decodes the JSON reply into resp.
func (c *Conn) Request(ctx context.Context, subject string, req, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", subject, err)
	}

	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}

	if resp != nil {
		if err := json.Unmarshal(msg.Data, resp); err != nil {
			return fmt.Errorf("decode reply from %s: %w", subject, err)
		}
	}
	return nil
}

// respondTimeout bounds a single request handler invocation so a stalled
// backend cannot pin the subscription callback goroutine.
const respondTimeout = 30 * time.Second

// Respond registers a request handler on subject. The handler's return value
// is marshaled as the reply; it must always produce a reply value so callers
// get an explicit failure indication instead of a timeout. The handler runs
// under a deadline of respondTimeout.
func (c *Conn) Respond(subject string, handler func(ctx context.Context, data []byte) any) (*natsgo.Subscription, error) {
	sub, err := c.nc.Subscribe(subject, func(m *natsgo.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), respondTimeout)
		defer cancel()
		reply := handler(ctx, m.Data)
		data, err := json.Marshal(reply)
		if err != nil {
			logging.Err(err).Str("subject", subject).Msg("Failed to marshal reply")
			return
		}
		if err := m.Respond(data); err != nil {
			logging.Err(err).Str("subject", subject).Msg("Failed to send reply")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe responder %s: %w", subject, err)
	}
	return sub, nil
}

// Publish sends a JSON-encoded message to subject (fire and forget).
func (c *Conn) Publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal publish for %s: %w", subject, err)
	}
	if err := c.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a plain message handler on subject.
func (c *Conn) Subscribe(subject string, handler func(subject string, data []byte)) (*natsgo.Subscription, error) {
	sub, err := c.nc.Subscribe(subject, func(m *natsgo.Msg) {
		handler(m.Subject, m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// URL returns the configured server URL.
func (c *Conn) URL() string {
	return c.url
}

// Close drains and closes the connection.
func (c *Conn) Close() {
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
	}
}
