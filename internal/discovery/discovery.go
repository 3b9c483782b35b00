// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package discovery looks up upstream services in the registry collaborator
// over the bus. The registry itself is external; this client only issues
// lookups and polls for availability.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
)

// LookupSubject is the registry's request/reply subject.
const LookupSubject = "registry/Get"

// DefaultRetryDelay is the poll interval while waiting for a service.
const DefaultRetryDelay = 5 * time.Second

// ErrNotFound indicates the registry knows no service for the requested
// (systemType, systemName) pair.
var ErrNotFound = errors.New("service not found")

// Requester is the narrow bus capability the client needs.
type Requester interface {
	Request(ctx context.Context, subject string, req, resp any) error
}

// Client queries the service registry.
type Client struct {
	bus   Requester
	delay time.Duration
}

// New creates a registry client. Non-positive delay falls back to
// DefaultRetryDelay.
func New(bus Requester, delay time.Duration) *Client {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Client{bus: bus, delay: delay}
}

type lookupRequest struct {
	Type   string `json:"Type"`
	System string `json:"System"`
}

type lookupReply struct {
	Ok       bool   `json:"Ok"`
	Status   string `json:"Status"`
	Endpoint string `json:"Endpoint"`
}

// Lookup asks the registry for the service owning (systemType, systemName).
// Returns ErrNotFound when the registry replies without a match.
func (c *Client) Lookup(ctx context.Context, systemType, systemName string) (model.ServiceRecord, error) {
	var reply lookupReply
	err := c.bus.Request(ctx, LookupSubject, lookupRequest{Type: systemType, System: systemName}, &reply)
	if err != nil {
		return model.ServiceRecord{}, fmt.Errorf("lookup %s/%s: %w", systemType, systemName, err)
	}
	if !reply.Ok {
		return model.ServiceRecord{}, fmt.Errorf("lookup %s/%s: %w", systemType, systemName, ErrNotFound)
	}
	return model.ServiceRecord{Status: reply.Status, Endpoint: reply.Endpoint}, nil
}

// WaitForService polls the registry until a record exists for the service,
// retrying every delay interval indefinitely. Returns only on success or
// context cancellation.
func (c *Client) WaitForService(ctx context.Context, systemType, systemName string) (model.ServiceRecord, error) {
	return c.waitFor(ctx, systemType, systemName, func(model.ServiceRecord) bool { return true })
}

// WaitUntilUp polls the registry until the service reports UP. Blocks
// indefinitely by design; schema sync must not start against a down system.
func (c *Client) WaitUntilUp(ctx context.Context, systemType, systemName string) (model.ServiceRecord, error) {
	return c.waitFor(ctx, systemType, systemName, model.ServiceRecord.IsUp)
}

func (c *Client) waitFor(ctx context.Context, systemType, systemName string, ready func(model.ServiceRecord) bool) (model.ServiceRecord, error) {
	ticker := time.NewTicker(c.delay)
	defer ticker.Stop()

	for {
		record, err := c.Lookup(ctx, systemType, systemName)
		if err == nil && ready(record) {
			return record, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			logging.Debug().
				Err(err).
				Str("system", systemName).
				Msg("Registry lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return model.ServiceRecord{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
