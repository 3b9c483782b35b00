// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package logger

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink"
)

// HistoryRequest asks for the recorded values of one node in a closed
// time range. T1 and T2 are unix epoch milliseconds.
type HistoryRequest struct {
	System string `json:"System"`
	NodeID string `json:"NodeId"`
	T1     int64  `json:"T1"`
	T2     int64  `json:"T2"`
}

// HistoryReply carries the query outcome. Ok is false for malformed
// requests, unknown series and sink failures alike; callers get no
// partial results.
type HistoryReply struct {
	Ok     bool             `json:"Ok"`
	Result []model.RowValue `json:"Result,omitempty"`
}

// Responder is the bus capability needed to serve request/reply handlers.
type Responder interface {
	Respond(subject string, handler func(ctx context.Context, data []byte) any) (*nats.Subscription, error)
}

// HistoryService answers QueryHistory requests against the logger's sink.
type HistoryService struct {
	name string
	sink sink.Sink
}

// NewHistoryService creates a responder backed by the given sink.
func NewHistoryService(name string, s sink.Sink) *HistoryService {
	return &HistoryService{name: name, sink: s}
}

// Subject returns the request/reply subject this logger answers on.
func (h *HistoryService) Subject() string {
	return "logger/" + h.name + "/QueryHistory"
}

// Register installs the handler on the bus.
func (h *HistoryService) Register(bus Responder) (*nats.Subscription, error) {
	return bus.Respond(h.Subject(), func(ctx context.Context, data []byte) any {
		return h.handle(ctx, data)
	})
}

func (h *HistoryService) handle(ctx context.Context, data []byte) HistoryReply {
	var req HistoryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		metrics.HistoryQueries.WithLabelValues(h.name, "error").Inc()
		logging.Debug().Err(err).Str("logger", h.name).Msg("Malformed history request")
		return HistoryReply{Ok: false}
	}

	rows, err := h.sink.QueryRange(ctx, req.System, req.NodeID, req.T1, req.T2)
	switch {
	case errors.Is(err, sink.ErrNoSeries):
		metrics.HistoryQueries.WithLabelValues(h.name, "empty").Inc()
		return HistoryReply{Ok: false}
	case err != nil:
		metrics.HistoryQueries.WithLabelValues(h.name, "error").Inc()
		logging.Err(err).
			Str("logger", h.name).
			Str("node", req.NodeID).
			Msg("History query failed")
		return HistoryReply{Ok: false}
	}

	metrics.HistoryQueries.WithLabelValues(h.name, "ok").Inc()
	return HistoryReply{Ok: true, Result: rows}
}
