// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package logger

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
)

// throughputReport is the payload published on logger/<name>/metrics.
// Field names match what dashboard consumers already scrape.
type throughputReport struct {
	Input  float64 `json:"Input v/s"`
	Output float64 `json:"Output v/s"`
}

// Reporter publishes the logger's input and output rates once per interval.
type Reporter struct {
	logger    *Logger
	publisher message.Publisher
	interval  time.Duration
}

// NewReporter creates a throughput reporter. Non-positive interval falls
// back to one second.
func NewReporter(l *Logger, publisher message.Publisher, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{logger: l, publisher: publisher, interval: interval}
}

// Subject returns the topic the rates are published on.
func (r *Reporter) Subject() string {
	return "logger/" + r.logger.Name() + "/metrics"
}

// Serve publishes a throughput report every interval until ctx is canceled.
// It implements suture.Service.
func (r *Reporter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	lastInput := r.logger.InputCount()
	lastOutput := r.logger.OutputCount()
	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			input := r.logger.InputCount()
			output := r.logger.OutputCount()
			elapsed := now.Sub(lastTick)

			report := throughputReport{
				Input:  rate(input-lastInput, elapsed),
				Output: rate(output-lastOutput, elapsed),
			}
			lastInput, lastOutput, lastTick = input, output, now

			if err := r.publish(report); err != nil {
				logging.Debug().
					Err(err).
					Str("logger", r.logger.Name()).
					Msg("Throughput report publish failed")
			}
		}
	}
}

func (r *Reporter) publish(report throughputReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return r.publisher.Publish(r.Subject(), msg)
}

// rate converts a counter delta over an elapsed window into a per-second
// value. A zero or negative window yields zero rather than a spike.
func rate(delta int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(delta) / elapsed.Seconds()
}
