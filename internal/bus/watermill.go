// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package bus

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
)

// NewSubscriber creates a Watermill subscriber over core NATS for the live
// measurement feed. JetStream is disabled: delivery guarantees end at the
// gateway's own ingestion queue, and the overflow contract there is
// drop-with-warning, not redelivery.
func NewSubscriber(url string) (message.Subscriber, error) {
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         url,
		NatsOptions: watermillNatsOptions(),
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, WatermillLogger())
	if err != nil {
		return nil, fmt.Errorf("create bus subscriber: %w", err)
	}
	return sub, nil
}

// NewPublisher creates a Watermill publisher over core NATS, used for the
// periodic metrics reports.
func NewPublisher(url string) (message.Publisher, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: watermillNatsOptions(),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, WatermillLogger())
	if err != nil {
		return nil, fmt.Errorf("create bus publisher: %w", err)
	}
	return pub, nil
}

func watermillNatsOptions() []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
	}
}

// WatermillLogger bridges Watermill logging onto the gateway's zerolog setup.
func WatermillLogger() watermill.LoggerAdapter {
	return &wmLogger{fields: nil}
}

type wmLogger struct {
	fields watermill.LogFields
}

func (l *wmLogger) Error(msg string, err error, fields watermill.LogFields) {
	event := logging.Err(err)
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *wmLogger) Info(msg string, fields watermill.LogFields) {
	event := logging.Info()
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *wmLogger) Debug(msg string, fields watermill.LogFields) {
	event := logging.Debug()
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *wmLogger) Trace(msg string, fields watermill.LogFields) {
	event := logging.Trace()
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *wmLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &wmLogger{fields: l.fields.Add(fields)}
}

func addFields(event *zerolog.Event, base, extra watermill.LogFields) {
	for k, v := range base {
		event.Interface(k, v)
	}
	for k, v := range extra {
		event.Interface(k, v)
	}
}
