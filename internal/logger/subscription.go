// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package logger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/discovery"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
)

// MessageSource is the watermill subscriber subset the manager consumes.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// subscribeRequest registers this gateway as a consumer with the upstream
// driver that owns the topic.
type subscribeRequest struct {
	ClientID string `json:"ClientId"`
	Topic    string `json:"Topic"`
}

type subscribeReply struct {
	Ok bool `json:"Ok"`
}

// SubscriptionManager resolves each configured topic to its upstream driver,
// registers the subscription, and pumps the live value feed into the logger.
type SubscriptionManager struct {
	logger   *Logger
	registry *discovery.Client
	bus      discovery.Requester
	source   MessageSource
	clientID string
	topics   []string

	wg sync.WaitGroup
}

// NewSubscriptionManager wires a manager for the given raw topic strings.
// Each gateway instance identifies itself to upstream drivers with one
// random client id for its whole lifetime.
func NewSubscriptionManager(l *Logger, registry *discovery.Client, bus discovery.Requester, source MessageSource, topics []string) *SubscriptionManager {
	return &SubscriptionManager{
		logger:   l,
		registry: registry,
		bus:      bus,
		source:   source,
		clientID: uuid.NewString(),
		topics:   topics,
	}
}

// ClientID returns the consumer id used in upstream registrations.
func (m *SubscriptionManager) ClientID() string { return m.clientID }

// Serve starts one worker per configured topic and blocks until ctx is
// canceled and all workers have drained. It implements suture.Service.
func (m *SubscriptionManager) Serve(ctx context.Context) error {
	for _, raw := range m.topics {
		topic, err := model.ParseTopic(raw)
		if err != nil {
			logging.Warn().Err(err).Str("topic", raw).Msg("Skipping malformed topic")
			continue
		}
		if !topic.IsStructured() {
			logging.Warn().
				Str("topic", raw).
				Str("format", topic.Format).
				Msg("Skipping topic with unsupported format")
			continue
		}

		m.wg.Add(1)
		go func(t model.Topic) {
			defer m.wg.Done()
			m.runTopic(ctx, t)
		}(topic)
	}

	m.wg.Wait()
	<-ctx.Done()
	return ctx.Err()
}

// runTopic handles one topic end to end: wait for the owning driver, open
// the local consumer, register with the driver, then pump messages.
func (m *SubscriptionManager) runTopic(ctx context.Context, topic model.Topic) {
	record, err := m.registry.WaitForService(ctx, topic.SystemType, topic.SystemName)
	if err != nil {
		return // ctx canceled
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs, err := m.source.Subscribe(subCtx, topic.TopicName)
	if err != nil {
		logging.Err(err).Str("topic", topic.TopicName).Msg("Bus subscribe failed")
		return
	}

	if err := m.register(ctx, record.Endpoint, topic); err != nil {
		// A rejected registration drops the local consumer too; the
		// driver will never publish for us.
		logging.Err(err).
			Str("topic", topic.TopicName).
			Str("endpoint", record.Endpoint).
			Msg("Upstream subscription rejected")
		return
	}

	logging.Info().
		Str("topic", topic.TopicName).
		Str("endpoint", record.Endpoint).
		Msg("Subscribed to topic")

	m.pump(topic, msgs)
}

// register sends the Subscribe request to the driver endpoint. Rejections
// are terminal for the topic; only the initial discovery wait retries.
func (m *SubscriptionManager) register(ctx context.Context, endpoint string, topic model.Topic) error {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var reply subscribeReply
	req := subscribeRequest{ClientID: m.clientID, Topic: topic.TopicName}
	if err := m.bus.Request(reqCtx, endpoint+"/Subscribe", req, &reply); err != nil {
		return fmt.Errorf("subscribe request: %w", err)
	}
	if !reply.Ok {
		return errors.New("driver refused subscription")
	}
	return nil
}

// pump decodes each incoming message and offers it to the ingestion queue.
// Every message is acked: delivery guarantees end at the queue boundary and
// undecodable or overflowed points are counted, not redelivered.
func (m *SubscriptionManager) pump(topic model.Topic, msgs <-chan *message.Message) {
	name := m.logger.Name()
	for msg := range msgs {
		dp, err := model.DecodeDataPoint(topic, msg.Payload)
		if err != nil {
			metrics.RecordDrop(name, "decode", 1)
			logging.Debug().
				Err(err).
				Str("topic", topic.TopicName).
				Msg("Discarding undecodable point")
			msg.Ack()
			continue
		}

		// Overflow drops are counted and logged by the queue itself.
		m.logger.Offer(dp)
		msg.Ack()
	}
}
