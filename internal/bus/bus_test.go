// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package bus

import (
	"context"
	"testing"
	"time"
)

// startTestBus runs an embedded server on a free port for hermetic tests.
func startTestBus(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := StartEmbeddedServer(ServerConfig{Port: -1})
	if err != nil {
		t.Fatalf("StartEmbeddedServer() error = %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestRequestReply(t *testing.T) {
	srv := startTestBus(t)

	conn, err := Connect(Config{URL: srv.ClientURL(), Name: "test"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	type ping struct {
		Value string `json:"Value"`
	}
	type pong struct {
		Ok    bool   `json:"Ok"`
		Value string `json:"Value"`
	}

	sub, err := conn.Respond("test/Echo", func(ctx context.Context, data []byte) any {
		return pong{Ok: true, Value: string(data)}
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reply pong
	if err := conn.Request(ctx, "test/Echo", ping{Value: "hello"}, &reply); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if !reply.Ok {
		t.Error("reply.Ok = false, want true")
	}
}

// TestRespondHandlerContextBounded verifies handlers run under a deadline
// so a stalled backend cannot pin the subscription callback forever.
func TestRespondHandlerContextBounded(t *testing.T) {
	srv := startTestBus(t)

	conn, err := Connect(Config{URL: srv.ClientURL(), Name: "test"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	type deadlineReply struct {
		HasDeadline bool `json:"HasDeadline"`
	}

	sub, err := conn.Respond("test/Deadline", func(ctx context.Context, data []byte) any {
		_, ok := ctx.Deadline()
		return deadlineReply{HasDeadline: ok}
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reply deadlineReply
	if err := conn.Request(ctx, "test/Deadline", struct{}{}, &reply); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if !reply.HasDeadline {
		t.Error("handler context has no deadline")
	}
}

func TestRequestTimeout(t *testing.T) {
	srv := startTestBus(t)

	conn, err := Connect(Config{URL: srv.ClientURL(), Name: "test"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var reply struct{}
	if err := conn.Request(ctx, "test/NoResponder", struct{}{}, &reply); err == nil {
		t.Fatal("Request() to unanswered subject should fail")
	}
}

func TestPublishSubscribe(t *testing.T) {
	srv := startTestBus(t)

	conn, err := Connect(Config{URL: srv.ClientURL(), Name: "test"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	received := make(chan []byte, 1)
	sub, err := conn.Subscribe("test/Values", func(subject string, data []byte) {
		received <- data
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := conn.Publish("test/Values", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case data := <-received:
		if len(data) == 0 {
			t.Error("received empty payload")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}
