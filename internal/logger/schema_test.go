// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thejerf/suture/v4"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/discovery"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
)

// fakeSchemaBus answers registry lookups and one schema fetch.
type fakeSchemaBus struct {
	mu       sync.Mutex
	tree     model.SchemaTree
	fetchErr error
	request  schemaRequest
}

func (b *fakeSchemaBus) Request(ctx context.Context, subject string, req, resp any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subject == discovery.LookupSubject {
		return remarshal(map[string]any{"Ok": true, "Status": "UP", "Endpoint": "winccoa1"}, resp)
	}
	if strings.HasSuffix(subject, "/Schema") {
		data, _ := json.Marshal(req)
		_ = json.Unmarshal(data, &b.request)
		if b.fetchErr != nil {
			return b.fetchErr
		}
		return remarshal(b.tree, resp)
	}
	return errors.New("unexpected subject " + subject)
}

// fakeGraphSink records the synchronized tree.
type fakeGraphSink struct {
	mu     sync.Mutex
	system string
	tree   model.SchemaTree
	err    error
	calls  int
}

func (s *fakeGraphSink) SyncSchema(ctx context.Context, system string, tree model.SchemaTree) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.system = system
	s.tree = tree
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, nodes := range tree {
		n += countNodes(nodes)
	}
	return n, nil
}

func countNodes(nodes []model.SchemaNode) int {
	n := len(nodes)
	for _, node := range nodes {
		n += countNodes(node.Children)
	}
	return n
}

func testTree() model.SchemaTree {
	return model.SchemaTree{
		"ns=0;i=85": {
			{
				NodeID:      "ns=2;s=Plant",
				NodeClass:   "Object",
				BrowseName:  "Plant",
				DisplayName: "Plant",
				Children: []model.SchemaNode{
					{NodeID: "ns=2;s=Plant/Pump1", NodeClass: "Variable", BrowseName: "Pump1", DisplayName: "Pump 1"},
				},
			},
		},
	}
}

func newTestRunner(t *testing.T, bus *fakeSchemaBus, graph *fakeGraphSink) *SchemaSyncRunner {
	t.Helper()
	return NewSchemaSyncRunner(SchemaSyncConfig{
		SystemType:     "opc",
		System:         "winccoa1",
		RootNodes:      []string{"ns=0;i=85"},
		RequestTimeout: time.Second,
		ArtifactDir:    t.TempDir(),
	}, discovery.New(bus, time.Millisecond), bus, graph)
}

func TestSchemaSyncMirrorsTree(t *testing.T) {
	bus := &fakeSchemaBus{tree: testTree()}
	graph := &fakeGraphSink{}
	r := newTestRunner(t, bus, graph)

	if err := r.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve() = %v, want ErrDoNotRestart", err)
	}

	if bus.request.NodeIDs[0] != "ns=0;i=85" {
		t.Errorf("schema request roots = %v", bus.request.NodeIDs)
	}
	if graph.calls != 1 {
		t.Fatalf("SyncSchema calls = %d, want 1", graph.calls)
	}
	if graph.system != "winccoa1" {
		t.Errorf("synced system = %q", graph.system)
	}
	if len(graph.tree["ns=0;i=85"]) != 1 {
		t.Errorf("synced tree roots = %d, want 1", len(graph.tree["ns=0;i=85"]))
	}
}

func TestSchemaSyncWritesArtifact(t *testing.T) {
	bus := &fakeSchemaBus{tree: testTree()}
	graph := &fakeGraphSink{}
	r := newTestRunner(t, bus, graph)

	_ = r.Serve(context.Background())

	data, err := os.ReadFile(filepath.Join(r.cfg.ArtifactDir, "winccoa1.json"))
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	var tree model.SchemaTree
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if !strings.Contains(string(data), "\n") {
		t.Error("artifact should be pretty-printed")
	}
}

func TestSchemaSyncArtifactWrittenOnFetchFailure(t *testing.T) {
	bus := &fakeSchemaBus{fetchErr: errors.New("driver timeout")}
	graph := &fakeGraphSink{}
	r := newTestRunner(t, bus, graph)

	if err := r.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve() = %v, want ErrDoNotRestart", err)
	}

	data, err := os.ReadFile(filepath.Join(r.cfg.ArtifactDir, "winccoa1.json"))
	if err != nil {
		t.Fatalf("artifact not written on fetch failure: %v", err)
	}
	if strings.TrimSpace(string(data)) != "{}" {
		t.Errorf("artifact = %q, want empty object", data)
	}
	if graph.calls != 0 {
		t.Error("SyncSchema must not run after a failed fetch")
	}
}

// TestSchemaSyncRunnerLeavesNodeCounterToSink verifies the runner does not
// add the sink's returned count on top of the sink's own increments, which
// would report double the nodes mirrored.
func TestSchemaSyncRunnerLeavesNodeCounterToSink(t *testing.T) {
	bus := &fakeSchemaBus{tree: testTree()}
	graph := &fakeGraphSink{}
	r := NewSchemaSyncRunner(SchemaSyncConfig{
		SystemType:     "opc",
		System:         "counter-owner",
		RootNodes:      []string{"ns=0;i=85"},
		RequestTimeout: time.Second,
		ArtifactDir:    t.TempDir(),
	}, discovery.New(bus, time.Millisecond), bus, graph)

	before := testutil.ToFloat64(metrics.SchemaNodesWritten.WithLabelValues("counter-owner"))
	if err := r.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve() = %v, want ErrDoNotRestart", err)
	}
	after := testutil.ToFloat64(metrics.SchemaNodesWritten.WithLabelValues("counter-owner"))

	// The fake sink records no metrics, so any advance here is the
	// runner counting nodes it does not own.
	if after != before {
		t.Errorf("runner advanced node counter by %v, want 0", after-before)
	}
}

func TestSchemaSyncGraphFailureStillTerminates(t *testing.T) {
	bus := &fakeSchemaBus{tree: testTree()}
	graph := &fakeGraphSink{err: errors.New("graph unavailable")}
	r := newTestRunner(t, bus, graph)

	if err := r.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve() = %v, want ErrDoNotRestart", err)
	}
}
