// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/sink"
)

// fakeRunner records every statement and fabricates element identities.
type fakeRunner struct {
	calls   []runnerCall
	nextID  int
	failOn  int // 1-based call number to fail on, 0 = never
	nodeIDs map[string]string
}

type runnerCall struct {
	query  string
	params map[string]any
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{nodeIDs: make(map[string]string)}
}

func (f *fakeRunner) run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.calls = append(f.calls, runnerCall{query: query, params: params})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return nil, errors.New("engine unavailable")
	}

	if strings.Contains(query, "RETURN elementId(n) AS id") && !strings.Contains(query, "UNWIND") {
		// Root merge: single identity.
		f.nextID++
		id := fmt.Sprintf("el-%d", f.nextID)
		f.nodeIDs[params["nodeId"].(string)] = id
		return []map[string]any{{"id": id}}, nil
	}

	// Level merge: one identity per row.
	rows := params["rows"].([]map[string]any)
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		f.nextID++
		id := fmt.Sprintf("el-%d", f.nextID)
		nodeID := row["NodeId"].(string)
		f.nodeIDs[nodeID] = id
		out = append(out, map[string]any{"nodeId": nodeID, "id": id})
	}
	return out, nil
}

func sampleTree() model.SchemaTree {
	return model.SchemaTree{
		"Objects": {
			{
				NodeID:      "ns=2;s=Pump1",
				NodeClass:   "Object",
				BrowseName:  "Pump1",
				BrowsePath:  "Objects/Pump1",
				DisplayName: "Pump 1",
				Children: []model.SchemaNode{
					{NodeID: "ns=2;s=Pump1.Speed", NodeClass: "Variable", BrowseName: "Speed", BrowsePath: "Objects/Pump1/Speed", DisplayName: "Speed"},
					{NodeID: "ns=2;s=Pump1.State", NodeClass: "Variable", BrowseName: "State", BrowsePath: "Objects/Pump1/State", DisplayName: "State"},
				},
			},
			{
				NodeID:      "ns=2;s=Valve1",
				NodeClass:   "Object",
				BrowseName:  "Valve1",
				BrowsePath:  "Objects/Valve1",
				DisplayName: "Valve 1",
			},
		},
	}
}

func TestSyncSchemaWritesAllNodes(t *testing.T) {
	runner := newFakeRunner()

	written, err := syncSchema(context.Background(), runner, "winccoa1", sampleTree())
	if err != nil {
		t.Fatalf("syncSchema() error = %v", err)
	}
	// Root + Pump1 + Valve1 + Speed + State
	if written != 5 {
		t.Errorf("written = %d, want 5", written)
	}
}

// TestSyncSchemaOneStatementPerLevel verifies the batching invariant: all
// immediate children of one parent go out in a single statement.
func TestSyncSchemaOneStatementPerLevel(t *testing.T) {
	runner := newFakeRunner()

	if _, err := syncSchema(context.Background(), runner, "sys", sampleTree()); err != nil {
		t.Fatalf("syncSchema() error = %v", err)
	}

	// Call 1: root merge. Call 2: level under root (Pump1, Valve1).
	// Call 3: level under Pump1 (Speed, State).
	if len(runner.calls) != 3 {
		t.Fatalf("got %d statements, want 3", len(runner.calls))
	}

	level1 := runner.calls[1].params["rows"].([]map[string]any)
	if len(level1) != 2 {
		t.Errorf("first level batch has %d rows, want 2", len(level1))
	}
	// Sibling order reproduced as received.
	if level1[0]["NodeId"] != "ns=2;s=Pump1" || level1[1]["NodeId"] != "ns=2;s=Valve1" {
		t.Errorf("sibling order not preserved: %v", level1)
	}

	level2 := runner.calls[2].params["rows"].([]map[string]any)
	if len(level2) != 2 {
		t.Errorf("second level batch has %d rows, want 2", len(level2))
	}
}

// TestSyncSchemaParentBeforeChild verifies that every level statement carries
// a parent identity resolved by an earlier statement.
func TestSyncSchemaParentBeforeChild(t *testing.T) {
	runner := newFakeRunner()

	if _, err := syncSchema(context.Background(), runner, "sys", sampleTree()); err != nil {
		t.Fatalf("syncSchema() error = %v", err)
	}

	seen := map[string]bool{}
	for i, call := range runner.calls {
		if parentID, ok := call.params["parentId"].(string); ok {
			if !seen[parentID] {
				t.Errorf("statement %d links children to parent %q before it was created", i, parentID)
			}
		}
		// Record identities this statement produced.
		if nodeID, ok := call.params["nodeId"].(string); ok {
			seen[runner.nodeIDs[nodeID]] = true
		}
		if rows, ok := call.params["rows"].([]map[string]any); ok {
			for _, row := range rows {
				seen[runner.nodeIDs[row["NodeId"].(string)]] = true
			}
		}
	}
}

// TestSyncSchemaAbortsOnError verifies that a mid-sync failure stops the run
// while keeping the already-committed count.
func TestSyncSchemaAbortsOnError(t *testing.T) {
	runner := newFakeRunner()
	runner.failOn = 3 // fail on the Pump1 child level

	written, err := syncSchema(context.Background(), runner, "sys", sampleTree())
	if err == nil {
		t.Fatal("syncSchema() should fail when a level write fails")
	}
	// Root + first level (2 nodes) committed before the failure.
	if written != 3 {
		t.Errorf("written = %d, want 3", written)
	}
	if len(runner.calls) != 3 {
		t.Errorf("sync continued after failure: %d statements", len(runner.calls))
	}
}

// TestSyncSchemaNodeCounterMatchesWritten verifies the sink is the sole
// owner of the node counter and advances it by exactly the nodes merged,
// including a partial count when the sync aborts mid-run.
func TestSyncSchemaNodeCounterMatchesWritten(t *testing.T) {
	system := "counter-full"
	before := testutil.ToFloat64(metrics.SchemaNodesWritten.WithLabelValues(system))

	written, err := syncSchema(context.Background(), newFakeRunner(), system, sampleTree())
	if err != nil {
		t.Fatalf("syncSchema() error = %v", err)
	}
	after := testutil.ToFloat64(metrics.SchemaNodesWritten.WithLabelValues(system))
	if got := after - before; got != float64(written) {
		t.Errorf("counter advanced by %v, want %d (written)", got, written)
	}

	system = "counter-abort"
	runner := newFakeRunner()
	runner.failOn = 3
	before = testutil.ToFloat64(metrics.SchemaNodesWritten.WithLabelValues(system))

	written, err = syncSchema(context.Background(), runner, system, sampleTree())
	if err == nil {
		t.Fatal("syncSchema() should fail when a level write fails")
	}
	after = testutil.ToFloat64(metrics.SchemaNodesWritten.WithLabelValues(system))
	if got := after - before; got != float64(written) {
		t.Errorf("counter advanced by %v after abort, want %d (partial written)", got, written)
	}
}

func TestSyncSchemaEmptyTree(t *testing.T) {
	runner := newFakeRunner()

	written, err := syncSchema(context.Background(), runner, "sys", model.SchemaTree{})
	if err != nil {
		t.Fatalf("syncSchema() error = %v", err)
	}
	if written != 0 || len(runner.calls) != 0 {
		t.Errorf("empty tree wrote %d nodes with %d statements", written, len(runner.calls))
	}
}

func TestQueryRangeUnsupported(t *testing.T) {
	s := New(Config{})
	if _, err := s.QueryRange(context.Background(), "sys", "n", 0, 1); !errors.Is(err, sink.ErrUnsupported) {
		t.Fatalf("QueryRange() error = %v, want ErrUnsupported", err)
	}
}

func TestWriteBatchNotConnected(t *testing.T) {
	s := New(Config{})
	err := s.WriteBatch(context.Background(), []model.WriteRow{{System: "s", NodeID: "n"}})
	if !errors.Is(err, sink.ErrNotConnected) {
		t.Fatalf("WriteBatch() error = %v, want ErrNotConnected", err)
	}
}
