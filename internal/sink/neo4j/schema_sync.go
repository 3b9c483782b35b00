// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package neo4j

import (
	"context"
	"fmt"
	"sort"

	"github.com/daq-tools/frankenstein-automation-gateway/internal/logging"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/metrics"
	"github.com/daq-tools/frankenstein-automation-gateway/internal/model"
)

const mergeRootCypher = `
MERGE (n:Node {System: $system, NodeId: $nodeId})
SET n.DisplayName = $displayName
RETURN elementId(n) AS id`

// mergeLevelCypher upserts all immediate children of one parent and their
// HAS edges in a single round trip. The parent identity is resolved before
// the statement is issued, so no edge can exist without both endpoints.
const mergeLevelCypher = `
UNWIND $rows AS row
MATCH (p:Node) WHERE elementId(p) = $parentId
MERGE (n:Node {System: $system, NodeId: row.NodeId})
SET n.NodeClass = row.NodeClass,
    n.BrowseName = row.BrowseName,
    n.BrowsePath = row.BrowsePath,
    n.DisplayName = row.DisplayName
MERGE (p)-[:HAS]->(n)
RETURN row.NodeId AS nodeId, elementId(n) AS id`

// SyncSchema mirrors an upstream node tree into the graph.
//
// For each root label the root node is merged first and its generated
// identity retrieved; every level below is then written with one batched
// statement per parent, depth-first over siblings in received order. On any
// error the sync aborts; levels already committed remain (no rollback).
// Returns the number of nodes written, including on failure.
func (s *Sink) SyncSchema(ctx context.Context, system string, tree model.SchemaTree) (int, error) {
	return syncSchema(ctx, s, system, tree)
}

func syncSchema(ctx context.Context, runner cypherRunner, system string, tree model.SchemaTree) (int, error) {
	// Root labels are iterated in sorted order: the wire form is a JSON
	// object, which carries no order to reproduce.
	labels := make([]string, 0, len(tree))
	for label := range tree {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	written := 0
	for _, label := range labels {
		rows, err := runner.run(ctx, mergeRootCypher, map[string]any{
			"system":      system,
			"nodeId":      label,
			"displayName": label,
		})
		if err != nil {
			return written, fmt.Errorf("merge root %q: %w", label, err)
		}
		rootID, err := extractID(rows)
		if err != nil {
			return written, fmt.Errorf("merge root %q: %w", label, err)
		}
		written++
		metrics.SchemaNodesWritten.WithLabelValues(system).Inc()

		n, err := syncLevel(ctx, runner, system, rootID, tree[label])
		written += n
		if err != nil {
			return written, err
		}
	}

	logging.Info().
		Str("system", system).
		Int("nodes", written).
		Msg("Schema sync committed")
	return written, nil
}

// syncLevel writes the immediate children of parentID in one statement, then
// recurses depth-first into children that have children of their own. The
// caller's parent record exists before this runs, preserving the
// parent-before-child ordering for every edge.
func syncLevel(ctx context.Context, runner cypherRunner, system, parentID string, children []model.SchemaNode) (int, error) {
	if len(children) == 0 {
		return 0, nil
	}

	rows := make([]map[string]any, 0, len(children))
	for _, c := range children {
		rows = append(rows, map[string]any{
			"NodeId":      c.NodeID,
			"NodeClass":   c.NodeClass,
			"BrowseName":  c.BrowseName,
			"BrowsePath":  c.BrowsePath,
			"DisplayName": c.DisplayName,
		})
	}

	result, err := runner.run(ctx, mergeLevelCypher, map[string]any{
		"system":   system,
		"parentId": parentID,
		"rows":     rows,
	})
	if err != nil {
		return 0, fmt.Errorf("merge level under %s: %w", parentID, err)
	}
	metrics.SchemaNodesWritten.WithLabelValues(system).Add(float64(len(children)))

	ids := make(map[string]string, len(result))
	for _, rec := range result {
		nodeID, _ := rec["nodeId"].(string)
		id, _ := rec["id"].(string)
		if nodeID != "" && id != "" {
			ids[nodeID] = id
		}
	}

	written := len(children)
	for _, c := range children {
		if len(c.Children) == 0 {
			continue
		}
		childID, ok := ids[c.NodeID]
		if !ok {
			return written, fmt.Errorf("merge level under %s: no identity returned for %q", parentID, c.NodeID)
		}
		n, err := syncLevel(ctx, runner, system, childID, c.Children)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func extractID(rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no identity returned")
	}
	id, _ := rows[0]["id"].(string)
	if id == "" {
		return "", fmt.Errorf("empty identity returned")
	}
	return id, nil
}
