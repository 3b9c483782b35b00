// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package model

// SchemaNode is one node of an upstream system's address-space tree as
// returned by a schema request. Children keep the sibling order in which
// the upstream reported them.
type SchemaNode struct {
	NodeID      string       `json:"NodeId"`
	NodeClass   string       `json:"NodeClass"`
	BrowseName  string       `json:"BrowseName"`
	BrowsePath  string       `json:"BrowsePath"`
	DisplayName string       `json:"DisplayName"`
	Children    []SchemaNode `json:"Nodes,omitempty"`
}

// SchemaTree is a schema reply: one child array per root label.
type SchemaTree map[string][]SchemaNode

// Service status values reported by the discovery registry.
const (
	ServiceUp   = "UP"
	ServiceDown = "DOWN"
)

// ServiceRecord describes an upstream service as reported by discovery.
type ServiceRecord struct {
	Status   string `json:"Status"`
	Endpoint string `json:"Endpoint"`
}

// IsUp reports whether the service is available.
func (r ServiceRecord) IsUp() bool {
	return r.Status == ServiceUp
}
