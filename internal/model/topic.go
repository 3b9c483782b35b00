// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

// Package model holds the value objects flowing through the gateway pipeline:
// topics, measurement values, queued data points, sink write rows, schema
// nodes and service records. The types carry no behavior beyond parsing and
// conversion; all pipeline logic lives in the consuming packages.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Topic formats. Only FormatStructured is accepted by the subscription
// manager; other formats are logged and skipped.
const (
	FormatStructured = "structured"
)

var (
	// ErrMalformedTopic indicates a topic string that does not follow
	// systemType/systemName/address conventions.
	ErrMalformedTopic = errors.New("malformed topic")

	// ErrUnsupportedFormat indicates a topic whose format the gateway
	// cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported topic format")
)

// Topic identifies a data source on the bus and its encoding.
//
// A topic string has the form
//
//	systemType/systemName/address/path...[:format]
//
// where the address may itself contain slashes. TopicName is the full
// bus subject (the string without the format suffix). The format suffix
// defaults to "structured" when absent.
//
// Topics are immutable; they are parsed once from configuration and then
// only read.
type Topic struct {
	SystemType string `json:"SystemType"`
	SystemName string `json:"SystemName"`
	Address    string `json:"Address"`
	TopicName  string `json:"TopicName"`
	Format     string `json:"Format"`
}

// ParseTopic parses a configured topic string.
func ParseTopic(s string) (Topic, error) {
	format := FormatStructured
	base := s
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		base = s[:idx]
		format = strings.ToLower(s[idx+1:])
		if format == "" {
			return Topic{}, fmt.Errorf("%w: empty format suffix in %q", ErrMalformedTopic, s)
		}
	}

	parts := strings.Split(base, "/")
	if len(parts) < 3 {
		return Topic{}, fmt.Errorf("%w: %q needs systemType/systemName/address", ErrMalformedTopic, s)
	}
	for _, p := range parts {
		if p == "" {
			return Topic{}, fmt.Errorf("%w: empty path segment in %q", ErrMalformedTopic, s)
		}
	}

	return Topic{
		SystemType: parts[0],
		SystemName: parts[1],
		Address:    strings.Join(parts[2:], "/"),
		TopicName:  base,
		Format:     format,
	}, nil
}

// IsStructured reports whether the topic carries the structured encoding
// the gateway can decode.
func (t Topic) IsStructured() bool {
	return t.Format == FormatStructured
}
