// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ErrDecode indicates a bus payload that could not be decoded into a
// data point. Such payloads are dropped; decoding is never retried.
var ErrDecode = errors.New("decode payload")

// Value is a single measurement as published by an upstream source.
// RawValue may be numeric-as-text or plain text; the writer decides the
// sink field type by attempting a numeric parse.
type Value struct {
	RawValue     string    `json:"Value"`
	StatusCode   string    `json:"StatusCode"`
	DataTypeName string    `json:"DataType"`
	ServerTime   time.Time `json:"ServerTime"`
	SourceTime   time.Time `json:"SourceTime"`
}

// DataPoint is the unit flowing through the ingestion queue. It is created
// on successful decode of a bus message and discarded after one batch write.
type DataPoint struct {
	Topic Topic
	Value Value
}

// envelope is the structured wire form of a live measurement message.
type envelope struct {
	Topic Topic `json:"Topic"`
	Value Value `json:"Value"`
}

// DecodeDataPoint normalizes a bus payload into a DataPoint.
//
// Structured payloads carry a JSON envelope {Topic:{...}, Value:{...}}.
// Anything else is treated as a raw text value for the subscribed topic,
// stamped with the receive time. This is the single decode step at the
// pipeline boundary; nothing downstream looks at wire bytes again.
func DecodeDataPoint(topic Topic, payload []byte) (*DataPoint, error) {
	if topic.IsStructured() {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if env.Topic.TopicName == "" {
			env.Topic = topic
		}
		if env.Value.SourceTime.IsZero() {
			env.Value.SourceTime = time.Now()
		}
		if env.Value.ServerTime.IsZero() {
			env.Value.ServerTime = env.Value.SourceTime
		}
		return &DataPoint{Topic: env.Topic, Value: env.Value}, nil
	}

	now := time.Now()
	return &DataPoint{
		Topic: topic,
		Value: Value{
			RawValue:   string(payload),
			ServerTime: now,
			SourceTime: now,
		},
	}, nil
}

// WriteRow is the flattened record committed to a sink. It is built per
// DataPoint immediately before a batch commit and has no lifetime beyond
// the batch. Value holds a float64 when the raw value parses as a number,
// a string otherwise.
type WriteRow struct {
	System     string
	NodeID     string
	Status     string
	Value      any
	DataType   string
	ServerTime time.Time
	SourceTime time.Time
}

// NewWriteRow flattens a data point into a sink row, coercing the raw
// value to float64 when it parses as a number.
func NewWriteRow(dp *DataPoint) WriteRow {
	row := WriteRow{
		System:     dp.Topic.SystemName,
		NodeID:     dp.Topic.Address,
		Status:     dp.Value.StatusCode,
		DataType:   dp.Value.DataTypeName,
		ServerTime: dp.Value.ServerTime,
		SourceTime: dp.Value.SourceTime,
	}
	if f, err := strconv.ParseFloat(dp.Value.RawValue, 64); err == nil {
		row.Value = f
	} else {
		row.Value = dp.Value.RawValue
	}
	return row
}

// RowValue is one value row returned by a range query against a sink.
type RowValue struct {
	Time     time.Time `json:"Time"`
	Value    any       `json:"Value"`
	Status   string    `json:"Status"`
	DataType string    `json:"DataType"`
}
