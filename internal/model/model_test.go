// Frankenstein Automation Gateway - Industrial Telemetry Logging Pipeline
// Copyright 2026 DAQ Tools
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daq-tools/frankenstein-automation-gateway

package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Topic
		wantErr error
	}{
		{
			name:  "plain topic defaults to structured",
			input: "opc/winccoa1/path/Objects/Pump1/Speed",
			want: Topic{
				SystemType: "opc",
				SystemName: "winccoa1",
				Address:    "path/Objects/Pump1/Speed",
				TopicName:  "opc/winccoa1/path/Objects/Pump1/Speed",
				Format:     FormatStructured,
			},
		},
		{
			name:  "explicit format suffix",
			input: "mqtt/plant2/sensors/temp:structured",
			want: Topic{
				SystemType: "mqtt",
				SystemName: "plant2",
				Address:    "sensors/temp",
				TopicName:  "mqtt/plant2/sensors/temp",
				Format:     FormatStructured,
			},
		},
		{
			name:  "unsupported format is parsed, rejection is the caller's call",
			input: "opc/sys1/node:raw",
			want: Topic{
				SystemType: "opc",
				SystemName: "sys1",
				Address:    "node",
				TopicName:  "opc/sys1/node",
				Format:     "raw",
			},
		},
		{name: "too few segments", input: "opc/sys1", wantErr: ErrMalformedTopic},
		{name: "empty segment", input: "opc//node/x", wantErr: ErrMalformedTopic},
		{name: "empty format suffix", input: "opc/sys1/node:", wantErr: ErrMalformedTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTopic(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseTopic(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTopic(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTopic(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTopicIsStructured(t *testing.T) {
	structured, _ := ParseTopic("opc/sys1/node")
	raw, _ := ParseTopic("opc/sys1/node:raw")

	if !structured.IsStructured() {
		t.Error("default format should be structured")
	}
	if raw.IsStructured() {
		t.Error("raw format should not be structured")
	}
}

func TestDecodeDataPointStructured(t *testing.T) {
	topic, _ := ParseTopic("opc/winccoa1/path/Objects/Pump1/Speed")
	payload := []byte(`{
		"Topic": {
			"SystemType": "opc",
			"SystemName": "winccoa1",
			"Address": "path/Objects/Pump1/Speed",
			"TopicName": "opc/winccoa1/path/Objects/Pump1/Speed",
			"Format": "structured"
		},
		"Value": {
			"Value": "23.5",
			"StatusCode": "Good",
			"DataType": "Double",
			"ServerTime": "2026-08-30T10:00:00Z",
			"SourceTime": "2026-08-30T10:00:00Z"
		}
	}`)

	dp, err := DecodeDataPoint(topic, payload)
	if err != nil {
		t.Fatalf("DecodeDataPoint() error = %v", err)
	}
	if dp.Value.RawValue != "23.5" {
		t.Errorf("RawValue = %q, want 23.5", dp.Value.RawValue)
	}
	if dp.Topic.SystemName != "winccoa1" {
		t.Errorf("SystemName = %q, want winccoa1", dp.Topic.SystemName)
	}
}

func TestDecodeDataPointMalformed(t *testing.T) {
	topic, _ := ParseTopic("opc/sys1/node")
	if _, err := DecodeDataPoint(topic, []byte("{not json")); !errors.Is(err, ErrDecode) {
		t.Fatalf("DecodeDataPoint() error = %v, want ErrDecode", err)
	}
}

func TestDecodeDataPointRawFallback(t *testing.T) {
	topic, _ := ParseTopic("opc/sys1/node:raw")
	dp, err := DecodeDataPoint(topic, []byte("42"))
	if err != nil {
		t.Fatalf("DecodeDataPoint() error = %v", err)
	}
	if dp.Value.RawValue != "42" {
		t.Errorf("RawValue = %q, want 42", dp.Value.RawValue)
	}
	if dp.Value.SourceTime.IsZero() {
		t.Error("raw decode should stamp SourceTime")
	}
}

func TestNewWriteRowNumericCoercion(t *testing.T) {
	topic, _ := ParseTopic("opc/winccoa1/path/Objects/Valve1/State")
	now := time.Now()

	numeric := &DataPoint{Topic: topic, Value: Value{RawValue: "23.5", SourceTime: now}}
	row := NewWriteRow(numeric)
	if v, ok := row.Value.(float64); !ok || v != 23.5 {
		t.Errorf("numeric row Value = %v (%T), want float64 23.5", row.Value, row.Value)
	}

	text := &DataPoint{Topic: topic, Value: Value{RawValue: "OPEN", SourceTime: now}}
	row = NewWriteRow(text)
	if v, ok := row.Value.(string); !ok || v != "OPEN" {
		t.Errorf("text row Value = %v (%T), want string OPEN", row.Value, row.Value)
	}

	if row.System != "winccoa1" {
		t.Errorf("System = %q, want winccoa1", row.System)
	}
	if row.NodeID != "path/Objects/Valve1/State" {
		t.Errorf("NodeID = %q, want address path", row.NodeID)
	}
}

func TestServiceRecordIsUp(t *testing.T) {
	if !(ServiceRecord{Status: ServiceUp}).IsUp() {
		t.Error("UP record should report up")
	}
	if (ServiceRecord{Status: ServiceDown}).IsUp() {
		t.Error("DOWN record should not report up")
	}
}
