/*
 * Copyright 2025 Cemaxecuter LLC.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fpv

import (
	"encoding/json"
	"strings"
)

// Sensor message types.
const (
	typeNodeMsg   = "nodeMsg"
	typeNodeAlert = "nodeAlert"
)

// Status markers emitted by the sensor firmware.
const (
	statusNodeStart       = "NODE_START"
	statusCalibrationDone = "CALIBRATION COMPLETE"
	statusNewLock         = "NEW CONTACT LOCK"
	statusLockUpdate      = "LOCK UPDATE"
	statusLostLock        = "LOST CONTACT LOCK"
)

// unknownSource labels messages whose sender node id is missing.
const unknownSource = "unknown"

// rawMessage mirrors the sensor's wire format. Everything under msg except
// type and stat is opaque and passed through untouched.
type rawMessage struct {
	From struct {
		Node string `json:"node"`
	} `json:"from"`
	Msg struct {
		Type string          `json:"type"`
		Stat string          `json:"stat"`
		Time json.RawMessage `json:"time"`
		RSSI json.RawMessage `json:"rssi"`
		Freq json.RawMessage `json:"freq"`
		Var  json.RawMessage `json:"var"`
		Data json.RawMessage `json:"data"`
	} `json:"msg"`
}

// Detection is the enriched message published on the bus. Absent sensor
// fields serialize as null so downstream consumers see a stable shape.
type Detection struct {
	SourceNode  string          `json:"source_node"`
	MessageType string          `json:"message_type"`
	Status      string          `json:"status"`
	Time        json.RawMessage `json:"time"`
	RSSI        json.RawMessage `json:"rssi"`
	Freq        json.RawMessage `json:"freq"`
	Var         json.RawMessage `json:"var"`
	Data        json.RawMessage `json:"data"`
	GPSLat      float64         `json:"gps_lat"`
	GPSLon      float64         `json:"gps_lon"`
}

func newDetection(raw rawMessage) Detection {
	source := raw.From.Node
	if source == "" {
		source = unknownSource
	}

	return Detection{
		SourceNode:  source,
		MessageType: raw.Msg.Type,
		Status:      raw.Msg.Stat,
		Time:        raw.Msg.Time,
		RSSI:        raw.Msg.RSSI,
		Freq:        raw.Msg.Freq,
		Var:         raw.Msg.Var,
		Data:        raw.Msg.Data,
	}
}

type severity uint8

const (
	severityDebug severity = iota
	severityInfo
	severityWarn
)

type classification struct {
	severity severity
	message  string
}

// classify maps a sensor status to the operator-facing log line. New contact
// locks and lost locks are the events a crew actually watches for, so those
// surface at warn level.
func classify(messageType, status string) classification {
	switch messageType {
	case typeNodeMsg:
		switch {
		case strings.HasPrefix(status, statusNodeStart):
			return classification{severityInfo, "Boot message received"}
		case strings.Contains(status, statusCalibrationDone):
			return classification{severityInfo, "Calibration complete"}
		default:
			return classification{severityDebug, "Node message"}
		}
	case typeNodeAlert:
		switch {
		case strings.Contains(status, statusNewLock):
			return classification{severityWarn, "New FPV drone detected"}
		case strings.Contains(status, statusLockUpdate):
			return classification{severityInfo, "Contact lock update"}
		case strings.Contains(status, statusLostLock):
			return classification{severityWarn, "Lost contact lock"}
		default:
			return classification{severityDebug, "Node alert"}
		}
	default:
		return classification{severityDebug, "Unclassified sensor message"}
	}
}
