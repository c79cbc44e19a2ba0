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

// Package dragonsync decodes the DragonSync ZMQ JSON feeds: Remote-ID
// detection payloads and WarDragon status reports. A detection fans out into
// a drone event plus optional pilot and home events sharing the drone's
// identifier suffix, so operators can correlate them on the map.
package dragonsync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

var (
	errEmptyDetection = errors.New("detection payload has no identifier")
	errNoSegments     = errors.New("detection payload has no segments")
)

// Remote-ID message segment labels as emitted by DragonSync.
const (
	segBasicID    = "Basic ID"
	segLocation   = "Location/Vector Message"
	segSelfID     = "Self-ID Message"
	segSystem     = "System Message"
	segOperatorID = "Operator ID Message"
)

type basicID struct {
	ID     string `json:"id"`
	IDType string `json:"id_type"`
	MAC    string `json:"MAC"`
	RSSI   *int   `json:"RSSI"`
}

type locationVector struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Speed            float64 `json:"speed"`
	Direction        float64 `json:"direction"`
	GeodeticAltitude float64 `json:"geodetic_altitude"`
	HeightAGL        float64 `json:"height_agl"`
}

type selfID struct {
	Text string `json:"text"`
}

// systemSegment carries the operator-side coordinates: latitude/longitude
// locate the pilot, home_lat/home_lon the takeoff point.
type systemSegment struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	HomeLat   float64 `json:"home_lat"`
	HomeLon   float64 `json:"home_lon"`
}

type operatorID struct {
	OperatorID string `json:"operator_id"`
}

// detection is the flattened union of all segments seen in one payload.
type detection struct {
	serial   string
	caa      string
	mac      string
	rssi     *int
	loc      *locationVector
	selfText string
	sys      *systemSegment
	operator string
}

// Decoder turns raw detection payloads into event records. It owns the
// pending-registration buffer: a CAA registration id observed before the
// drone's serial id is known is parked under the hardware MAC and attached
// the moment a later payload carrying the same MAC reveals the serial id.
type Decoder struct {
	mu      sync.Mutex
	pending map[string]string
}

func NewDecoder() *Decoder {
	return &Decoder{
		pending: make(map[string]string),
	}
}

// PendingRegistrations reports how many registration ids are parked waiting
// for their serial id.
func (d *Decoder) PendingRegistrations() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}

// DecodeDetections parses one ZMQ detection payload, either a JSON array of
// single-segment objects or one object carrying all segments. It returns the
// drone event first, followed by pilot and home events when their
// coordinates are present.
func (d *Decoder) DecodeDetections(data []byte) ([]models.EventRecord, error) {
	det, err := parseSegments(data)
	if err != nil {
		return nil, err
	}

	droneID := det.droneIdentifier()
	if droneID == "" {
		return nil, errEmptyDetection
	}

	callsign := models.PrefixDrone + droneID
	registration := d.resolveRegistration(det)

	drone := models.EventRecord{
		Category:     models.CategoryDrone,
		UID:          callsign,
		Callsign:     callsign,
		RSSI:         det.rssi,
		MAC:          det.mac,
		Registration: registration,
		Description:  det.selfText,
	}

	if det.loc != nil {
		drone.Lat = det.loc.Latitude
		drone.Lon = det.loc.Longitude
		drone.Alt = det.loc.GeodeticAltitude
		drone.Speed = det.loc.Speed
		drone.Course = det.loc.Direction
	}

	events := []models.EventRecord{drone}

	if det.sys != nil {
		if det.sys.Latitude != 0 && det.sys.Longitude != 0 {
			pilot := models.PrefixPilot + droneID
			events = append(events, models.EventRecord{
				Category: models.CategoryPilot,
				UID:      pilot,
				Callsign: pilot,
				Lat:      det.sys.Latitude,
				Lon:      det.sys.Longitude,
			})
		}

		if det.sys.HomeLat != 0 && det.sys.HomeLon != 0 {
			home := models.PrefixHome + droneID
			events = append(events, models.EventRecord{
				Category: models.CategoryHome,
				UID:      home,
				Callsign: home,
				Lat:      det.sys.HomeLat,
				Lon:      det.sys.HomeLon,
			})
		}
	}

	return events, nil
}

// droneIdentifier picks the most durable id available: ANSI/CTA serial,
// then CAA registration, then the hardware MAC.
func (det *detection) droneIdentifier() string {
	switch {
	case det.serial != "":
		return det.serial
	case det.caa != "":
		return det.caa
	case det.mac != "":
		return det.mac
	default:
		return ""
	}
}

// resolveRegistration returns the registration id for this detection and
// maintains the pending buffer. Entries are removed the moment the serial id
// is learned; they never expire on their own.
func (d *Decoder) resolveRegistration(det *detection) string {
	reg := det.caa
	if reg == "" {
		reg = det.operator
	}

	if det.mac == "" {
		return reg
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if det.serial == "" {
		if reg != "" {
			d.pending[det.mac] = reg
		}

		return reg
	}

	if reg == "" {
		reg = d.pending[det.mac]
	}

	delete(d.pending, det.mac)

	return reg
}

func parseSegments(data []byte) (*detection, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errNoSegments
	}

	var segments []map[string]json.RawMessage

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &segments); err != nil {
			return nil, fmt.Errorf("failed to parse detection array: %w", err)
		}
	} else {
		var single map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("failed to parse detection object: %w", err)
		}

		segments = []map[string]json.RawMessage{single}
	}

	det := &detection{}

	for _, seg := range segments {
		for key, raw := range seg {
			if err := det.apply(key, raw); err != nil {
				return nil, err
			}
		}
	}

	return det, nil
}

// apply folds one labeled segment into the detection. Unrecognized labels
// are skipped so schema additions upstream stay harmless.
func (det *detection) apply(key string, raw json.RawMessage) error {
	switch key {
	case segBasicID:
		var b basicID
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("failed to parse %q segment: %w", key, err)
		}

		switch {
		case strings.Contains(b.IDType, "Serial"):
			det.serial = b.ID
		case strings.Contains(b.IDType, "CAA"):
			det.caa = b.ID
		}

		if b.MAC != "" {
			det.mac = b.MAC
		}

		if b.RSSI != nil {
			det.rssi = b.RSSI
		}
	case segLocation:
		var loc locationVector
		if err := json.Unmarshal(raw, &loc); err != nil {
			return fmt.Errorf("failed to parse %q segment: %w", key, err)
		}

		det.loc = &loc
	case segSelfID:
		var s selfID
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("failed to parse %q segment: %w", key, err)
		}

		det.selfText = s.Text
	case segSystem:
		var sys systemSegment
		if err := json.Unmarshal(raw, &sys); err != nil {
			return fmt.Errorf("failed to parse %q segment: %w", key, err)
		}

		det.sys = &sys
	case segOperatorID:
		var op operatorID
		if err := json.Unmarshal(raw, &op); err != nil {
			return fmt.Errorf("failed to parse %q segment: %w", key, err)
		}

		det.operator = op.OperatorID
	}

	return nil
}
