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

package atak

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

// ErrUnknownCategory marks records that must never leave the box as packets.
var ErrUnknownCategory = errors.New("unknown-category record is not transmittable")

const (
	maxCallsignLen = 120
	maxMessageLen  = 256

	// GeoChat packets go to the broadcast conversation.
	allChatRooms = "All Chat Rooms"

	// Fixed-point coordinate scale: 1e-7 degree resolution.
	coordScale = 1e7
)

// BuildPosition serializes a PLI TAKPacket for the record. Drones keep their
// full callsign so operators see a persistent value across sightings; every
// other category is displayed in shortened form.
func BuildPosition(rec models.EventRecord) ([]byte, error) {
	if rec.Category == models.CategoryUnknown {
		return nil, ErrUnknownCategory
	}

	callsign := models.ShortID(rec.Callsign)
	if rec.Category == models.CategoryDrone {
		callsign = rec.Callsign
	}

	callsign = truncate(callsign, maxCallsignLen)

	var b []byte
	b = appendContact(b, callsign, callsign)
	b = appendGroup(b, roleTeamMember, teamCyan)
	b = appendPLI(b, pli{
		latitudeI:  EncodeCoordinate(rec.Lat),
		longitudeI: EncodeCoordinate(rec.Lon),
		altitude:   int32(rec.Alt),
		speed:      ClampUint16(rec.Speed),
		course:     ClampUint16(rec.Course),
	})

	return b, nil
}

// BuildText serializes a GeoChat TAKPacket whose message line depends on the
// category: WarDragon health metrics for system records, signal and hardware
// identity for drones, the bare identifier for pilot and home markers.
func BuildText(rec models.EventRecord) ([]byte, error) {
	if rec.Category == models.CategoryUnknown {
		return nil, ErrUnknownCategory
	}

	short := models.ShortID(rec.Callsign)

	var message string

	switch rec.Category {
	case models.CategorySystem:
		m := ExtractSystemMetrics(rec.Remarks)
		message = fmt.Sprintf("%s | CPU: %s%% | Temp: %s°C | Pluto: %s | Zynq: %s",
			short, m.CPU, m.Temperature, m.Pluto, m.Zynq)
	case models.CategoryDrone:
		rssi, mac := droneSignal(rec)
		message = fmt.Sprintf("%s | RSSI: %sdBm | MAC: %s", short, rssi, mac)

		if rec.Registration != "" {
			message += " | Reg: " + rec.Registration
		}
	default:
		message = short
	}

	short = truncate(short, maxCallsignLen)

	var b []byte
	b = appendContact(b, short, short)
	b = appendGroup(b, roleTeamMember, teamCyan)
	b = appendGeoChat(b, truncate(message, maxMessageLen),
		truncate(allChatRooms, maxCallsignLen), truncate(allChatRooms, maxCallsignLen))

	return b, nil
}

// droneSignal prefers the structured fields the ZMQ feed fills in and falls
// back to remarks extraction for the CoT feed.
func droneSignal(rec models.EventRecord) (rssi, mac string) {
	rssi, mac = ExtractDroneSignal(rec.Remarks)

	if rec.RSSI != nil {
		rssi = strconv.Itoa(*rec.RSSI)
	}

	if rec.MAC != "" {
		mac = rec.MAC
	}

	return rssi, mac
}

// EncodeCoordinate converts degrees to the PLI fixed-point form,
// round(deg × 1e7).
func EncodeCoordinate(deg float64) int32 {
	return int32(math.Round(deg * coordScale))
}

// ClampUint16 clamps a value to [0, 65535] so malformed upstream speed or
// course data cannot corrupt the wire encoding. Clamping is idempotent.
func ClampUint16(v float64) uint32 {
	if v < 0 {
		return 0
	}

	if v > math.MaxUint16 {
		return math.MaxUint16
	}

	return uint32(v)
}

// truncate cuts s to at most n bytes. The cut is byte-count, not word-aware.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
