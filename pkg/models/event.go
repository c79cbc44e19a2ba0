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

// Package models defines the shared data model for the DragonSync bridge:
// the entity category taxonomy, the normalized telemetry event record, and
// the identifier shortening rules used on the mesh side.
package models

import "strings"

// Category classifies a tracked entity. Every inbound event resolves to
// exactly one category; CategoryUnknown is retained for visibility but is
// never rendered into mesh packets.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryDrone
	CategoryPilot
	CategoryHome
	CategorySystem
)

func (c Category) String() string {
	switch c {
	case CategoryDrone:
		return "drone"
	case CategoryPilot:
		return "pilot"
	case CategoryHome:
		return "home"
	case CategorySystem:
		return "system"
	case CategoryUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Callsign prefixes emitted by DragonSync. The prefix is the single place
// category information appears on the wire.
const (
	PrefixDrone  = "drone-"
	PrefixPilot  = "pilot-"
	PrefixHome   = "home-"
	PrefixSystem = "wardragon-"
)

// CategoryOf resolves the entity category from a callsign or UID prefix.
func CategoryOf(callsign string) Category {
	switch {
	case strings.HasPrefix(callsign, PrefixDrone):
		return CategoryDrone
	case strings.HasPrefix(callsign, PrefixPilot):
		return CategoryPilot
	case strings.HasPrefix(callsign, PrefixHome):
		return CategoryHome
	case strings.HasPrefix(callsign, PrefixSystem):
		return CategorySystem
	default:
		return CategoryUnknown
	}
}

const shortSuffixLen = 4

// ShortID derives the compact mesh identifier for a callsign: the recognized
// category prefix plus the last four characters of the remainder. Callsigns
// without a recognized prefix keep their last four characters. Distinct
// callsigns sharing a suffix map to the same identifier and coalesce
// last-writer-wins.
func ShortID(callsign string) string {
	for _, prefix := range []string{PrefixSystem, PrefixDrone, PrefixPilot, PrefixHome} {
		if strings.HasPrefix(callsign, prefix) {
			return prefix + lastN(callsign[len(prefix):], shortSuffixLen)
		}
	}

	return lastN(callsign, shortSuffixLen)
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}

// EventRecord is the normalized telemetry event produced by every source
// adapter. Position fields use degrees and meters; Speed is m/s. Aux fields
// (RSSI, MAC, Registration, Description) are populated only by the richer
// ZMQ feed; the CoT feed carries the same data inside Remarks.
type EventRecord struct {
	Category     Category
	UID          string
	Callsign     string
	Lat          float64
	Lon          float64
	Alt          float64
	Speed        float64
	Course       float64
	Remarks      string
	RSSI         *int
	MAC          string
	Registration string
	Description  string
}
