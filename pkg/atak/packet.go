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

// Package atak builds Meshtastic ATAK plugin payloads (TAKPacket protobuf)
// from normalized event records. Encoding is hand-rolled over protowire
// against the published field layout; zero-valued fields are omitted per
// proto3 semantics, which keeps packets small on the LoRa airlink.
package atak

import "google.golang.org/protobuf/encoding/protowire"

// TAKPacket field numbers.
const (
	takFieldContact = 2
	takFieldGroup   = 3
	takFieldPLI     = 5
	takFieldChat    = 6
)

// Contact field numbers.
const (
	contactFieldCallsign       = 1
	contactFieldDeviceCallsign = 2
)

// Group field numbers.
const (
	groupFieldRole = 1
	groupFieldTeam = 2
)

// PLI field numbers.
const (
	pliFieldLatitudeI  = 1
	pliFieldLongitudeI = 2
	pliFieldAltitude   = 3
	pliFieldSpeed      = 4
	pliFieldCourse     = 5
)

// GeoChat field numbers.
const (
	chatFieldMessage    = 1
	chatFieldTo         = 2
	chatFieldToCallsign = 3
)

// Team and MemberRole enum values stamped on every packet.
const (
	teamCyan       = 10
	roleTeamMember = 1
)

// pli mirrors the PLI message: fixed-point coordinates, integer altitude,
// clamped speed and course.
type pli struct {
	latitudeI  int32
	longitudeI int32
	altitude   int32
	speed      uint32
	course     uint32
}

func appendContact(b []byte, callsign, deviceCallsign string) []byte {
	var m []byte

	if callsign != "" {
		m = protowire.AppendTag(m, contactFieldCallsign, protowire.BytesType)
		m = protowire.AppendString(m, callsign)
	}

	if deviceCallsign != "" {
		m = protowire.AppendTag(m, contactFieldDeviceCallsign, protowire.BytesType)
		m = protowire.AppendString(m, deviceCallsign)
	}

	b = protowire.AppendTag(b, takFieldContact, protowire.BytesType)

	return protowire.AppendBytes(b, m)
}

func appendGroup(b []byte, role, team uint64) []byte {
	var m []byte

	if role != 0 {
		m = protowire.AppendTag(m, groupFieldRole, protowire.VarintType)
		m = protowire.AppendVarint(m, role)
	}

	if team != 0 {
		m = protowire.AppendTag(m, groupFieldTeam, protowire.VarintType)
		m = protowire.AppendVarint(m, team)
	}

	b = protowire.AppendTag(b, takFieldGroup, protowire.BytesType)

	return protowire.AppendBytes(b, m)
}

func appendPLI(b []byte, p pli) []byte {
	var m []byte

	if p.latitudeI != 0 {
		m = protowire.AppendTag(m, pliFieldLatitudeI, protowire.Fixed32Type)
		m = protowire.AppendFixed32(m, uint32(p.latitudeI))
	}

	if p.longitudeI != 0 {
		m = protowire.AppendTag(m, pliFieldLongitudeI, protowire.Fixed32Type)
		m = protowire.AppendFixed32(m, uint32(p.longitudeI))
	}

	if p.altitude != 0 {
		m = protowire.AppendTag(m, pliFieldAltitude, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(int64(p.altitude)))
	}

	if p.speed != 0 {
		m = protowire.AppendTag(m, pliFieldSpeed, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(p.speed))
	}

	if p.course != 0 {
		m = protowire.AppendTag(m, pliFieldCourse, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(p.course))
	}

	b = protowire.AppendTag(b, takFieldPLI, protowire.BytesType)

	return protowire.AppendBytes(b, m)
}

func appendGeoChat(b []byte, message, to, toCallsign string) []byte {
	var m []byte

	if message != "" {
		m = protowire.AppendTag(m, chatFieldMessage, protowire.BytesType)
		m = protowire.AppendString(m, message)
	}

	if to != "" {
		m = protowire.AppendTag(m, chatFieldTo, protowire.BytesType)
		m = protowire.AppendString(m, to)
	}

	if toCallsign != "" {
		m = protowire.AppendTag(m, chatFieldToCallsign, protowire.BytesType)
		m = protowire.AppendString(m, toCallsign)
	}

	b = protowire.AppendTag(b, takFieldChat, protowire.BytesType)

	return protowire.AppendBytes(b, m)
}
