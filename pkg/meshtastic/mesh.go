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

package meshtastic

import "google.golang.org/protobuf/encoding/protowire"

// Data field numbers (mesh.proto).
const (
	dataFieldPortnum = 1
	dataFieldPayload = 2
)

// MeshPacket field numbers.
const (
	packetFieldTo       = 2
	packetFieldChannel  = 3
	packetFieldDecoded  = 4
	packetFieldID       = 6
	packetFieldHopLimit = 9
	packetFieldWantAck  = 10
)

// ToRadio field numbers.
const (
	toRadioFieldPacket       = 1
	toRadioFieldWantConfigID = 3
)

// portATAKPlugin is the Meshtastic application port carrying TAKPacket
// payloads.
const portATAKPlugin = 72

// broadcastAddr addresses every node on the mesh.
const broadcastAddr = 0xFFFFFFFF

func encodeData(portnum uint64, payload []byte) []byte {
	var m []byte

	m = protowire.AppendTag(m, dataFieldPortnum, protowire.VarintType)
	m = protowire.AppendVarint(m, portnum)
	m = protowire.AppendTag(m, dataFieldPayload, protowire.BytesType)
	m = protowire.AppendBytes(m, payload)

	return m
}

func encodeMeshPacket(id, channel, hopLimit uint32, wantAck bool, data []byte) []byte {
	var m []byte

	m = protowire.AppendTag(m, packetFieldTo, protowire.Fixed32Type)
	m = protowire.AppendFixed32(m, broadcastAddr)

	if channel != 0 {
		m = protowire.AppendTag(m, packetFieldChannel, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(channel))
	}

	m = protowire.AppendTag(m, packetFieldDecoded, protowire.BytesType)
	m = protowire.AppendBytes(m, data)

	m = protowire.AppendTag(m, packetFieldID, protowire.Fixed32Type)
	m = protowire.AppendFixed32(m, id)

	if hopLimit != 0 {
		m = protowire.AppendTag(m, packetFieldHopLimit, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(hopLimit))
	}

	if wantAck {
		m = protowire.AppendTag(m, packetFieldWantAck, protowire.VarintType)
		m = protowire.AppendVarint(m, 1)
	}

	return m
}

func encodeToRadioPacket(packet []byte) []byte {
	var m []byte

	m = protowire.AppendTag(m, toRadioFieldPacket, protowire.BytesType)
	m = protowire.AppendBytes(m, packet)

	return m
}

func encodeWantConfig(nonce uint32) []byte {
	var m []byte

	m = protowire.AppendTag(m, toRadioFieldWantConfigID, protowire.VarintType)
	m = protowire.AppendVarint(m, uint64(nonce))

	return m
}
