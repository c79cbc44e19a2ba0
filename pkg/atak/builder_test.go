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
	"math"
	"strings"
	"testing"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// decodedPacket mirrors the TAKPacket layout for wire verification.
type decodedPacket struct {
	callsign       string
	deviceCallsign string
	role           uint64
	team           uint64
	hasPLI         bool
	latitudeI      int32
	longitudeI     int32
	altitude       int64
	speed          uint64
	course         uint64
	hasChat        bool
	message        string
	to             string
	toCallsign     string
}

// decodePacket walks the serialized TAKPacket with protowire, failing the
// test on any malformed field.
func decodePacket(t *testing.T, b []byte) decodedPacket {
	t.Helper()

	var p decodedPacket

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0, "bad tag")
		b = b[n:]

		require.Equal(t, protowire.BytesType, typ, "TAKPacket top-level fields are messages")

		msg, n := protowire.ConsumeBytes(b)
		require.GreaterOrEqual(t, n, 0, "bad length delimiter")
		b = b[n:]

		switch num {
		case takFieldContact:
			p.callsign, p.deviceCallsign = decodeContact(t, msg)
		case takFieldGroup:
			p.role, p.team = decodeGroup(t, msg)
		case takFieldPLI:
			p.hasPLI = true
			p.latitudeI, p.longitudeI, p.altitude, p.speed, p.course = decodePLI(t, msg)
		case takFieldChat:
			p.hasChat = true
			p.message, p.to, p.toCallsign = decodeChat(t, msg)
		default:
			t.Fatalf("unexpected TAKPacket field %d", num)
		}
	}

	return p
}

func decodeContact(t *testing.T, b []byte) (callsign, deviceCallsign string) {
	t.Helper()

	for len(b) > 0 {
		num, _, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		s, n := protowire.ConsumeString(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		switch num {
		case contactFieldCallsign:
			callsign = s
		case contactFieldDeviceCallsign:
			deviceCallsign = s
		}
	}

	return callsign, deviceCallsign
}

func decodeGroup(t *testing.T, b []byte) (role, team uint64) {
	t.Helper()

	for len(b) > 0 {
		num, _, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		v, n := protowire.ConsumeVarint(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		switch num {
		case groupFieldRole:
			role = v
		case groupFieldTeam:
			team = v
		}
	}

	return role, team
}

func decodePLI(t *testing.T, b []byte) (latI, lonI int32, alt int64, speed, course uint64) {
	t.Helper()

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		switch num {
		case pliFieldLatitudeI, pliFieldLongitudeI:
			require.Equal(t, protowire.Fixed32Type, typ, "coordinates are sfixed32")

			v, n := protowire.ConsumeFixed32(b)
			require.GreaterOrEqual(t, n, 0)
			b = b[n:]

			if num == pliFieldLatitudeI {
				latI = int32(v)
			} else {
				lonI = int32(v)
			}
		default:
			v, n := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, n, 0)
			b = b[n:]

			switch num {
			case pliFieldAltitude:
				alt = int64(v)
			case pliFieldSpeed:
				speed = v
			case pliFieldCourse:
				course = v
			}
		}
	}

	return latI, lonI, alt, speed, course
}

func decodeChat(t *testing.T, b []byte) (message, to, toCallsign string) {
	t.Helper()

	for len(b) > 0 {
		num, _, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		s, n := protowire.ConsumeString(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		switch num {
		case chatFieldMessage:
			message = s
		case chatFieldTo:
			to = s
		case chatFieldToCallsign:
			toCallsign = s
		}
	}

	return message, to, toCallsign
}

func TestBuildPositionDrone(t *testing.T) {
	rec := models.EventRecord{
		Category: models.CategoryDrone,
		Callsign: "drone-1581F5FLD2429E302039",
		Lat:      47.1,
		Lon:      -122.2,
		Alt:      50.9,
		Speed:    12.5,
		Course:   90.0,
	}

	b, err := BuildPosition(rec)
	require.NoError(t, err)

	p := decodePacket(t, b)
	require.True(t, p.hasPLI)
	assert.False(t, p.hasChat)

	// Drones keep the full callsign for persistence across sightings.
	assert.Equal(t, "drone-1581F5FLD2429E302039", p.callsign)
	assert.Equal(t, p.callsign, p.deviceCallsign)

	assert.Equal(t, int32(471000000), p.latitudeI)
	assert.Equal(t, int32(-1222000000), p.longitudeI)
	assert.Equal(t, int64(50), p.altitude, "altitude truncates to whole meters")
	assert.Equal(t, uint64(12), p.speed)
	assert.Equal(t, uint64(90), p.course)

	assert.Equal(t, uint64(roleTeamMember), p.role)
	assert.Equal(t, uint64(teamCyan), p.team)
}

func TestBuildPositionShortensNonDroneCallsign(t *testing.T) {
	rec := models.EventRecord{
		Category: models.CategorySystem,
		Callsign: "wardragon-00e04c3618a2",
		Lat:      1,
		Lon:      2,
	}

	b, err := BuildPosition(rec)
	require.NoError(t, err)

	p := decodePacket(t, b)
	assert.Equal(t, "wardragon-18a2", p.callsign)
}

func TestBuildPositionClampsSpeedAndCourse(t *testing.T) {
	rec := models.EventRecord{
		Category: models.CategoryDrone,
		Callsign: "drone-X",
		Lat:      1,
		Lon:      2,
		Speed:    -40,
		Course:   1e9,
	}

	b, err := BuildPosition(rec)
	require.NoError(t, err)

	p := decodePacket(t, b)
	assert.Equal(t, uint64(0), p.speed)
	assert.Equal(t, uint64(math.MaxUint16), p.course)
}

func TestBuildPositionRejectsUnknown(t *testing.T) {
	_, err := BuildPosition(models.EventRecord{Category: models.CategoryUnknown, Callsign: "SENTRY-7"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestBuildTextSystem(t *testing.T) {
	rec := models.EventRecord{
		Category: models.CategorySystem,
		Callsign: "wardragon-00e04c3618a2",
		Remarks:  "CPU Usage: 42.5% Temp: 38.1°C Pluto: 0.72/1.0 Zynq: N/A",
	}

	b, err := BuildText(rec)
	require.NoError(t, err)

	p := decodePacket(t, b)
	require.True(t, p.hasChat)
	assert.False(t, p.hasPLI)

	assert.Contains(t, p.message, "CPU: 42.5%")
	assert.Contains(t, p.message, "Temp: 38.1°C")
	assert.Contains(t, p.message, "Pluto: 0.72/1.0")
	assert.Contains(t, p.message, "Zynq: N/A")
	assert.True(t, strings.HasPrefix(p.message, "wardragon-18a2 | "))

	assert.Equal(t, "All Chat Rooms", p.to)
	assert.Equal(t, "All Chat Rooms", p.toCallsign)
}

func TestBuildTextDrone(t *testing.T) {
	rssi := -75
	rec := models.EventRecord{
		Category:     models.CategoryDrone,
		Callsign:     "drone-1581F5FLD2429E302039",
		RSSI:         &rssi,
		MAC:          "aa:bb:cc:dd:ee:ff",
		Registration: "FIN87astrdge12k8",
	}

	b, err := BuildText(rec)
	require.NoError(t, err)

	p := decodePacket(t, b)
	assert.Equal(t, "drone-2039 | RSSI: -75dBm | MAC: aa:bb:cc:dd:ee:ff | Reg: FIN87astrdge12k8", p.message)
}

func TestBuildTextDroneFallsBackToRemarks(t *testing.T) {
	rec := models.EventRecord{
		Category: models.CategoryDrone,
		Callsign: "drone-ABCD",
		Remarks:  "RSSI: -60dBm MAC: 11:22:33:44:55:66",
	}

	b, err := BuildText(rec)
	require.NoError(t, err)

	p := decodePacket(t, b)
	assert.Equal(t, "drone-ABCD | RSSI: -60dBm | MAC: 11:22:33:44:55:66", p.message)
}

func TestBuildTextPilotAndHome(t *testing.T) {
	for _, rec := range []models.EventRecord{
		{Category: models.CategoryPilot, Callsign: "pilot-1581F5FLD2429E302039"},
		{Category: models.CategoryHome, Callsign: "home-1581F5FLD2429E302039"},
	} {
		b, err := BuildText(rec)
		require.NoError(t, err)

		p := decodePacket(t, b)
		assert.Equal(t, models.ShortID(rec.Callsign), p.message)
	}
}

func TestBuildTextRejectsUnknown(t *testing.T) {
	_, err := BuildText(models.EventRecord{Category: models.CategoryUnknown, Callsign: "SENTRY-7"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestBuildTextTruncatesLongMessage(t *testing.T) {
	rec := models.EventRecord{
		Category:     models.CategoryDrone,
		Callsign:     "drone-LONG",
		Registration: strings.Repeat("R", 400),
	}

	b, err := BuildText(rec)
	require.NoError(t, err)

	p := decodePacket(t, b)
	assert.Len(t, p.message, maxMessageLen)
}

func TestEncodeCoordinateRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 47.1, -122.2, 89.9999999, -89.9999999, 179.9999999, -179.9999999} {
		enc := EncodeCoordinate(deg)
		back := float64(enc) / coordScale
		assert.InDelta(t, deg, back, 1e-7, "deg=%v", deg)
	}
}

func TestClampUint16Idempotent(t *testing.T) {
	for _, v := range []float64{-1e12, -1, 0, 1, 65534, 65535, 65536, 1e12} {
		once := ClampUint16(v)
		twice := ClampUint16(float64(once))
		assert.Equal(t, once, twice, "v=%v", v)
		assert.LessOrEqual(t, once, uint32(math.MaxUint16))
	}
}
