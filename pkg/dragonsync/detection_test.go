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

package dragonsync

import (
	"testing"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullDetection = `[
  {"Basic ID": {"id": "1581F5FLD2429E302039", "id_type": "Serial Number (ANSI/CTA-2063-A)", "MAC": "aa:bb:cc:dd:ee:ff", "RSSI": -75}},
  {"Basic ID": {"id": "FIN87astrdge12k8", "id_type": "CAA Assigned Registration ID"}},
  {"Location/Vector Message": {"latitude": 47.1, "longitude": -122.2, "speed": 12.5, "direction": 90.0, "geodetic_altitude": 50.0, "height_agl": 30.0}},
  {"Self-ID Message": {"text": "Photography flight"}},
  {"System Message": {"latitude": 47.0, "longitude": -122.1, "home_lat": 47.05, "home_lon": -122.15}},
  {"Operator ID Message": {"operator_id": "OP-12345"}}
]`

func TestDecodeDetectionsFanOut(t *testing.T) {
	d := NewDecoder()

	events, err := d.DecodeDetections([]byte(fullDetection))
	require.NoError(t, err)
	require.Len(t, events, 3)

	drone := events[0]
	assert.Equal(t, models.CategoryDrone, drone.Category)
	assert.Equal(t, "drone-1581F5FLD2429E302039", drone.Callsign)
	assert.InDelta(t, 47.1, drone.Lat, 1e-9)
	assert.InDelta(t, -122.2, drone.Lon, 1e-9)
	assert.InDelta(t, 50.0, drone.Alt, 1e-9)
	assert.InDelta(t, 12.5, drone.Speed, 1e-9)
	assert.InDelta(t, 90.0, drone.Course, 1e-9)
	require.NotNil(t, drone.RSSI)
	assert.Equal(t, -75, *drone.RSSI)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", drone.MAC)
	assert.Equal(t, "FIN87astrdge12k8", drone.Registration)
	assert.Equal(t, "Photography flight", drone.Description)

	pilot := events[1]
	assert.Equal(t, models.CategoryPilot, pilot.Category)
	assert.Equal(t, "pilot-1581F5FLD2429E302039", pilot.Callsign)
	assert.InDelta(t, 47.0, pilot.Lat, 1e-9)

	home := events[2]
	assert.Equal(t, models.CategoryHome, home.Category)
	assert.Equal(t, "home-1581F5FLD2429E302039", home.Callsign)
	assert.InDelta(t, 47.05, home.Lat, 1e-9)

	// Pilot and home share the drone's short suffix for correlation.
	assert.Equal(t, "drone-2039", models.ShortID(drone.Callsign))
	assert.Equal(t, "pilot-2039", models.ShortID(pilot.Callsign))
	assert.Equal(t, "home-2039", models.ShortID(home.Callsign))
}

func TestDecodeDetectionsSingleObject(t *testing.T) {
	d := NewDecoder()

	payload := `{"Basic ID": {"id": "1581F5FLD2429E302039", "id_type": "Serial Number (ANSI/CTA-2063-A)"},
		"Location/Vector Message": {"latitude": 1.5, "longitude": 2.5, "geodetic_altitude": 100}}`

	events, err := d.DecodeDetections([]byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "drone-1581F5FLD2429E302039", events[0].Callsign)
	assert.InDelta(t, 1.5, events[0].Lat, 1e-9)
}

func TestDecodeDetectionsZeroCoordinatesSuppressPilotHome(t *testing.T) {
	d := NewDecoder()

	payload := `[
	  {"Basic ID": {"id": "ABC123", "id_type": "Serial Number (ANSI/CTA-2063-A)"}},
	  {"System Message": {"latitude": 0, "longitude": 0, "home_lat": 0, "home_lon": 0}}
	]`

	events, err := d.DecodeDetections([]byte(payload))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPendingRegistrationAttachedWhenSerialLearned(t *testing.T) {
	d := NewDecoder()

	// CAA registration arrives before the serial id is known.
	caaOnly := `[{"Basic ID": {"id": "FIN87astrdge12k8", "id_type": "CAA Assigned Registration ID", "MAC": "aa:bb:cc:dd:ee:ff"}}]`

	events, err := d.DecodeDetections([]byte(caaOnly))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "drone-FIN87astrdge12k8", events[0].Callsign)
	assert.Equal(t, "FIN87astrdge12k8", events[0].Registration)
	assert.Equal(t, 1, d.PendingRegistrations())

	// A later payload on the same MAC reveals the serial id; the parked
	// registration is attached and the buffer entry removed.
	serialOnly := `[{"Basic ID": {"id": "1581F5FLD2429E302039", "id_type": "Serial Number (ANSI/CTA-2063-A)", "MAC": "aa:bb:cc:dd:ee:ff"}}]`

	events, err = d.DecodeDetections([]byte(serialOnly))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "drone-1581F5FLD2429E302039", events[0].Callsign)
	assert.Equal(t, "FIN87astrdge12k8", events[0].Registration)
	assert.Equal(t, 0, d.PendingRegistrations())
}

func TestOperatorIDUsedWhenNoCAARegistration(t *testing.T) {
	d := NewDecoder()

	payload := `[
	  {"Basic ID": {"id": "ABC123", "id_type": "Serial Number (ANSI/CTA-2063-A)"}},
	  {"Operator ID Message": {"operator_id": "OP-9"}}
	]`

	events, err := d.DecodeDetections([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "OP-9", events[0].Registration)
}

func TestDecodeDetectionsMACFallbackIdentifier(t *testing.T) {
	d := NewDecoder()

	payload := `[{"Basic ID": {"MAC": "aa:bb:cc:dd:ee:ff"}}]`

	events, err := d.DecodeDetections([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "drone-aa:bb:cc:dd:ee:ff", events[0].Callsign)
}

func TestDecodeDetectionsErrors(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty payload", payload: ""},
		{name: "not json", payload: "<xml/>"},
		{name: "no identifier", payload: `[{"Location/Vector Message": {"latitude": 1}}]`},
		{name: "malformed segment", payload: `[{"Basic ID": "not-an-object"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.DecodeDetections([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestDecodeStatus(t *testing.T) {
	payload := `{
	  "serial_number": "wardragon-00e04c3618a2",
	  "gps_data": {"latitude": 47.0, "longitude": -122.0, "altitude": 110.0, "speed": 0.4},
	  "system_stats": {"cpu_usage": 42.5, "temperature": 38.1},
	  "ant_sdr_temps": {"pluto_temp": 45.2, "zynq_temp": "N/A"}
	}`

	rec, err := DecodeStatus([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, models.CategorySystem, rec.Category)
	assert.Equal(t, "wardragon-00e04c3618a2", rec.Callsign)
	assert.InDelta(t, 47.0, rec.Lat, 1e-9)
	assert.InDelta(t, 110.0, rec.Alt, 1e-9)
	assert.Equal(t, "CPU Usage: 42.5% Temperature: 38.1°C Pluto Temp: 45.2 Zynq Temp: N/A", rec.Remarks)
}

func TestDecodeStatusMissingTempsUseSentinel(t *testing.T) {
	payload := `{"serial_number": "wardragon-18a2", "system_stats": {"cpu_usage": 10.0, "temperature": 30.0}}`

	rec, err := DecodeStatus([]byte(payload))
	require.NoError(t, err)
	assert.Contains(t, rec.Remarks, "Pluto Temp: N/A")
	assert.Contains(t, rec.Remarks, "Zynq Temp: N/A")
}

func TestDecodeStatusErrors(t *testing.T) {
	_, err := DecodeStatus([]byte(`{}`))
	assert.Error(t, err)

	_, err = DecodeStatus([]byte(`not json`))
	assert.Error(t, err)
}
