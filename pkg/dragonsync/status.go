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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

var errMissingSerialNumber = errors.New("status payload has no serial_number")

// statusMessage is the WarDragon health report published on the status
// endpoint. The SDR temperatures arrive untyped because the monitor sends a
// number when the sensor answers and the string "N/A" when it does not.
type statusMessage struct {
	SerialNumber string `json:"serial_number"`
	GPSData      struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Altitude  float64 `json:"altitude"`
		Speed     float64 `json:"speed"`
	} `json:"gps_data"`
	SystemStats struct {
		CPUUsage    float64 `json:"cpu_usage"`
		Temperature float64 `json:"temperature"`
	} `json:"system_stats"`
	ANTSDRTemps struct {
		PlutoTemp interface{} `json:"pluto_temp"`
		ZynqTemp  interface{} `json:"zynq_temp"`
	} `json:"ant_sdr_temps"`
}

// DecodeStatus parses a WarDragon status payload into a system event. The
// health metrics are folded into the remarks text in the canonical form the
// packet builder's extraction understands.
func DecodeStatus(data []byte) (models.EventRecord, error) {
	var st statusMessage

	if err := json.Unmarshal(data, &st); err != nil {
		return models.EventRecord{}, fmt.Errorf("failed to parse status payload: %w", err)
	}

	if st.SerialNumber == "" {
		return models.EventRecord{}, errMissingSerialNumber
	}

	remarks := fmt.Sprintf("CPU Usage: %.1f%% Temperature: %.1f°C Pluto Temp: %s Zynq Temp: %s",
		st.SystemStats.CPUUsage,
		st.SystemStats.Temperature,
		formatTemp(st.ANTSDRTemps.PlutoTemp),
		formatTemp(st.ANTSDRTemps.ZynqTemp))

	return models.EventRecord{
		Category: models.CategoryOf(st.SerialNumber),
		UID:      st.SerialNumber,
		Callsign: st.SerialNumber,
		Lat:      st.GPSData.Latitude,
		Lon:      st.GPSData.Longitude,
		Alt:      st.GPSData.Altitude,
		Speed:    st.GPSData.Speed,
		Remarks:  remarks,
	}, nil
}

const tempNotAvailable = "N/A"

// formatTemp renders an SDR temperature value that may be a JSON number, a
// string, or absent entirely.
func formatTemp(v interface{}) string {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf("%.1f", t)
	case string:
		if t == "" {
			return tempNotAvailable
		}

		return t
	default:
		return tempNotAvailable
	}
}
