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

import "regexp"

// NotAvailable is substituted for every metric the remarks text does not
// carry. Extraction is total: missing or reordered fields yield the
// sentinel, never an error.
const NotAvailable = "N/A"

// Label forms vary between WarDragon firmware revisions ("Temp:" vs
// "Temperature:", "Pluto:" vs "Pluto Temp:" vs "AD936X Temp:"), so the
// patterns accept all of them. The board temperature requires the °C unit so
// it never captures an SDR subsystem reading.
var (
	cpuPattern   = regexp.MustCompile(`CPU Usage:\s*([\d.]+)%`)
	tempPattern  = regexp.MustCompile(`Temp(?:erature)?:\s*([\d.]+)\s*°C`)
	plutoPattern = regexp.MustCompile(`(?:Pluto|AD936X)(?:\s+Temp)?:\s*([\w./-]+)`)
	zynqPattern  = regexp.MustCompile(`Zynq(?:\s+Temp)?:\s*([\w./-]+)`)

	rssiPattern = regexp.MustCompile(`RSSI:?\s*(-?\d+)\s*dBm`)
	macPattern  = regexp.MustCompile(`MAC:\s*([0-9A-Fa-f:]+)`)
)

// SystemMetrics are the health readings pulled out of a WarDragon status
// remarks line.
type SystemMetrics struct {
	CPU         string
	Temperature string
	Pluto       string
	Zynq        string
}

// ExtractSystemMetrics scans free-text remarks for the WarDragon health
// fields.
func ExtractSystemMetrics(remarks string) SystemMetrics {
	return SystemMetrics{
		CPU:         matchOr(cpuPattern, remarks),
		Temperature: matchOr(tempPattern, remarks),
		Pluto:       matchOr(plutoPattern, remarks),
		Zynq:        matchOr(zynqPattern, remarks),
	}
}

// ExtractDroneSignal scans remarks for the RSSI and hardware MAC a CoT drone
// event carries as text.
func ExtractDroneSignal(remarks string) (rssi, mac string) {
	return matchOr(rssiPattern, remarks), matchOr(macPattern, remarks)
}

func matchOr(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return NotAvailable
	}

	return m[1]
}
