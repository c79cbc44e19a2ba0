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

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoSerialPort is returned when auto-detection finds no candidate device.
var ErrNoSerialPort = errors.New("no candidate serial port found")

// DetectPort returns the first plausible Meshtastic device node. USB CDC
// ports (ttyACM, ttyUSB) are preferred; any other USB serial port is a
// fallback for platforms that name them differently.
func DetectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	for _, p := range ports {
		if !p.IsUSB {
			continue
		}

		if strings.Contains(p.Name, "ttyACM") || strings.Contains(p.Name, "ttyUSB") {
			return p.Name, nil
		}
	}

	for _, p := range ports {
		if p.IsUSB {
			return p.Name, nil
		}
	}

	return "", ErrNoSerialPort
}
