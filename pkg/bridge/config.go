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

package bridge

import (
	"time"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/ingest"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/meshtastic"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/throttle"
)

const (
	defaultTickInterval = time.Second
	defaultStaleAfter   = 300 * time.Second
)

// Config is the bridge daemon configuration: radio transport, listener
// endpoints, and scheduler tunables.
type Config struct {
	Radio meshtastic.Config        `json:"radio,omitempty"`
	CoT   ingest.CoTListenerConfig `json:"cot,omitempty"`

	// DetectionsEndpoint and StatusEndpoint select the ZMQ feeds; empty
	// falls back to the ingest defaults.
	DetectionsEndpoint string `json:"detections_endpoint,omitempty"`
	StatusEndpoint     string `json:"status_endpoint,omitempty"`

	TickInterval models.Duration `json:"tick_interval,omitempty"`
	StaleAfter   models.Duration `json:"stale_after,omitempty"`

	PositionDroneInterval   models.Duration `json:"position_drone_interval,omitempty"`
	PositionDefaultInterval models.Duration `json:"position_default_interval,omitempty"`
	TextDroneInterval       models.Duration `json:"text_drone_interval,omitempty"`
	TextSystemInterval      models.Duration `json:"text_system_interval,omitempty"`
	TextDefaultInterval     models.Duration `json:"text_default_interval,omitempty"`

	// MetricsAddr enables the Prometheus /metrics endpoint when set,
	// e.g. ":9090".
	MetricsAddr string `json:"metrics_addr,omitempty"`

	Logging *logger.Config `json:"logging,omitempty"`
}

// Validate fills in defaults.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		c.TickInterval = models.Duration(defaultTickInterval)
	}

	if c.StaleAfter <= 0 {
		c.StaleAfter = models.Duration(defaultStaleAfter)
	}

	defaults := throttle.DefaultIntervalPolicy()

	if c.PositionDroneInterval <= 0 {
		c.PositionDroneInterval = models.Duration(defaults.PositionDrone)
	}

	if c.PositionDefaultInterval <= 0 {
		c.PositionDefaultInterval = models.Duration(defaults.PositionDefault)
	}

	if c.TextDroneInterval <= 0 {
		c.TextDroneInterval = models.Duration(defaults.TextDrone)
	}

	if c.TextSystemInterval <= 0 {
		c.TextSystemInterval = models.Duration(defaults.TextSystem)
	}

	if c.TextDefaultInterval <= 0 {
		c.TextDefaultInterval = models.Duration(defaults.TextDefault)
	}

	return nil
}

// intervalPolicy maps the configured intervals onto the throttle policy.
func (c *Config) intervalPolicy() throttle.IntervalPolicy {
	return throttle.IntervalPolicy{
		PositionDrone:   time.Duration(c.PositionDroneInterval),
		PositionDefault: time.Duration(c.PositionDefaultInterval),
		TextDrone:       time.Duration(c.TextDroneInterval),
		TextSystem:      time.Duration(c.TextSystemInterval),
		TextDefault:     time.Duration(c.TextDefaultInterval),
	}
}
