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

// Package throttle enforces per-entity minimum intervals between
// transmissions. Position and text packets are gated independently, so a
// drone's frequent position beacons never starve its status lines.
package throttle

import (
	"sync"
	"time"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

// Kind selects which of the two gates applies to a send.
type Kind uint8

const (
	KindPosition Kind = iota
	KindText
)

func (k Kind) String() string {
	if k == KindPosition {
		return "position"
	}

	return "text"
}

// Gate tracks the last successful gate passage per (kind, id). A denied
// check never mutates state: the window keeps running from the last allowed
// send, it is not pushed out by rejected attempts.
type Gate struct {
	mu       sync.Mutex
	lastSent map[Kind]map[string]time.Time
}

func NewGate() *Gate {
	return &Gate{
		lastSent: map[Kind]map[string]time.Time{
			KindPosition: make(map[string]time.Time),
			KindText:     make(map[string]time.Time),
		},
	}
}

// Allow reports whether a send of kind for id may proceed at now, recording
// now as the new window start only when it returns true. A first-ever send
// is always allowed.
func (g *Gate) Allow(kind Kind, id string, now time.Time, interval time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastSent[kind][id]
	if seen && now.Sub(last) < interval {
		return false
	}

	g.lastSent[kind][id] = now

	return true
}

// IntervalPolicy resolves the minimum send interval per category. Drones
// move fast and get the tightest position cadence; ground-side entities only
// need an occasional refresh.
type IntervalPolicy struct {
	PositionDrone   time.Duration
	PositionDefault time.Duration
	TextDrone       time.Duration
	TextSystem      time.Duration
	TextDefault     time.Duration
}

func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{
		PositionDrone:   5 * time.Second,
		PositionDefault: 60 * time.Second,
		TextDrone:       10 * time.Second,
		TextSystem:      10 * time.Second,
		TextDefault:     30 * time.Second,
	}
}

// Position returns the minimum interval between position packets for a
// category.
func (p IntervalPolicy) Position(cat models.Category) time.Duration {
	if cat == models.CategoryDrone {
		return p.PositionDrone
	}

	return p.PositionDefault
}

// Text returns the minimum interval between text packets for a category.
func (p IntervalPolicy) Text(cat models.Category) time.Duration {
	switch cat {
	case models.CategoryDrone:
		return p.TextDrone
	case models.CategorySystem:
		return p.TextSystem
	default:
		return p.TextDefault
	}
}
