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

package throttle

import (
	"testing"
	"time"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestAllowFirstSendAlways(t *testing.T) {
	g := NewGate()
	now := time.Now()

	assert.True(t, g.Allow(KindPosition, "drone-2039", now, 5*time.Second))
	assert.True(t, g.Allow(KindText, "drone-2039", now, 10*time.Second))
}

func TestAllowEnforcesWindow(t *testing.T) {
	g := NewGate()
	base := time.Now()
	interval := 10 * time.Second

	// Allowed at t=0, denied until the window elapses, allowed again after.
	assert.True(t, g.Allow(KindText, "wardragon-18a2", base, interval))
	assert.False(t, g.Allow(KindText, "wardragon-18a2", base.Add(3*time.Second), interval))
	assert.False(t, g.Allow(KindText, "wardragon-18a2", base.Add(9*time.Second), interval))
	assert.True(t, g.Allow(KindText, "wardragon-18a2", base.Add(10*time.Second), interval))
}

func TestDeniedChecksDoNotResetWindow(t *testing.T) {
	g := NewGate()
	base := time.Now()
	interval := 10 * time.Second

	assert.True(t, g.Allow(KindText, "drone-2039", base, interval))

	// Hammer the gate every second; denials must not push the window out.
	for s := 1; s <= 9; s++ {
		assert.False(t, g.Allow(KindText, "drone-2039", base.Add(time.Duration(s)*time.Second), interval))
	}

	assert.True(t, g.Allow(KindText, "drone-2039", base.Add(10*time.Second), interval))
}

func TestKindsGateIndependently(t *testing.T) {
	g := NewGate()
	base := time.Now()

	assert.True(t, g.Allow(KindPosition, "drone-2039", base, 5*time.Second))

	// Position passage must not consume the text window.
	assert.True(t, g.Allow(KindText, "drone-2039", base, 10*time.Second))

	// And vice versa: a denied text check leaves position gating intact.
	assert.False(t, g.Allow(KindText, "drone-2039", base.Add(time.Second), 10*time.Second))
	assert.False(t, g.Allow(KindPosition, "drone-2039", base.Add(time.Second), 5*time.Second))
	assert.True(t, g.Allow(KindPosition, "drone-2039", base.Add(5*time.Second), 5*time.Second))
}

func TestIdsGateIndependently(t *testing.T) {
	g := NewGate()
	base := time.Now()

	assert.True(t, g.Allow(KindPosition, "drone-AAAA", base, 5*time.Second))
	assert.True(t, g.Allow(KindPosition, "drone-BBBB", base, 5*time.Second))
	assert.False(t, g.Allow(KindPosition, "drone-AAAA", base.Add(time.Second), 5*time.Second))
}

func TestIntervalPolicy(t *testing.T) {
	p := DefaultIntervalPolicy()

	tests := []struct {
		name     string
		category models.Category
		position time.Duration
		text     time.Duration
	}{
		{name: "drone", category: models.CategoryDrone, position: 5 * time.Second, text: 10 * time.Second},
		{name: "system", category: models.CategorySystem, position: 60 * time.Second, text: 10 * time.Second},
		{name: "pilot", category: models.CategoryPilot, position: 60 * time.Second, text: 30 * time.Second},
		{name: "home", category: models.CategoryHome, position: 60 * time.Second, text: 30 * time.Second},
		{name: "unknown", category: models.CategoryUnknown, position: 60 * time.Second, text: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.position, p.Position(tt.category))
			assert.Equal(t, tt.text, p.Text(tt.category))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "position", KindPosition.String())
	assert.Equal(t, "text", KindText.String())
}
