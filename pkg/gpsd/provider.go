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

// Package gpsd supplies the detector's position: a thin client over a local
// gpsd daemon that caches the most recent TPV fix. Stationary installs read
// one fix at startup and run on a static location afterwards.
package gpsd

import (
	"context"
	"fmt"
	"sync"

	gpsdclient "github.com/stratoberry/go-gpsd"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
)

// Config holds the gpsd connection settings.
type Config struct {
	// Address is the gpsd daemon in host:port form, default localhost:2947.
	Address string `json:"address,omitempty"`
	// Stationary reads the position once at startup instead of watching.
	Stationary bool `json:"stationary,omitempty"`
}

// LocationSource yields the current position for event enrichment.
type LocationSource interface {
	Location() (lat, lon float64)
}

// StaticLocation is a fixed position for stationary installs.
type StaticLocation struct {
	Lat float64
	Lon float64
}

func (s StaticLocation) Location() (float64, float64) { return s.Lat, s.Lon }

// Provider watches a gpsd daemon and caches the latest fix. Location returns
// zeroes until the first 2D fix arrives, mirroring a cold receiver.
type Provider struct {
	session *gpsdclient.Session
	logger  logger.Logger

	mu  sync.RWMutex
	lat float64
	lon float64

	firstFix chan struct{}
	fixOnce  sync.Once
}

// Dial connects to gpsd and starts watching TPV reports in the background.
func Dial(config Config, log logger.Logger) (*Provider, error) {
	address := config.Address
	if address == "" {
		address = gpsdclient.DefaultAddress
	}

	session, err := gpsdclient.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gpsd at %s: %w", address, err)
	}

	p := newProvider(log)
	p.session = session

	session.AddFilter("TPV", p.handleTPV)
	session.Watch()

	log.Info().Str("address", address).Msg("Connected to gpsd")

	return p, nil
}

func newProvider(log logger.Logger) *Provider {
	return &Provider{
		logger:   log,
		firstFix: make(chan struct{}),
	}
}

func (p *Provider) handleTPV(report interface{}) {
	tpv, ok := report.(*gpsdclient.TPVReport)
	if !ok {
		return
	}

	// Reports without at least a 2D fix carry no usable coordinates.
	if tpv.Mode < gpsdclient.Mode2D {
		return
	}

	p.mu.Lock()
	p.lat = tpv.Lat
	p.lon = tpv.Lon
	p.mu.Unlock()

	p.fixOnce.Do(func() { close(p.firstFix) })

	p.logger.Debug().Float64("lat", tpv.Lat).Float64("lon", tpv.Lon).Msg("GPS fix updated")
}

// Location returns the latest cached fix, zeroes before the first one.
func (p *Provider) Location() (lat, lon float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lat, p.lon
}

// WaitForFix blocks until the first fix arrives or ctx expires. Stationary
// installs call this once at startup, cache the result, and close the
// provider.
func (p *Provider) WaitForFix(ctx context.Context) error {
	select {
	case <-p.firstFix:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from gpsd.
func (p *Provider) Close() error {
	if p.session == nil {
		return nil
	}

	return p.session.Close()
}
