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

// Package bridge is the coalescing scheduler at the center of the daemon.
// Listeners post normalized records into the registry through the bridge;
// once per tick the scheduler evicts stale entities, drains the registry,
// and sends position and text packets for whatever the throttle gates let
// through. Entries that produce no transmission are restored so their
// newest state is re-offered when a window reopens.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/atak"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/registry"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/throttle"
)

var errNilTransmitter = errors.New("bridge requires a transmitter")

// Bridge owns the registry and the throttle state and runs the scheduler
// loop. It implements ingest.EventSink on the inbound side and drives a
// Transmitter on the outbound side.
type Bridge struct {
	config   Config
	registry *registry.Registry
	gate     *throttle.Gate
	policy   throttle.IntervalPolicy
	radio    Transmitter
	clock    Clock
	metrics  *Metrics
	logger   logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a bridge. A nil clock defaults to the real one; a nil metrics
// disables recording.
func New(config *Config, radio Transmitter, clock Clock, metrics *Metrics, log logger.Logger) (*Bridge, error) {
	if radio == nil {
		return nil, errNilTransmitter
	}

	if clock == nil {
		clock = realClock{}
	}

	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Bridge{
		config:   cfg,
		registry: registry.New(),
		gate:     throttle.NewGate(),
		policy:   cfg.intervalPolicy(),
		radio:    radio,
		clock:    clock,
		metrics:  metrics,
		logger:   log,
		done:     make(chan struct{}),
	}, nil
}

// Post coalesces one event record into the registry, keyed by shortened
// identifier. Listeners call this from their own goroutines.
func (b *Bridge) Post(rec models.EventRecord) {
	id := models.ShortID(rec.Callsign)

	b.registry.Upsert(id, rec, b.clock.Now())
	b.metrics.observeEvent()

	b.logger.Debug().Str("id", id).Str("category", rec.Category.String()).Msg("Event coalesced")
}

// Start runs the scheduler loop until ctx is cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	interval := time.Duration(b.config.TickInterval)
	ticker := b.clock.Ticker(interval)

	defer ticker.Stop()

	b.logger.Info().
		Dur("interval", interval).
		Dur("stale_after", time.Duration(b.config.StaleAfter)).
		Msg("Starting bridge scheduler")

	b.wg.Add(1)
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case <-ticker.Chan():
			b.tick()
		}
	}
}

// Stop terminates the scheduler loop and waits for the current tick.
func (b *Bridge) Stop(_ context.Context) error {
	b.closeOnce.Do(func() { close(b.done) })

	b.wg.Wait()

	return nil
}

// tick is one scheduler pass: evict, drain, transmit, restore.
func (b *Bridge) tick() {
	started := b.clock.Now()

	evicted := b.registry.EvictStale(started, time.Duration(b.config.StaleAfter))
	for _, id := range evicted {
		b.logger.Info().Str("id", id).Msg("Evicted stale entity")
	}

	b.metrics.observeEvictions(len(evicted))

	for _, entry := range b.registry.DrainAll() {
		if b.transmit(entry, started) {
			continue
		}

		// Nothing went out for this entity; put its newest state back so
		// the next open window still sees it.
		b.registry.Restore(entry)
		b.metrics.observeRestore()
	}

	b.metrics.observeTick(b.clock.Now().Sub(started), b.registry.Len())
}

// transmit sends whatever the gates allow for one entity and reports whether
// anything was actually transmitted.
func (b *Bridge) transmit(entry registry.Entry, now time.Time) bool {
	rec := entry.Record

	if rec.Category == models.CategoryUnknown {
		b.logger.Debug().Str("id", entry.ID).Msg("No packets for unknown category")

		return false
	}

	sent := false

	if b.gate.Allow(throttle.KindPosition, entry.ID, now, b.policy.Position(rec.Category)) {
		if b.send(throttle.KindPosition, entry.ID, rec) {
			sent = true
		}
	}

	if b.gate.Allow(throttle.KindText, entry.ID, now, b.policy.Text(rec.Category)) {
		if b.send(throttle.KindText, entry.ID, rec) {
			sent = true
		}
	}

	return sent
}

func (b *Bridge) send(kind throttle.Kind, id string, rec models.EventRecord) bool {
	var (
		payload []byte
		err     error
	)

	if kind == throttle.KindPosition {
		payload, err = atak.BuildPosition(rec)
	} else {
		payload, err = atak.BuildText(rec)
	}

	if err != nil {
		b.logger.Error().Err(err).Str("id", id).Str("kind", kind.String()).Msg("Failed to build packet")

		return false
	}

	if err := b.radio.SendATAK(payload); err != nil {
		b.metrics.observeSendFailure(kind)
		b.logger.Error().Err(err).Str("id", id).Str("kind", kind.String()).Msg("Failed to send packet")

		return false
	}

	b.metrics.observeSend(kind)
	b.logger.Debug().Str("id", id).Str("kind", kind.String()).Int("bytes", len(payload)).Msg("Packet sent")

	return true
}
