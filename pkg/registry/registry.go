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

// Package registry implements the latest-wins entity store at the heart of
// the bridge. Listeners upsert normalized event records keyed by shortened
// identifier; the scheduler drains the whole store once per tick and evicts
// entities that have gone silent.
package registry

import (
	"sync"
	"time"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

// Entry pairs an entity's most recent record with the time it was last seen.
type Entry struct {
	ID       string
	Record   models.EventRecord
	LastSeen time.Time
}

// Registry coalesces inbound events per entity. An upsert between two ticks
// overwrites unconditionally, so only the newest state survives to the next
// drain. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Upsert records the latest state for id. Existing state is overwritten
// regardless of content and the last-seen time is refreshed.
func (r *Registry) Upsert(id string, rec models.EventRecord, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[id] = Entry{ID: id, Record: rec, LastSeen: now}
}

// DrainAll atomically removes and returns every entry, emptying the store.
// Records arriving while the drained batch is being processed land in the
// fresh map and surface on the next drain.
func (r *Registry) DrainAll() []Entry {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]Entry)
	r.mu.Unlock()

	drained := make([]Entry, 0, len(entries))
	for _, e := range entries {
		drained = append(drained, e)
	}

	return drained
}

// Restore puts a drained entry back, preserving its original last-seen time,
// unless a fresher upsert has claimed the id in the meantime. The scheduler
// uses this for entries it drained but did not transmit, so their newest
// state is re-offered once a throttle window reopens.
func (r *Registry) Restore(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.ID]; exists {
		return
	}

	r.entries[e.ID] = e
}

// EvictStale removes every entry whose last-seen age exceeds threshold and
// returns the evicted ids for logging. The scheduler runs this before
// draining, so an entry is never both evicted and drained in one pass.
func (r *Registry) EvictStale(now time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string

	for id, e := range r.entries {
		if now.Sub(e.LastSeen) > threshold {
			delete(r.entries, id)
			evicted = append(evicted, id)
		}
	}

	return evicted
}

// Len reports the number of tracked entities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
