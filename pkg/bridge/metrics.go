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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/throttle"
)

// Metrics holds Prometheus metrics for the scheduler. A nil *Metrics
// disables recording.
type Metrics struct {
	eventsCoalesced prometheus.Counter
	packetsSent     *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
	entitiesEvicted prometheus.Counter
	entriesRestored prometheus.Counter
	registrySize    prometheus.Gauge
	tickDuration    prometheus.Histogram
}

// NewMetrics creates and registers the scheduler metrics. A nil registerer
// returns nil, which every recording helper tolerates.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		eventsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "bridge",
			Name:      "events_coalesced_total",
			Help:      "Event records upserted into the registry",
		}),
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "bridge",
			Name:      "packets_sent_total",
			Help:      "TAKPackets transmitted, by kind",
		}, []string{"kind"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "bridge",
			Name:      "send_failures_total",
			Help:      "Radio transmissions that failed, by kind",
		}, []string{"kind"}),
		entitiesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "bridge",
			Name:      "entities_evicted_total",
			Help:      "Registry entries removed for staleness",
		}),
		entriesRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "bridge",
			Name:      "entries_restored_total",
			Help:      "Drained entries put back because nothing was transmitted",
		}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dragonsync",
			Subsystem: "bridge",
			Name:      "registry_size",
			Help:      "Tracked entities after the last tick",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dragonsync",
			Subsystem: "bridge",
			Name:      "tick_duration_seconds",
			Help:      "Scheduler tick wall time",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
	}

	reg.MustRegister(
		m.eventsCoalesced, m.packetsSent, m.sendFailures,
		m.entitiesEvicted, m.entriesRestored, m.registrySize, m.tickDuration,
	)

	return m
}

func (m *Metrics) observeEvent() {
	if m == nil {
		return
	}

	m.eventsCoalesced.Inc()
}

func (m *Metrics) observeSend(kind throttle.Kind) {
	if m == nil {
		return
	}

	m.packetsSent.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeSendFailure(kind throttle.Kind) {
	if m == nil {
		return
	}

	m.sendFailures.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeEvictions(count int) {
	if m == nil {
		return
	}

	m.entitiesEvicted.Add(float64(count))
}

func (m *Metrics) observeRestore() {
	if m == nil {
		return
	}

	m.entriesRestored.Inc()
}

func (m *Metrics) observeTick(elapsed time.Duration, registrySize int) {
	if m == nil {
		return
	}

	m.tickDuration.Observe(elapsed.Seconds())
	m.registrySize.Set(float64(registrySize))
}
