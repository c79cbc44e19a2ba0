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

package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics shared by the listeners, labeled by
// source ("cot", "detections", "status"). A nil *Metrics disables recording,
// so wiring a registry stays optional.
type Metrics struct {
	packetsReceived *prometheus.CounterVec
	bytesReceived   *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	eventsPosted    *prometheus.CounterVec
	lastActivity    *prometheus.GaugeVec
}

// NewMetrics creates and registers the listener metrics. A nil registerer
// returns nil, which every recording helper tolerates.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	labels := []string{"source"}

	m := &Metrics{
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "ingest",
			Name:      "packets_received_total",
			Help:      "Total payloads received per source",
		}, labels),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "ingest",
			Name:      "bytes_received_total",
			Help:      "Total bytes received per source",
		}, labels),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "ingest",
			Name:      "decode_errors_total",
			Help:      "Payloads dropped because decoding failed",
		}, labels),
		eventsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dragonsync",
			Subsystem: "ingest",
			Name:      "events_posted_total",
			Help:      "Normalized event records handed to the registry",
		}, labels),
		lastActivity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dragonsync",
			Subsystem: "ingest",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received payload",
		}, labels),
	}

	reg.MustRegister(m.packetsReceived, m.bytesReceived, m.decodeErrors, m.eventsPosted, m.lastActivity)

	return m
}

func (m *Metrics) observePacket(source string, size int, unixNow float64) {
	if m == nil {
		return
	}

	m.packetsReceived.WithLabelValues(source).Inc()
	m.bytesReceived.WithLabelValues(source).Add(float64(size))
	m.lastActivity.WithLabelValues(source).Set(unixNow)
}

func (m *Metrics) observeDecodeError(source string) {
	if m == nil {
		return
	}

	m.decodeErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) observeEvents(source string, count int) {
	if m == nil {
		return
	}

	m.eventsPosted.WithLabelValues(source).Add(float64(count))
}
