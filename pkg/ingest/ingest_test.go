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

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

type captureSink struct {
	mu      sync.Mutex
	records []models.EventRecord
}

func (s *captureSink) Post(rec models.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
}

func (s *captureSink) snapshot() []models.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.EventRecord, len(s.records))
	copy(out, s.records)

	return out
}

const cotDroneEvent = `<event version="2.0" uid="drone-AB12CD34" type="a-f-G-U-C" how="m-g">
  <point lat="47.1" lon="-122.2" hae="50.0" ce="9999999" le="9999999"/>
  <detail>
    <contact callsign="drone-AB12CD34"/>
    <remarks>RSSI: -60dBm MAC: 11:22:33:44:55:66</remarks>
  </detail>
</event>`

func TestCoTListenerHandlePacket(t *testing.T) {
	sink := &captureSink{}
	l := NewCoTListener(CoTListenerConfig{}, sink, nil, logger.NewTestLogger())

	l.handlePacket([]byte(cotDroneEvent))

	records := sink.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, models.CategoryDrone, records[0].Category)
	assert.Equal(t, "drone-AB12CD34", records[0].Callsign)
	assert.InDelta(t, 47.1, records[0].Lat, 1e-9)
}

func TestCoTListenerDropsMalformedPacket(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	sink := &captureSink{}
	l := NewCoTListener(CoTListenerConfig{}, sink, metrics, logger.NewTestLogger())

	l.handlePacket([]byte("this is not xml"))

	assert.Empty(t, sink.snapshot())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.decodeErrors.WithLabelValues(sourceCoT)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.packetsReceived.WithLabelValues(sourceCoT)))
}

func TestCoTListenerDefaultsGroup(t *testing.T) {
	l := NewCoTListener(CoTListenerConfig{}, &captureSink{}, nil, logger.NewTestLogger())

	assert.Equal(t, DefaultCoTGroup, l.config.Group)
}

func TestCoTListenerRejectsUnicastGroup(t *testing.T) {
	l := NewCoTListener(CoTListenerConfig{Group: "127.0.0.1:6969"}, &captureSink{}, nil, logger.NewTestLogger())

	err := l.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errNotMulticast)
}

func TestZMQListenerHandleMessageFanOut(t *testing.T) {
	sink := &captureSink{}

	decode := func(_ []byte) ([]models.EventRecord, error) {
		return []models.EventRecord{
			{Category: models.CategoryDrone, Callsign: "drone-2039"},
			{Category: models.CategoryPilot, Callsign: "pilot-2039"},
		}, nil
	}

	l := NewZMQListener(ZMQListenerConfig{Source: "detections"}, decode, sink, nil, logger.NewTestLogger())
	l.handleMessage([]byte(`{}`))

	records := sink.snapshot()
	require.Len(t, records, 2)
	assert.Equal(t, "drone-2039", records[0].Callsign)
	assert.Equal(t, "pilot-2039", records[1].Callsign)
}

func TestZMQListenerDropsUndecodableMessage(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	sink := &captureSink{}

	decode := func(_ []byte) ([]models.EventRecord, error) {
		return nil, errors.New("bad payload")
	}

	l := NewZMQListener(ZMQListenerConfig{Source: "status"}, decode, sink, metrics, logger.NewTestLogger())
	l.handleMessage([]byte("junk"))

	assert.Empty(t, sink.snapshot())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.decodeErrors.WithLabelValues("status")))
}

// freeEndpoint grabs an ephemeral loopback TCP port for a ZMQ bind.
func freeEndpoint(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = l.Close() }()

	return fmt.Sprintf("tcp://%s", l.Addr().String())
}

func TestZMQListenerReceivesPublishedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := freeEndpoint(t)

	pub := zmq4.NewPub(ctx)
	require.NoError(t, pub.Listen(ep))

	defer func() { _ = pub.Close() }()

	sink := &captureSink{}

	decode := func(data []byte) ([]models.EventRecord, error) {
		return []models.EventRecord{{Category: models.CategorySystem, Callsign: string(data)}}, nil
	}

	l := NewZMQListener(ZMQListenerConfig{Endpoint: ep, Source: "status"}, decode, sink, nil, logger.NewTestLogger())
	require.NoError(t, l.Start(ctx))

	defer func() { _ = l.Stop(context.Background()) }()

	// PUB drops messages until the subscription propagates, so keep
	// publishing until one arrives.
	require.Eventually(t, func() bool {
		_ = pub.Send(zmq4.NewMsg([]byte("wardragon-0001")))

		return len(sink.snapshot()) > 0
	}, 10*time.Second, 50*time.Millisecond)

	assert.Equal(t, "wardragon-0001", sink.snapshot()[0].Callsign)
}

func TestZMQListenerStopIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := freeEndpoint(t)

	pub := zmq4.NewPub(ctx)
	require.NoError(t, pub.Listen(ep))

	defer func() { _ = pub.Close() }()

	decode := func(_ []byte) ([]models.EventRecord, error) { return nil, nil }

	l := NewZMQListener(ZMQListenerConfig{Endpoint: ep, Source: "detections"}, decode, &captureSink{}, nil, logger.NewTestLogger())
	require.NoError(t, l.Start(ctx))

	require.NoError(t, l.Stop(context.Background()))
	require.NoError(t, l.Stop(context.Background()))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.observePacket("cot", 12, nowUnix())
		m.observeDecodeError("cot")
		m.observeEvents("cot", 3)
	})
}

func TestNewMetricsNilRegisterer(t *testing.T) {
	assert.Nil(t, NewMetrics(nil))
}
