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
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
)

const (
	// DefaultDetectionsEndpoint is the DragonSync Remote-ID detection feed.
	DefaultDetectionsEndpoint = "tcp://127.0.0.1:4224"
	// DefaultStatusEndpoint is the WarDragon system status feed.
	DefaultStatusEndpoint = "tcp://127.0.0.1:4225"
)

// ZMQListenerConfig holds the subscription settings for one bus endpoint.
type ZMQListenerConfig struct {
	// Endpoint is the ZMQ address to dial, e.g. tcp://127.0.0.1:4224.
	Endpoint string `json:"endpoint,omitempty"`
	// Source labels log events and metrics for this listener.
	Source string `json:"source,omitempty"`
}

// ZMQListener subscribes to one DragonSync bus endpoint and posts every
// record the decoder yields. One message can fan out to several records
// (drone plus pilot plus home).
type ZMQListener struct {
	config  ZMQListenerConfig
	decode  DecodeFunc
	sink    EventSink
	metrics *Metrics
	logger  logger.Logger

	sub       zmq4.Socket
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewZMQListener creates a listener feeding decoded records from one bus
// endpoint to sink.
func NewZMQListener(config ZMQListenerConfig, decode DecodeFunc, sink EventSink, metrics *Metrics, log logger.Logger) *ZMQListener {
	return &ZMQListener{
		config:  config,
		decode:  decode,
		sink:    sink,
		metrics: metrics,
		logger:  log,
		done:    make(chan struct{}),
	}
}

// Start dials the endpoint with an empty subscription (all topics) and
// begins receiving in a background goroutine. The socket reconnects
// automatically if the publisher restarts; ctx cancellation tears it down.
func (l *ZMQListener) Start(ctx context.Context) error {
	sub := zmq4.NewSub(ctx, zmq4.WithAutomaticReconnect(true))

	if err := sub.Dial(l.config.Endpoint); err != nil {
		return fmt.Errorf("failed to dial %s: %w", l.config.Endpoint, err)
	}

	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = sub.Close()

		return fmt.Errorf("failed to subscribe on %s: %w", l.config.Endpoint, err)
	}

	l.sub = sub

	l.logger.Info().Str("endpoint", l.config.Endpoint).Str("source", l.config.Source).Msg("ZMQ listener started")

	l.wg.Add(1)

	go l.recvLoop(ctx)

	return nil
}

// Stop closes the subscription socket and waits for the receive loop.
func (l *ZMQListener) Stop(_ context.Context) error {
	l.closeOnce.Do(func() {
		close(l.done)

		if l.sub != nil {
			_ = l.sub.Close()
		}
	})

	l.wg.Wait()

	return nil
}

func (l *ZMQListener) recvLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		msg, err := l.sub.Recv()
		if err != nil {
			select {
			case <-l.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			l.logger.Error().Err(err).Str("source", l.config.Source).Msg("ZMQ receive error")

			return
		}

		l.handleMessage(msg.Bytes())
	}
}

func (l *ZMQListener) handleMessage(data []byte) {
	l.metrics.observePacket(l.config.Source, len(data), nowUnix())

	records, err := l.decode(data)
	if err != nil {
		l.metrics.observeDecodeError(l.config.Source)
		l.logger.Warn().Err(err).Str("source", l.config.Source).Msg("Dropping malformed bus message")

		return
	}

	for _, rec := range records {
		l.sink.Post(rec)
	}

	l.metrics.observeEvents(l.config.Source, len(records))
}
