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

	"golang.org/x/net/ipv4"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/cot"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
)

const (
	// DefaultCoTGroup is the DragonSync multicast group for CoT events.
	DefaultCoTGroup = "239.2.3.1:6969"

	sourceCoT = "cot"

	// readBufferSize bounds a single CoT datagram.
	readBufferSize = 64 * 1024
)

var errNotMulticast = errors.New("group address is not multicast")

// CoTListenerConfig holds the multicast socket settings.
type CoTListenerConfig struct {
	// Group is the multicast group in host:port form.
	Group string `json:"group,omitempty"`
	// Interface optionally pins the group join to one interface by name;
	// empty lets the kernel choose.
	Interface string `json:"interface,omitempty"`
}

// CoTListener receives CoT XML events from a UDP multicast group and posts
// the decoded records to the sink. The socket is opened with SO_REUSEADDR so
// the bridge can share the group with other DragonSync consumers on the same
// host.
type CoTListener struct {
	config  CoTListenerConfig
	sink    EventSink
	metrics *Metrics
	logger  logger.Logger

	conn      *net.UDPConn
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewCoTListener creates a listener posting decoded CoT events to sink.
func NewCoTListener(config CoTListenerConfig, sink EventSink, metrics *Metrics, log logger.Logger) *CoTListener {
	if config.Group == "" {
		config.Group = DefaultCoTGroup
	}

	return &CoTListener{
		config:  config,
		sink:    sink,
		metrics: metrics,
		logger:  log,
		done:    make(chan struct{}),
	}
}

// Start binds the multicast socket, joins the group, and begins reading in a
// background goroutine. It returns once the socket is live.
func (l *CoTListener) Start(ctx context.Context) error {
	group, err := net.ResolveUDPAddr("udp4", l.config.Group)
	if err != nil {
		return fmt.Errorf("failed to resolve multicast group %s: %w", l.config.Group, err)
	}

	if !group.IP.IsMulticast() {
		return fmt.Errorf("%w: %s", errNotMulticast, group.IP)
	}

	lc := net.ListenConfig{Control: reuseAddr}

	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", group.Port))
	if err != nil {
		return fmt.Errorf("failed to bind multicast socket: %w", err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()

		return fmt.Errorf("unexpected packet conn type %T", pc)
	}

	var ifi *net.Interface

	if l.config.Interface != "" {
		ifi, err = net.InterfaceByName(l.config.Interface)
		if err != nil {
			_ = conn.Close()

			return fmt.Errorf("failed to look up interface %s: %w", l.config.Interface, err)
		}
	}

	if err := ipv4.NewPacketConn(conn).JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
		_ = conn.Close()

		return fmt.Errorf("failed to join multicast group %s: %w", group.IP, err)
	}

	l.conn = conn

	l.logger.Info().Str("group", l.config.Group).Msg("Multicast CoT listener started")

	l.wg.Add(1)

	go l.readLoop(ctx)

	return nil
}

// Stop closes the socket, which unblocks the read loop, and waits for it to
// exit.
func (l *CoTListener) Stop(_ context.Context) error {
	l.closeOnce.Do(func() {
		close(l.done)

		if l.conn != nil {
			_ = l.conn.Close()
		}
	})

	l.wg.Wait()

	return nil
}

func (l *CoTListener) readLoop(ctx context.Context) {
	defer l.wg.Done()

	buf := make([]byte, readBufferSize)

	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				return
			}

			l.logger.Error().Err(err).Msg("Multicast read error")

			continue
		}

		l.handlePacket(buf[:n])
	}
}

func (l *CoTListener) handlePacket(data []byte) {
	l.metrics.observePacket(sourceCoT, len(data), nowUnix())

	rec, err := cot.Decode(data)
	if err != nil {
		l.metrics.observeDecodeError(sourceCoT)
		l.logger.Warn().Err(err).Msg("Dropping malformed CoT event")

		return
	}

	l.sink.Post(rec)
	l.metrics.observeEvents(sourceCoT, 1)

	l.logger.Debug().Str("uid", rec.UID).Str("callsign", rec.Callsign).Msg("CoT event received")
}
