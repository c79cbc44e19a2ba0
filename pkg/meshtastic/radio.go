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

package meshtastic

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
)

const (
	// DefaultBaudRate matches the Meshtastic serial console default.
	DefaultBaudRate = 115200

	defaultHopLimit = 3

	// wakeSettleDelay gives the firmware time to leave serial sleep before
	// the handshake frame arrives.
	wakeSettleDelay = 100 * time.Millisecond
)

// Config holds the serial transport settings.
type Config struct {
	// Port is the device node, e.g. /dev/ttyACM0. Empty means auto-detect.
	Port string `json:"port,omitempty"`
	// BaudRate defaults to 115200.
	BaudRate int `json:"baud_rate,omitempty"`
	// Channel selects the mesh channel index for outgoing packets.
	Channel uint32 `json:"channel,omitempty"`
	// HopLimit defaults to 3.
	HopLimit uint32 `json:"hop_limit,omitempty"`
}

// Radio is a Meshtastic node attached over a serial stream. All writes are
// serialized through a single mutex so concurrent senders cannot interleave
// frames on the wire.
type Radio struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	device string

	channel  uint32
	hopLimit uint32
	nextID   uint32

	logger logger.Logger
}

// Open connects to the radio, waking it and requesting node config so the
// firmware starts accepting MeshPackets. An empty cfg.Port auto-detects the
// first plausible USB serial device.
func Open(cfg Config, log logger.Logger) (*Radio, error) {
	device := cfg.Port
	if device == "" {
		detected, err := DetectPort()
		if err != nil {
			return nil, err
		}

		device = detected

		log.Info().Str("port", device).Msg("Auto-detected Meshtastic serial port")
	}

	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	r := New(port, cfg, log)
	r.device = device

	if err := r.wake(); err != nil {
		_ = port.Close()

		return nil, err
	}

	log.Info().Str("port", device).Int("baud", baud).Msg("Connected to Meshtastic device")

	return r, nil
}

// New wraps an already-open stream. Callers that need the wake handshake
// should use Open; New exists for transports that are already in protocol
// mode and for tests.
func New(port io.ReadWriteCloser, cfg Config, log logger.Logger) *Radio {
	hopLimit := cfg.HopLimit
	if hopLimit == 0 {
		hopLimit = defaultHopLimit
	}

	return &Radio{
		port:     port,
		channel:  cfg.Channel,
		hopLimit: hopLimit,
		nextID:   rand.Uint32(),
		logger:   log,
	}
}

// wake nudges the firmware out of serial sleep and requests its config. The
// response stream is ignored; issuing the request is what completes the
// handshake.
func (r *Radio) wake() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.port.Write(wakeBytes()); err != nil {
		return fmt.Errorf("failed to wake radio: %w", err)
	}

	time.Sleep(wakeSettleDelay)

	frame, err := EncodeFrame(encodeWantConfig(r.packetID()))
	if err != nil {
		return err
	}

	if _, err := r.port.Write(frame); err != nil {
		return fmt.Errorf("failed to request radio config: %w", err)
	}

	return nil
}

// SendATAK broadcasts one TAKPacket payload on the ATAK plugin port. The
// write blocks until the frame is handed to the serial driver; there is no
// delivery acknowledgement on the broadcast path.
func (r *Radio) SendATAK(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	packet := encodeMeshPacket(r.packetID(), r.channel, r.hopLimit, false,
		encodeData(portATAKPlugin, payload))

	frame, err := EncodeFrame(encodeToRadioPacket(packet))
	if err != nil {
		return err
	}

	if _, err := r.port.Write(frame); err != nil {
		return fmt.Errorf("failed to write mesh packet: %w", err)
	}

	r.logger.Debug().Int("payload_bytes", len(payload)).Msg("Sent ATAK packet")

	return nil
}

// Device reports the serial device node the radio was opened on, if known.
func (r *Radio) Device() string {
	return r.device
}

// Close releases the serial port.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.port.Close()
}

// packetID returns the next nonzero packet id. Callers hold r.mu.
func (r *Radio) packetID() uint32 {
	r.nextID++
	if r.nextID == 0 {
		r.nextID = 1
	}

	return r.nextID
}
