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

// Package fpv runs the FPV detection pipeline: newline-delimited JSON from a
// detection sensor on a serial port, position enrichment from gpsd, and
// publication on a ZMQ XPUB socket for DragonSync consumers.
package fpv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.bug.st/serial"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/gpsd"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

const (
	// DefaultSerialPort is where the detection sensor usually enumerates.
	DefaultSerialPort = "/dev/ttyACM0"
	// DefaultBaudRate matches the sensor firmware console.
	DefaultBaudRate = 115200
	// DefaultPublishEndpoint is the XPUB bind address for enriched
	// detections.
	DefaultPublishEndpoint = "tcp://0.0.0.0:4020"

	defaultReconnectDelay = 5 * time.Second

	// publishHWM bounds the XPUB send queue when subscribers fall behind.
	publishHWM = 1000
)

// Config holds the detector settings.
type Config struct {
	SerialPort      string          `json:"serial_port,omitempty"`
	BaudRate        int             `json:"baud_rate,omitempty"`
	PublishEndpoint string          `json:"publish_endpoint,omitempty"`
	ReconnectDelay  models.Duration `json:"reconnect_delay,omitempty"`
	GPSD            gpsd.Config     `json:"gpsd,omitempty"`
	Logging         *logger.Config  `json:"logging,omitempty"`
}

// Validate fills in defaults.
func (c *Config) Validate() error {
	if c.SerialPort == "" {
		c.SerialPort = DefaultSerialPort
	}

	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}

	if c.PublishEndpoint == "" {
		c.PublishEndpoint = DefaultPublishEndpoint
	}

	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = models.Duration(defaultReconnectDelay)
	}

	return nil
}

// publisher is the slice of the ZMQ socket the detector needs.
type publisher interface {
	Send(msg zmq4.Msg) error
	Close() error
}

// Detector reads sensor messages from the serial port, reconnecting with a
// fixed delay when the device drops, and publishes every message enriched
// with the current position.
type Detector struct {
	config   Config
	location gpsd.LocationSource
	logger   logger.Logger

	pub      publisher
	openPort func() (io.ReadCloser, error)

	mu        sync.Mutex
	port      io.ReadCloser
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a detector. location may be nil, in which case detections
// carry zero coordinates, the same as a receiver without a fix.
func New(config *Config, location gpsd.LocationSource, log logger.Logger) *Detector {
	d := &Detector{
		config:   *config,
		location: location,
		logger:   log,
		done:     make(chan struct{}),
	}

	d.openPort = func() (io.ReadCloser, error) {
		return serial.Open(d.config.SerialPort, &serial.Mode{BaudRate: d.config.BaudRate})
	}

	return d
}

// Start binds the publish socket and begins the serial read loop in the
// background.
func (d *Detector) Start(ctx context.Context) error {
	pub := zmq4.NewXPub(ctx)

	if err := pub.SetOption(zmq4.OptionHWM, publishHWM); err != nil {
		_ = pub.Close()

		return fmt.Errorf("failed to set publish high-water mark: %w", err)
	}

	if err := pub.Listen(d.config.PublishEndpoint); err != nil {
		_ = pub.Close()

		return fmt.Errorf("failed to bind publisher on %s: %w", d.config.PublishEndpoint, err)
	}

	d.pub = pub

	d.logger.Info().Str("endpoint", d.config.PublishEndpoint).Msg("Detection publisher bound")

	d.wg.Add(1)

	go d.run(ctx)

	return nil
}

// Stop closes the serial port and publish socket and waits for the read loop
// to exit.
func (d *Detector) Stop(_ context.Context) error {
	d.closeOnce.Do(func() {
		close(d.done)

		d.mu.Lock()
		if d.port != nil {
			_ = d.port.Close()
		}
		d.mu.Unlock()

		if d.pub != nil {
			_ = d.pub.Close()
		}
	})

	d.wg.Wait()

	return nil
}

// run owns the reconnect loop: open the port, drain it line by line until it
// fails, then wait out the reconnect delay and try again.
func (d *Detector) run(ctx context.Context) {
	defer d.wg.Done()

	delay := time.Duration(d.config.ReconnectDelay)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		port, err := d.openPort()
		if err != nil {
			d.logger.Error().Err(err).Str("port", d.config.SerialPort).
				Dur("retry_in", delay).Msg("Serial connection error")

			if !d.pause(ctx, delay) {
				return
			}

			continue
		}

		d.setPort(port)
		d.logger.Info().Str("port", d.config.SerialPort).Int("baud", d.config.BaudRate).
			Msg("Connected to detection sensor")

		d.readLines(port)

		d.setPort(nil)
		_ = port.Close()

		if !d.pause(ctx, delay) {
			return
		}
	}
}

// pause waits out the reconnect delay, reporting false when shutdown won.
func (d *Detector) pause(ctx context.Context, delay time.Duration) bool {
	select {
	case <-d.done:
		return false
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (d *Detector) setPort(port io.ReadCloser) {
	d.mu.Lock()
	d.port = port
	d.mu.Unlock()
}

// readLines consumes the port until read error or EOF, publishing every
// non-blank line.
func (d *Detector) readLines(r io.Reader) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		d.handleLine(line)
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-d.done:
		default:
			d.logger.Error().Err(err).Msg("Serial read error")
		}
	}
}

func (d *Detector) handleLine(line []byte) {
	var raw rawMessage

	if err := json.Unmarshal(line, &raw); err != nil {
		d.logger.Warn().Err(err).Str("line", string(line)).Msg("Failed to parse sensor JSON")

		return
	}

	det := newDetection(raw)
	d.logStatus(det)

	det.GPSLat, det.GPSLon = d.locate()

	buf, err := json.Marshal(det)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to encode detection")

		return
	}

	if err := d.pub.Send(zmq4.NewMsg(buf)); err != nil {
		d.logger.Error().Err(err).Msg("Failed to publish detection")

		return
	}

	d.logger.Debug().RawJSON("detection", buf).Msg("Published detection")
}

func (d *Detector) logStatus(det Detection) {
	c := classify(det.MessageType, det.Status)

	var ev = d.logger.Debug()

	switch c.severity {
	case severityInfo:
		ev = d.logger.Info()
	case severityWarn:
		ev = d.logger.Warn()
	case severityDebug:
	}

	ev.Str("node", det.SourceNode).Str("status", det.Status).Msg(c.message)

	if det.MessageType == typeNodeAlert && len(det.RSSI) > 0 {
		d.logger.Debug().Str("rssi", string(det.RSSI)).Str("freq", string(det.Freq)).Msg("Signal details")
	}
}

func (d *Detector) locate() (lat, lon float64) {
	if d.location == nil {
		return 0, 0
	}

	return d.location.Location()
}
