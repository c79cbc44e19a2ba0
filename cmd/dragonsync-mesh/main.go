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

// Command dragonsync-mesh bridges DragonSync CoT multicast and ZMQ feeds
// onto a Meshtastic mesh as ATAK plugin packets.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/bridge"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/config"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/dragonsync"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/ingest"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/lifecycle"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/meshtastic"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/metrics"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/version"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

const (
	defaultMulticastAddr = "239.2.3.1"
	defaultMulticastPort = 6969
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to bridge config file (optional)")
	serialPort := flag.String("port", "", "Serial device of the Meshtastic radio (default: autodetect)")
	mcastAddr := flag.String("mcast", "", "CoT multicast group address")
	mcastPort := flag.Int("mcast-port", 0, "CoT multicast UDP port")
	flag.Parse()

	ctx := context.Background()

	// Step 1: Load configuration
	var cfg bridge.Config

	if *configPath != "" {
		cfgLoader := config.NewConfig(nil)
		if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
			return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	applyFlags(&cfg, *serialPort, *mcastAddr, *mcastPort)

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		// Use default config if not specified
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	bridgeLogger, err := lifecycle.CreateComponentLogger(ctx, "bridge", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() { _ = lifecycle.ShutdownLogger() }()

	bridgeLogger.Info().
		Str("version", version.GetFullVersion()).
		Msg("Starting DragonSync Meshtastic bridge")

	// Step 3: Open the radio before anything can try to transmit
	radio, err := meshtastic.Open(cfg.Radio, bridgeLogger)
	if err != nil {
		return fmt.Errorf("failed to open radio: %w", err)
	}

	defer func() { _ = radio.Close() }()

	bridgeLogger.Info().Str("device", radio.Device()).Msg("Meshtastic radio ready")

	// Metrics are optional; without a listen address nothing is registered.
	var registry *prometheus.Registry

	var bridgeMetrics *bridge.Metrics

	var ingestMetrics *ingest.Metrics

	if cfg.MetricsAddr != "" {
		registry = prometheus.NewRegistry()
		bridgeMetrics = bridge.NewMetrics(registry)
		ingestMetrics = ingest.NewMetrics(registry)
	}

	// Step 4: Wire the engine and its feeds. nil clock defaults to the
	// realtime clock in bridge.New.
	engine, err := bridge.New(&cfg, radio, nil, bridgeMetrics, bridgeLogger)
	if err != nil {
		return err
	}

	cot := ingest.NewCoTListener(cfg.CoT, engine, ingestMetrics, bridgeLogger)

	decoder := dragonsync.NewDecoder()

	detectionsEndpoint := cfg.DetectionsEndpoint
	if detectionsEndpoint == "" {
		detectionsEndpoint = ingest.DefaultDetectionsEndpoint
	}

	statusEndpoint := cfg.StatusEndpoint
	if statusEndpoint == "" {
		statusEndpoint = ingest.DefaultStatusEndpoint
	}

	detections := ingest.NewZMQListener(ingest.ZMQListenerConfig{
		Endpoint: detectionsEndpoint,
		Source:   "detections",
	}, decoder.DecodeDetections, engine, ingestMetrics, bridgeLogger)

	status := ingest.NewZMQListener(ingest.ZMQListenerConfig{
		Endpoint: statusEndpoint,
		Source:   "status",
	}, decodeStatus, engine, ingestMetrics, bridgeLogger)

	// Listeners come after the engine so shutdown stops them first and the
	// engine drains last.
	services := []lifecycle.Service{engine, cot, detections, status}

	if registry != nil {
		services = append(services, metrics.NewServer(cfg.MetricsAddr, registry, bridgeLogger))
	}

	return lifecycle.Run(ctx, bridgeLogger, services...)
}

// applyFlags overlays command line overrides onto the loaded configuration.
func applyFlags(cfg *bridge.Config, serialPort, mcastAddr string, mcastPort int) {
	if serialPort != "" {
		cfg.Radio.Port = serialPort
	}

	if mcastAddr != "" || mcastPort != 0 {
		if mcastAddr == "" {
			mcastAddr = defaultMulticastAddr
		}

		if mcastPort == 0 {
			mcastPort = defaultMulticastPort
		}

		cfg.CoT.Group = net.JoinHostPort(mcastAddr, strconv.Itoa(mcastPort))
	}
}

// decodeStatus adapts the single-record status decoder to the listener's
// fan-out signature.
func decodeStatus(data []byte) ([]models.EventRecord, error) {
	rec, err := dragonsync.DecodeStatus(data)
	if err != nil {
		return nil, err
	}

	return []models.EventRecord{rec}, nil
}
