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

// Command fpv-detector reads FPV sensor messages from a serial port,
// enriches them with gpsd coordinates, and publishes them on a ZMQ XPUB
// socket for DragonSync consumers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/config"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/fpv"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/gpsd"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/lifecycle"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/version"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

// How long a stationary sensor waits for its one-shot fix at startup.
const stationaryFixTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to detector config file (optional)")
	serialPort := flag.String("serial", "", "Serial port to connect to")
	baudRate := flag.Int("baud", 0, "Baud rate for serial communication")
	zmqPort := flag.Int("zmq-port", 0, "TCP port to publish detections on")
	stationary := flag.Bool("stationary", false, "Read GPS once at startup (stationary sensor)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	ctx := context.Background()

	// Step 1: Load configuration
	var cfg fpv.Config

	if *configPath != "" {
		cfgLoader := config.NewConfig(nil)
		if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
			return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}

	if *baudRate > 0 {
		cfg.BaudRate = *baudRate
	}

	if *zmqPort > 0 {
		cfg.PublishEndpoint = fmt.Sprintf("tcp://0.0.0.0:%d", *zmqPort)
	}

	if *stationary {
		cfg.GPSD.Stationary = true
	}

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		// Use default config if not specified
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	if *debug {
		logConfig.Debug = true
	}

	detectorLogger, err := lifecycle.CreateComponentLogger(ctx, "fpv-detector", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() { _ = lifecycle.ShutdownLogger() }()

	detectorLogger.Info().
		Str("version", version.GetFullVersion()).
		Msg("Starting FPV detector")

	// Step 3: Connect gpsd. Detections still publish with zero coordinates
	// when no GPS is available.
	location, closeGPS := connectGPS(ctx, cfg.GPSD, detectorLogger)
	if closeGPS != nil {
		defer closeGPS()
	}

	detector := fpv.New(&cfg, location, detectorLogger)

	return lifecycle.Run(ctx, detectorLogger, detector)
}

// connectGPS dials gpsd per the configured mode. Stationary sensors sample
// one fix and run on the cached coordinates; mobile ones keep the session
// open and follow it. A nil source means no GPS.
func connectGPS(ctx context.Context, cfg gpsd.Config, log logger.Logger) (gpsd.LocationSource, func()) {
	provider, err := gpsd.Dial(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize GPS connection, coordinates default to zero")
		return nil, nil
	}

	if !cfg.Stationary {
		return provider, func() { _ = provider.Close() }
	}

	waitCtx, cancel := context.WithTimeout(ctx, stationaryFixTimeout)
	defer cancel()

	if err := provider.WaitForFix(waitCtx); err != nil {
		log.Warn().Msg("No GPS fix at startup, stationary coordinates default to zero")
	}

	lat, lon := provider.Location()

	_ = provider.Close()

	log.Info().Float64("lat", lat).Float64("lon", lon).Msg("Cached stationary GPS position")

	return gpsd.StaticLocation{Lat: lat, Lon: lon}, nil
}
