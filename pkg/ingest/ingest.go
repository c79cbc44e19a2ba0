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

// Package ingest runs the network listeners that feed the bridge: a UDP
// multicast socket for CoT XML and ZMQ SUB sockets for the DragonSync JSON
// bus. Each listener decodes payloads into normalized event records and
// posts them to an EventSink; malformed input is logged and dropped before
// it ever reaches the registry.
package ingest

import (
	"time"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

// EventSink receives normalized telemetry records from listeners. The
// bridge implements this; listeners never touch the registry directly.
type EventSink interface {
	Post(rec models.EventRecord)
}

// DecodeFunc turns one bus message into zero or more event records.
type DecodeFunc func(data []byte) ([]models.EventRecord, error)

func nowUnix() float64 {
	return float64(time.Now().Unix())
}
