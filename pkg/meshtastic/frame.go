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

// Package meshtastic speaks the Meshtastic serial stream protocol: ToRadio
// protobufs wrapped in magic-byte framing, written to the device one at a
// time. The radio is the single shared output of the whole bridge, so every
// send passes through one mutual-exclusion gate.
package meshtastic

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	frameStart1 = 0x94
	frameStart2 = 0xC3

	frameHeaderLen = 4

	// maxFrameBody is the largest ToRadio the firmware accepts per frame.
	maxFrameBody = 512

	wakeLen = 32
)

// ErrFrameTooLarge is returned when a ToRadio body exceeds the stream
// protocol's frame limit.
var ErrFrameTooLarge = errors.New("frame body exceeds protocol limit")

// EncodeFrame wraps a serialized ToRadio in stream framing: the two magic
// bytes, a big-endian body length, then the body.
func EncodeFrame(body []byte) ([]byte, error) {
	if len(body) > maxFrameBody {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	frame := make([]byte, frameHeaderLen, frameHeaderLen+len(body))
	frame[0] = frameStart1
	frame[1] = frameStart2
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(body)))

	return append(frame, body...), nil
}

// wakeBytes is the preamble written before the handshake so a firmware
// sitting in serial sleep drops back into protocol mode.
func wakeBytes() []byte {
	b := make([]byte, wakeLen)
	for i := range b {
		b[i] = frameStart2
	}

	return b
}
