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

// Package cot decodes Cursor-on-Target XML events from the DragonSync
// multicast feed into normalized event records. Decoding is pure; anything
// that does not parse is reported as an error and never reaches the
// registry.
package cot

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/models"
)

var errMissingUID = errors.New("cot event has no uid")

// event mirrors the subset of the CoT schema DragonSync emits. Unknown
// elements and attributes are ignored by encoding/xml, so richer TAK
// producers on the same multicast group do not break decoding.
type event struct {
	XMLName xml.Name `xml:"event"`
	UID     string   `xml:"uid,attr"`
	Point   point    `xml:"point"`
	Detail  detail   `xml:"detail"`
}

type point struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
	HAE float64 `xml:"hae,attr"`
}

type detail struct {
	Contact contact `xml:"contact"`
	Remarks string  `xml:"remarks"`
	Track   *track  `xml:"track"`
}

type contact struct {
	Callsign string `xml:"callsign,attr"`
}

type track struct {
	Course float64 `xml:"course,attr"`
	Speed  float64 `xml:"speed,attr"`
}

// Decode parses a single CoT event payload. The uid prefix decides the
// category; the contact callsign falls back to the uid when absent, matching
// how DragonSync stamps its own events.
func Decode(data []byte) (models.EventRecord, error) {
	var ev event

	if err := xml.Unmarshal(data, &ev); err != nil {
		return models.EventRecord{}, fmt.Errorf("failed to parse CoT XML: %w", err)
	}

	if ev.UID == "" {
		return models.EventRecord{}, errMissingUID
	}

	callsign := ev.Detail.Contact.Callsign
	if callsign == "" {
		callsign = ev.UID
	}

	rec := models.EventRecord{
		Category: models.CategoryOf(ev.UID),
		UID:      ev.UID,
		Callsign: callsign,
		Lat:      ev.Point.Lat,
		Lon:      ev.Point.Lon,
		Alt:      ev.Point.HAE,
		Remarks:  ev.Detail.Remarks,
	}

	if ev.Detail.Track != nil {
		rec.Course = ev.Detail.Track.Course
		rec.Speed = ev.Detail.Track.Speed
	}

	return rec, nil
}
