// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dataset provides read access to a femr extract: an ordered
// collection of patients, each an ordered sequence of coded clinical
// events, plus the dictionary resolving integer codes to their string
// form.
//
// An extract is a single BadgerDB directory with three key spaces:
//
//	meta:patient_count   big-endian uint32
//	meta:code_count      big-endian uint32
//	meta:batch_id        UUID of the ingest run that built the extract
//	patient:<id>         JSON array of events, id big-endian uint32
//	code:<id>            raw UTF-8 code string, id big-endian uint32
//
// Patient and code IDs are dense: both ranges are exactly
// [0, count). Consumers open extracts read-only; only the
// DatabaseWriter (used by ingest) opens them for writing.
package dataset

import (
	"encoding/binary"
	"time"
)

// Event is one timestamped, coded occurrence in a patient timeline.
// Start and Value are carried through the extract but unused by the
// statistics pass.
type Event struct {
	// Code is the integer event code, resolvable via the Dictionary.
	Code uint32 `json:"code"`

	// Start is the event timestamp.
	Start time.Time `json:"start"`

	// Value is an optional free-form payload (lab value, note text).
	Value string `json:"value,omitempty"`
}

// Patient is a dense-indexed patient with its chronologically ordered
// event sequence. Read-only once loaded.
type Patient struct {
	// ID is the dense patient index in [0, database.Size()).
	ID uint32

	// Events are the patient's events in chronological order.
	Events []Event
}

// Key space constants and helpers.
const (
	metaPatientCountKey = "meta:patient_count"
	metaCodeCountKey    = "meta:code_count"
	metaBatchIDKey      = "meta:batch_id"

	patientKeyPrefix = "patient:"
	codeKeyPrefix    = "code:"
)

func patientKey(id uint32) []byte {
	return appendUint32([]byte(patientKeyPrefix), id)
}

func codeKey(id uint32) []byte {
	return appendUint32([]byte(codeKeyPrefix), id)
}

func appendUint32(prefix []byte, id uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], id)
	return append(prefix, buf[:]...)
}

func encodeUint32(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf[:]
}
