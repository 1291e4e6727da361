// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest builds a femr extract from a tree of source CSV
// files. Each file is matched to exactly one Converter by path prefix,
// parsed concurrently, and funneled into a single dataset writer.
package ingest

import (
	"fmt"
	"time"
)

// RawEvent is one parsed source event whose code is still a string;
// the dataset writer interns codes into dense dictionary IDs.
type RawEvent struct {
	Code  string
	Start time.Time
	Value string
}

// Converter turns the rows of a matched CSV file into events.
//
// Implementations must be safe for concurrent use; the pipeline calls
// Events from multiple parser goroutines.
type Converter interface {
	// FilePrefix is the path substring this converter triggers on.
	// A source file matching two converters' prefixes is a hard error.
	FilePrefix() string

	// PatientIDField names the (lower-cased) column holding the
	// external patient identifier.
	PatientIDField() string

	// Events returns the events generated for one row. Field names in
	// the row map are lower-cased.
	Events(row map[string]string) ([]RawEvent, error)
}

// CSVEventConverter handles the generic event table layout:
//
//	patient_id,code,start,value
//
// start accepts RFC 3339 timestamps or bare dates (2006-01-02) and may
// be empty; code must be non-empty.
type CSVEventConverter struct {
	// Prefix is the path substring to trigger on, e.g. "observation".
	Prefix string
}

// FilePrefix implements Converter.
func (c CSVEventConverter) FilePrefix() string {
	return c.Prefix
}

// PatientIDField implements Converter.
func (c CSVEventConverter) PatientIDField() string {
	return "patient_id"
}

// Events implements Converter. One row yields one event.
func (c CSVEventConverter) Events(row map[string]string) ([]RawEvent, error) {
	code := row["code"]
	if code == "" {
		return nil, fmt.Errorf("row has no code")
	}

	var start time.Time
	if raw := row["start"]; raw != "" {
		var err error
		start, err = parseEventTime(raw)
		if err != nil {
			return nil, fmt.Errorf("parse start %q: %w", raw, err)
		}
	}

	return []RawEvent{{Code: code, Start: start, Value: row["value"]}}, nil
}

var eventTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseEventTime(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range eventTimeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
