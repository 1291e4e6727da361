// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stats computes the valid-event-count histogram over an
// extract: for each patient, the number of events whose decoded code
// does not carry the configured exclusion prefix, accumulated into a
// frequency table keyed by that count.
package stats

import "github.com/bschilder/femr/services/dataset"

// Excluded reports whether a decoded code string matches the exclusion
// prefix.
//
// The comparison window is the decoded string's leading
// min(len(prefix), len(decoded)) bytes, compared byte-for-byte against
// the whole prefix. A decoded string shorter than the prefix yields a
// shorter window that can never equal the prefix, so it is never
// excluded. That boundary is intentional and must not be replaced by a
// length-gated prefix check.
func Excluded(decoded, prefix string) bool {
	window := decoded
	if len(window) > len(prefix) {
		window = window[:len(prefix)]
	}
	return window == prefix
}

// ValidEvent reports whether an event counts toward its patient's
// valid-event tally.
//
// Description:
//
//	Resolves the code through the dictionary and applies the exclusion
//	prefix. Pure; no state.
//
// Inputs:
//
//	code - Integer event code.
//	dict - Dictionary resolving code IDs.
//	prefix - Exclusion prefix.
//
// Outputs:
//
//	bool - True if the event is valid (prefix does not match).
//	error - dataset.ErrUnknownCode propagated unmodified; fatal to the
//	        run, never recovered here.
func ValidEvent(code uint32, dict *dataset.Dictionary, prefix string) (bool, error) {
	decoded, err := dict.Lookup(code)
	if err != nil {
		return false, err
	}
	return !Excluded(decoded, prefix), nil
}
