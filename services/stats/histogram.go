// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"bytes"
	"slices"
	"strconv"
)

// Histogram maps a valid-event count to the number of patients
// exhibiting that count. Buckets exist only for observed counts; no
// zero-frequency keys are ever present.
type Histogram map[uint32]uint32

// Add increments the bucket for one patient's valid-event count.
func (h Histogram) Add(count uint32) {
	h[count]++
}

// Merge folds another histogram into this one by summing matching
// buckets. Used to combine per-worker partial histograms.
func (h Histogram) Merge(other Histogram) {
	for count, freq := range other {
		h[count] += freq
	}
}

// Total returns the sum of all bucket frequencies, i.e. the number of
// patients tallied.
func (h Histogram) Total() uint64 {
	var total uint64
	for _, freq := range h {
		total += uint64(freq)
	}
	return total
}

// MarshalJSON serializes the histogram as a JSON object whose keys are
// the decimal string form of each count and whose values are integer
// frequencies. Keys are emitted in ascending numeric order so repeated
// runs over the same extract produce byte-identical output.
func (h Histogram) MarshalJSON() ([]byte, error) {
	counts := make([]uint32, 0, len(h))
	for count := range h {
		counts = append(counts, count)
	}
	slices.Sort(counts)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, count := range counts {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatUint(uint64(count), 10))
		buf.WriteString(`":`)
		buf.WriteString(strconv.FormatUint(uint64(h[count]), 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
