// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import "errors"

// Sentinel errors for extract access. All are fatal to a run; nothing
// in this package retries or recovers.
var (
	// ErrUnknownCode is returned when a code ID has no dictionary entry.
	ErrUnknownCode = errors.New("unknown code id")

	// ErrPatientOutOfRange is returned when a patient ID is outside
	// [0, Size()).
	ErrPatientOutOfRange = errors.New("patient id out of range")

	// ErrCorruptRecord is returned when the extract is internally
	// inconsistent: missing metadata, a missing patient record inside
	// the valid ID range, or an undecodable event payload.
	ErrCorruptRecord = errors.New("corrupt extract record")

	// ErrWriterCommitted is returned when events are added to a
	// DatabaseWriter after Commit.
	ErrWriterCommitted = errors.New("database writer already committed")
)
