// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// DatabaseWriter accumulates events keyed by external patient ID and
// flushes them into an extract on Commit.
//
// IDs are interned dense and first-seen: the first distinct code string
// becomes code 0, the first distinct patient key becomes patient 0, and
// so on. Events are buffered in memory until Commit, which sorts each
// patient's sequence chronologically and writes everything in one
// Badger write batch.
//
// Thread Safety: NOT safe for concurrent use. Ingest funnels all
// parsed events through a single writer goroutine.
type DatabaseWriter struct {
	db *badger.DB

	codeIDs    map[string]uint32
	codes      []string
	patientIDs map[uint64]uint32
	events     [][]Event

	batchID   string
	committed bool
}

// NewDatabaseWriter creates a writer targeting an open, writable store.
func NewDatabaseWriter(db *badger.DB) *DatabaseWriter {
	return &DatabaseWriter{
		db:         db,
		codeIDs:    make(map[string]uint32),
		patientIDs: make(map[uint64]uint32),
		batchID:    uuid.NewString(),
	}
}

// BatchID returns the UUID identifying this ingest batch. It is stored
// in the extract metadata on Commit.
func (w *DatabaseWriter) BatchID() string {
	return w.batchID
}

// PatientCount returns the number of distinct patients seen so far.
func (w *DatabaseWriter) PatientCount() uint32 {
	return uint32(len(w.events))
}

// CodeCount returns the number of distinct code strings seen so far.
func (w *DatabaseWriter) CodeCount() uint32 {
	return uint32(len(w.codes))
}

// AddEvent buffers one event for the patient identified by the external
// key (e.g. the patient_id column of a source CSV).
//
// Inputs:
//
//	patientKey - External patient identifier.
//	code - Code string; interned into the dictionary.
//	start - Event timestamp.
//	value - Optional free-form payload.
//
// Outputs:
//
//	error - ErrWriterCommitted after Commit has run.
func (w *DatabaseWriter) AddEvent(patientKey uint64, code string, start time.Time, value string) error {
	if w.committed {
		return ErrWriterCommitted
	}

	codeID, ok := w.codeIDs[code]
	if !ok {
		codeID = uint32(len(w.codes))
		w.codeIDs[code] = codeID
		w.codes = append(w.codes, code)
	}

	patientID, ok := w.patientIDs[patientKey]
	if !ok {
		patientID = uint32(len(w.events))
		w.patientIDs[patientKey] = patientID
		w.events = append(w.events, nil)
	}

	w.events[patientID] = append(w.events[patientID], Event{
		Code:  codeID,
		Start: start,
		Value: value,
	})
	return nil
}

// AddPatient registers a patient with no events yet. Patients that only
// appear in a demographics table still occupy a slot in the extract.
func (w *DatabaseWriter) AddPatient(patientKey uint64) error {
	if w.committed {
		return ErrWriterCommitted
	}
	if _, ok := w.patientIDs[patientKey]; !ok {
		w.patientIDs[patientKey] = uint32(len(w.events))
		w.events = append(w.events, nil)
	}
	return nil
}

// Commit writes all buffered patients, the dictionary, and the extract
// metadata.
//
// Description:
//
//	Sorts each patient's events chronologically (stable, so same-time
//	events keep source order), then flushes everything in a single
//	Badger write batch. The writer is unusable afterwards. Commit on a
//	writer that saw no events still writes valid metadata: an empty
//	extract is a valid extract.
//
// Inputs:
//
//	ctx - Checked between patients; a cancelled context aborts the
//	      commit and the batch is discarded.
//
// Outputs:
//
//	error - Non-nil if the write batch fails; no partial extract
//	        metadata is left behind in that case.
func (w *DatabaseWriter) Commit(ctx context.Context) error {
	if w.committed {
		return ErrWriterCommitted
	}
	w.committed = true

	wb := w.db.NewWriteBatch()
	defer wb.Cancel()

	for id, events := range w.events {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("commit cancelled: %w", err)
		}

		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Start.Before(events[j].Start)
		})

		payload, err := json.Marshal(events)
		if err != nil {
			return fmt.Errorf("encode patient %d: %w", id, err)
		}
		if events == nil {
			// json.Marshal(nil slice) yields "null"; an empty patient
			// must round-trip as an empty sequence.
			payload = []byte("[]")
		}
		if err := wb.Set(patientKey(uint32(id)), payload); err != nil {
			return fmt.Errorf("write patient %d: %w", id, err)
		}
	}

	for id, code := range w.codes {
		if err := wb.Set(codeKey(uint32(id)), []byte(code)); err != nil {
			return fmt.Errorf("write code %d: %w", id, err)
		}
	}

	if err := wb.Set([]byte(metaPatientCountKey), encodeUint32(uint32(len(w.events)))); err != nil {
		return fmt.Errorf("write patient count: %w", err)
	}
	if err := wb.Set([]byte(metaCodeCountKey), encodeUint32(uint32(len(w.codes)))); err != nil {
		return fmt.Errorf("write code count: %w", err)
	}
	if err := wb.Set([]byte(metaBatchIDKey), []byte(w.batchID)); err != nil {
		return fmt.Errorf("write batch id: %w", err)
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush extract: %w", err)
	}
	return nil
}
