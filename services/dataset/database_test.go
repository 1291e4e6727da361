// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bschilder/femr/storage/badgerdb"
)

func day(d int) time.Time {
	return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC)
}

// buildExtract writes a small extract into an in-memory store and
// reopens it for reading.
func buildExtract(t *testing.T, populate func(w *DatabaseWriter)) *PatientDatabase {
	t.Helper()

	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w := NewDatabaseWriter(db)
	populate(w)
	require.NoError(t, w.Commit(context.Background()))

	pdb, err := FromBadger(db, nil)
	require.NoError(t, err)
	return pdb
}

// TestRoundTrip verifies patients, events, and codes survive the
// write-read cycle with dense first-seen IDs.
func TestRoundTrip(t *testing.T) {
	pdb := buildExtract(t, func(w *DatabaseWriter) {
		require.NoError(t, w.AddEvent(900, "ICD10/E11.9", day(2), "diag"))
		require.NoError(t, w.AddEvent(900, "LOINC/2345-7", day(1), ""))
		require.NoError(t, w.AddEvent(37, "ICD10/E11.9", day(5), ""))
	})

	assert.EqualValues(t, 2, pdb.Size())
	assert.EqualValues(t, 2, pdb.Dictionary().Count())
	assert.NotEmpty(t, pdb.BatchID())

	// Patient 0 is external key 900, first seen; events sorted by time.
	p0, err := pdb.GetPatient(0)
	require.NoError(t, err)
	require.Len(t, p0.Events, 2)
	assert.True(t, p0.Events[0].Start.Before(p0.Events[1].Start))
	assert.Equal(t, "diag", p0.Events[1].Value)

	// First-seen code string is code 0.
	decoded, err := pdb.Dictionary().Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, "ICD10/E11.9", decoded)

	decoded, err = pdb.Dictionary().Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, "LOINC/2345-7", decoded)
}

// TestEmptyExtract verifies a committed writer with no events produces
// a valid zero-patient extract.
func TestEmptyExtract(t *testing.T) {
	pdb := buildExtract(t, func(w *DatabaseWriter) {})

	assert.EqualValues(t, 0, pdb.Size())
	assert.EqualValues(t, 0, pdb.Dictionary().Count())

	_, err := pdb.GetPatient(0)
	assert.ErrorIs(t, err, ErrPatientOutOfRange)
}

// TestPatientWithoutEvents verifies AddPatient reserves a slot that
// round-trips as an empty sequence.
func TestPatientWithoutEvents(t *testing.T) {
	pdb := buildExtract(t, func(w *DatabaseWriter) {
		require.NoError(t, w.AddPatient(1))
		require.NoError(t, w.AddEvent(2, "X", day(1), ""))
	})

	require.EqualValues(t, 2, pdb.Size())
	p0, err := pdb.GetPatient(0)
	require.NoError(t, err)
	assert.Empty(t, p0.Events)
}

func TestLookupUnknownCode(t *testing.T) {
	pdb := buildExtract(t, func(w *DatabaseWriter) {
		require.NoError(t, w.AddEvent(1, "X", day(1), ""))
	})

	_, err := pdb.Dictionary().Lookup(5)
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestGetPatientOutOfRange(t *testing.T) {
	pdb := buildExtract(t, func(w *DatabaseWriter) {
		require.NoError(t, w.AddEvent(1, "X", day(1), ""))
	})

	_, err := pdb.GetPatient(1)
	assert.ErrorIs(t, err, ErrPatientOutOfRange)
	_, err = pdb.GetPatient(4096)
	assert.ErrorIs(t, err, ErrPatientOutOfRange)
}

// TestCorruptRecord verifies a patient key missing inside the valid ID
// range surfaces as corruption, not as out-of-range.
func TestCorruptRecord(t *testing.T) {
	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	w := NewDatabaseWriter(db)
	require.NoError(t, w.AddEvent(1, "X", day(1), ""))
	require.NoError(t, w.Commit(context.Background()))

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Delete(patientKey(0))
	})
	require.NoError(t, err)

	pdb, err := FromBadger(db, nil)
	require.NoError(t, err)

	_, err = pdb.GetPatient(0)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

// TestMissingMetadata verifies an uninitialized store is rejected.
func TestMissingMetadata(t *testing.T) {
	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	_, err = FromBadger(db, nil)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestWriterRejectsUseAfterCommit(t *testing.T) {
	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	w := NewDatabaseWriter(db)
	require.NoError(t, w.Commit(context.Background()))

	assert.ErrorIs(t, w.AddEvent(1, "X", day(1), ""), ErrWriterCommitted)
	assert.ErrorIs(t, w.AddPatient(1), ErrWriterCommitted)
	assert.ErrorIs(t, w.Commit(context.Background()), ErrWriterCommitted)
}

// TestPersistentRoundTrip verifies an extract written to disk reopens
// read-only through Open.
func TestPersistentRoundTrip(t *testing.T) {
	dir, err := badgerdb.TempDir("dataset-test-")
	require.NoError(t, err)
	defer badgerdb.CleanupDir(dir)

	db, err := badgerdb.Open(badgerdb.DefaultConfig(dir))
	require.NoError(t, err)

	w := NewDatabaseWriter(db)
	require.NoError(t, w.AddEvent(7, "STANFORD_OBS_A", day(1), ""))
	require.NoError(t, w.Commit(context.Background()))
	require.NoError(t, db.Close())

	pdb, err := Open(dir, false, nil)
	require.NoError(t, err)
	defer pdb.Close()

	require.EqualValues(t, 1, pdb.Size())
	p, err := pdb.GetPatient(0)
	require.NoError(t, err)
	require.Len(t, p.Events, 1)

	decoded, err := pdb.Dictionary().Lookup(p.Events[0].Code)
	require.NoError(t, err)
	assert.Equal(t, "STANFORD_OBS_A", decoded)
}
