// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/bschilder/femr/storage/badgerdb"
)

// PatientDatabase is read access to an extract: patient count, random
// access by dense patient ID, and the code dictionary.
//
// Thread Safety: safe for concurrent use; all reads go through Badger
// read transactions.
type PatientDatabase struct {
	db     *badger.DB
	ownsDB bool

	patientCount uint32
	batchID      string
	dict         *Dictionary
	logger       *slog.Logger
}

// Open opens the extract at path.
//
// Description:
//
//	Opens the underlying BadgerDB (read-only unless readWrite is set;
//	consumers of this package always pass readWrite=false, the
//	read-write mode exists for ingest tooling) and loads the extract
//	metadata. An extract with no metadata is corrupt.
//
// Inputs:
//
//	path - Extract directory.
//	readWrite - Open the store mutable. Scans never need this.
//	logger - Optional logger; nil disables Badger's internal logging.
//
// Outputs:
//
//	*PatientDatabase - The opened database. Caller must Close().
//	error - Non-nil if the store cannot be opened or metadata is missing.
func Open(path string, readWrite bool, logger *slog.Logger) (*PatientDatabase, error) {
	cfg := badgerdb.ReadOnlyConfig(path)
	if readWrite {
		cfg = badgerdb.DefaultConfig(path)
	}
	cfg.Logger = logger

	db, err := badgerdb.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open extract %s: %w", path, err)
	}

	pdb, err := FromBadger(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	pdb.ownsDB = true
	return pdb, nil
}

// FromBadger wraps an already-open BadgerDB as a PatientDatabase.
//
// Description:
//
//	Loads extract metadata from the store. The caller retains ownership
//	of db; Close() on the returned database will not close it. Used by
//	ingest (which opened the store to write it) and by tests running on
//	in-memory stores.
//
// Outputs:
//
//	*PatientDatabase - Wrapping database.
//	error - ErrCorruptRecord if the patient or code count is missing.
func FromBadger(db *badger.DB, logger *slog.Logger) (*PatientDatabase, error) {
	pdb := &PatientDatabase{db: db, logger: logger}

	err := db.View(func(txn *badger.Txn) error {
		var err error
		pdb.patientCount, err = readUint32(txn, metaPatientCountKey)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, metaPatientCountKey, err)
		}

		codeCount, err := readUint32(txn, metaCodeCountKey)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, metaCodeCountKey, err)
		}
		pdb.dict = &Dictionary{db: db, count: codeCount}

		// Batch ID is informational; older extracts may not carry one.
		item, err := txn.Get([]byte(metaBatchIDKey))
		if err == nil {
			return item.Value(func(val []byte) error {
				pdb.batchID = string(val)
				return nil
			})
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return pdb, nil
}

// Size returns the number of patients in the extract.
func (d *PatientDatabase) Size() uint32 {
	return d.patientCount
}

// BatchID returns the UUID of the ingest run that built the extract,
// or "" if the extract predates batch tracking.
func (d *PatientDatabase) BatchID() string {
	return d.batchID
}

// Dictionary returns the extract's code dictionary.
func (d *PatientDatabase) Dictionary() *Dictionary {
	return d.dict
}

// GetPatient loads the patient with the given dense ID.
//
// Description:
//
//	Random access by patient index. The returned patient's events are
//	in the order they were persisted (chronological).
//
// Inputs:
//
//	id - Dense patient ID in [0, Size()).
//
// Outputs:
//
//	*Patient - The patient and its full event sequence.
//	error - ErrPatientOutOfRange for IDs outside [0, Size());
//	        ErrCorruptRecord for a missing or undecodable record.
func (d *PatientDatabase) GetPatient(id uint32) (*Patient, error) {
	if id >= d.patientCount {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrPatientOutOfRange, id, d.patientCount)
	}

	p := &Patient{ID: id}
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(patientKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: patient %d missing", ErrCorruptRecord, id)
		}
		if err != nil {
			return fmt.Errorf("read patient %d: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &p.Events); err != nil {
				return fmt.Errorf("%w: patient %d: %v", ErrCorruptRecord, id, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the database. A no-op when the underlying store is
// owned by the caller (FromBadger).
func (d *PatientDatabase) Close() error {
	if !d.ownsDB {
		return nil
	}
	return d.db.Close()
}

// readUint32 reads a big-endian uint32 value at key.
func readUint32(txn *badger.Txn, key string) (uint32, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return 0, err
	}
	var v uint32
	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("expected 4 bytes, got %d", len(val))
		}
		v = binary.BigEndian.Uint32(val)
		return nil
	})
	return v, err
}
