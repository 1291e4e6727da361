// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Dictionary is the read-only integer-to-string code resolution table
// of an extract. Code IDs are dense in [0, Count()).
//
// Thread Safety: safe for concurrent use.
type Dictionary struct {
	db    *badger.DB
	count uint32
}

// Count returns the number of distinct codes in the dictionary.
func (d *Dictionary) Count() uint32 {
	return d.count
}

// Lookup resolves a code ID to its string form.
//
// Description:
//
//	Fails with ErrUnknownCode for IDs outside [0, Count()) or with no
//	stored entry. Callers must propagate that error; an unknown code
//	aborts the whole run.
//
// Inputs:
//
//	code - Integer code ID.
//
// Outputs:
//
//	string - The decoded code string.
//	error - ErrUnknownCode, or a wrapped read error.
func (d *Dictionary) Lookup(code uint32) (string, error) {
	if code >= d.count {
		return "", fmt.Errorf("%w: %d (dictionary size %d)", ErrUnknownCode, code, d.count)
	}

	var decoded string
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(codeKey(code))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownCode, code)
		}
		if err != nil {
			return fmt.Errorf("read code %d: %w", code, err)
		}
		return item.Value(func(val []byte) error {
			decoded = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return decoded, nil
}
