// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteHistogram serializes the histogram to path as a JSON object.
//
// Description:
//
//	Writes to a temporary file in the destination directory, fsyncs,
//	and renames into place. A failed run therefore never leaves a
//	partial or truncated artifact at path. An empty histogram writes
//	"{}" successfully.
//
// Inputs:
//
//	hist - Completed histogram.
//	path - Destination file path. The parent directory must exist.
//
// Outputs:
//
//	error - Non-nil if the destination cannot be created or written.
func WriteHistogram(hist Histogram, path string) error {
	data, err := json.Marshal(hist)
	if err != nil {
		return fmt.Errorf("encode histogram: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".histogram-*")
	if err != nil {
		return fmt.Errorf("create output in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close output: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize output %s: %w", path, err)
	}
	return nil
}
