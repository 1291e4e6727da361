// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bschilder/femr/services/dataset"
	"github.com/bschilder/femr/services/ingest"
	"github.com/bschilder/femr/storage/badgerdb"
)

// runIngest builds an extract from a source CSV tree.
func runIngest(cmd *cobra.Command, args []string) error {
	if sourcePath == "" {
		return errors.New("--source is required")
	}
	if databasePath == "" {
		return errors.New("--database is required")
	}

	logger := newLogger("ingest")
	defer logger.Close()

	db, err := badgerdb.Open(badgerdb.DefaultConfig(databasePath))
	if err != nil {
		logger.Error("open extract failed", "database", databasePath, "error", err)
		return err
	}
	defer db.Close()

	writer := dataset.NewDatabaseWriter(db)
	batchLogger := logger.With("batch_id", writer.BatchID())

	converters := make([]ingest.Converter, 0, len(eventPrefixes))
	for _, prefix := range eventPrefixes {
		converters = append(converters, ingest.CSVEventConverter{Prefix: prefix})
	}

	pipeline := &ingest.Pipeline{
		Converters: converters,
		Workers:    workers,
		Logger:     batchLogger.Slog(),
	}

	batchLogger.Info("ingest starting", "source", sourcePath, "workers", workers)

	if err := pipeline.Run(cmd.Context(), sourcePath, writer); err != nil {
		batchLogger.Error("ingest failed", "error", err)
		return fmt.Errorf("ingest %s: %w", sourcePath, err)
	}
	if err := writer.Commit(cmd.Context()); err != nil {
		batchLogger.Error("commit failed", "error", err)
		return fmt.Errorf("commit extract: %w", err)
	}

	batchLogger.Info("extract built",
		"database", databasePath,
		"patients", writer.PatientCount(),
		"codes", writer.CodeCount(),
	)
	return nil
}
