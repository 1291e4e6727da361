// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bschilder/femr/pkg/logging"
	"github.com/bschilder/femr/services/dataset"
	"github.com/bschilder/femr/services/stats"
)

// runStats executes the aggregation pass: open the extract read-only,
// tally valid events per patient, write the histogram.
func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := resolveStatsConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger("stats").With("run_id", uuid.NewString())
	defer logger.Close()

	db, err := dataset.Open(cfg.Database, false, logger.Slog())
	if err != nil {
		logger.Error("open extract failed", "database", cfg.Database, "error", err)
		return err
	}
	defer db.Close()

	logger.Info("scan starting",
		"database", cfg.Database,
		"patients", db.Size(),
		"codes", db.Dictionary().Count(),
		"exclude_prefix", cfg.ExcludePrefix,
		"workers", cfg.Workers,
	)

	hist, err := stats.Run(cmd.Context(), db, stats.Options{
		ExcludePrefix:     cfg.ExcludePrefix,
		RequireMarkerCode: cfg.RequireMarkerCode,
		MarkerCode:        cfg.MarkerCode,
		Workers:           cfg.Workers,
	}, logger.Slog())
	if err != nil {
		logger.Error("scan failed", "error", err)
		return fmt.Errorf("aggregate: %w", err)
	}

	if err := stats.WriteHistogram(hist, cfg.Output); err != nil {
		logger.Error("write histogram failed", "output", cfg.Output, "error", err)
		return fmt.Errorf("write histogram: %w", err)
	}

	logger.Info("histogram written",
		"output", cfg.Output,
		"patients_tallied", hist.Total(),
		"buckets", len(hist),
	)
	return nil
}

// newLogger builds the per-command logger from the persistent flags.
func newLogger(service string) *logging.Logger {
	level := logging.LevelInfo
	if debugMode {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: service,
	})
}
