// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bschilder/femr/services/dataset"
)

// Options configures one aggregation run.
type Options struct {
	// ExcludePrefix is the code-string prefix that marks an event
	// invalid. An empty prefix matches every string and therefore
	// excludes every event.
	ExcludePrefix string

	// RequireMarkerCode restricts the histogram to patients carrying at
	// least one event with MarkerCode. Off by default; patients are
	// never filtered unless this is explicitly enabled.
	RequireMarkerCode bool

	// MarkerCode is the code ID checked when RequireMarkerCode is set.
	MarkerCode uint32

	// Workers sets the scan parallelism. Values <= 1 run the baseline
	// sequential scan. Higher values shard the patient ID range and
	// merge per-shard histograms by summing matching buckets.
	Workers int
}

// Run scans every patient in the extract and returns the histogram of
// valid-event counts.
//
// Description:
//
//	Iterates patient IDs 0..Size()-1 in increasing order (per shard
//	when parallel), counts each patient's valid events, and increments
//	the histogram bucket for that count. Every patient contributes to
//	exactly one bucket, so with the marker gate disabled the bucket
//	frequencies sum to Size(). Patient 0's count is logged at Debug
//	level as a scan diagnostic.
//
//	Fail fast: the first dictionary or database read error aborts the
//	whole run. There is no retry and no partial result.
//
// Inputs:
//
//	ctx - Checked between patients; cancellation aborts the run.
//	db - Open extract.
//	opts - Run configuration.
//	logger - Optional; nil discards diagnostics.
//
// Outputs:
//
//	Histogram - Completed frequency table.
//	error - Non-nil if any patient or code read fails.
func Run(ctx context.Context, db *dataset.PatientDatabase, opts Options, logger *slog.Logger) (Histogram, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	size := db.Size()
	if opts.Workers <= 1 || size == 0 {
		return scanRange(ctx, db, opts, 0, size, logger)
	}

	workers := opts.Workers
	if uint32(workers) > size {
		workers = int(size)
	}

	partials := make([]Histogram, workers)
	g, gctx := errgroup.WithContext(ctx)

	// Contiguous shards keep each worker's reads in key order.
	shard := size / uint32(workers)
	extra := size % uint32(workers)
	var lo uint32
	for i := 0; i < workers; i++ {
		hi := lo + shard
		if uint32(i) < extra {
			hi++
		}
		idx, start, end := i, lo, hi
		g.Go(func() error {
			h, err := scanRange(gctx, db, opts, start, end, logger)
			if err != nil {
				return err
			}
			partials[idx] = h
			return nil
		})
		lo = hi
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	hist := make(Histogram)
	for _, partial := range partials {
		hist.Merge(partial)
	}
	return hist, nil
}

// scanRange tallies patients in [lo, hi).
func scanRange(ctx context.Context, db *dataset.PatientDatabase, opts Options, lo, hi uint32, logger *slog.Logger) (Histogram, error) {
	dict := db.Dictionary()
	hist := make(Histogram)

	for id := lo; id < hi; id++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan aborted at patient %d: %w", id, err)
		}

		patient, err := db.GetPatient(id)
		if err != nil {
			return nil, fmt.Errorf("scan patient %d: %w", id, err)
		}

		var validEvents uint32
		hasMarker := false
		for _, event := range patient.Events {
			valid, err := ValidEvent(event.Code, dict, opts.ExcludePrefix)
			if err != nil {
				return nil, fmt.Errorf("scan patient %d: %w", id, err)
			}
			if valid {
				validEvents++
			}
			if event.Code == opts.MarkerCode {
				hasMarker = true
			}
		}

		if id == 0 {
			logger.Debug("first patient scanned", "valid_events", validEvents)
		}

		if opts.RequireMarkerCode && !hasMarker {
			continue
		}

		hist.Add(validEvents)
	}

	return hist, nil
}
