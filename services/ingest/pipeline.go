// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bschilder/femr/services/dataset"
)

// Sentinel errors for the ingest pipeline.
var (
	// ErrAmbiguousConverter is returned when a source file matches more
	// than one converter's prefix.
	ErrAmbiguousConverter = errors.New("multiple converters match source file")

	// ErrNoConverters is returned when a pipeline is run without any
	// converters configured.
	ErrNoConverters = errors.New("no converters configured")
)

// Pipeline ingests a source tree into a dataset writer.
//
// Matched files are parsed by up to Workers goroutines; parsed rows are
// funneled through a single collector goroutine because the writer is
// not concurrency-safe. The run is fail-fast: the first parse or write
// error aborts everything and nothing is committed.
type Pipeline struct {
	// Converters are tried against every .csv / .csv.gz file under the
	// source tree, matching on relative path substring.
	Converters []Converter

	// Workers bounds parser concurrency. Values <= 0 mean 1.
	Workers int

	// Logger is optional; nil discards diagnostics.
	Logger *slog.Logger
}

// parsedRow is one source row routed to the collector.
type parsedRow struct {
	patientKey uint64
	events     []RawEvent
}

// Run walks sourceDir, parses every matched file, and feeds the writer.
//
// Description:
//
//	Walks the tree first so converter ambiguity fails before any work
//	starts, then parses matched files under an errgroup and collects
//	rows into w. Commit is the caller's responsibility; a pipeline
//	error means the writer must be discarded.
//
// Inputs:
//
//	ctx - Cancels parsing between rows.
//	sourceDir - Root of the source CSV tree.
//	w - Destination writer (uncommitted).
//
// Outputs:
//
//	error - Non-nil on the first walk, parse, or write failure.
func (p *Pipeline) Run(ctx context.Context, sourceDir string, w *dataset.DatabaseWriter) error {
	if len(p.Converters) == 0 {
		return ErrNoConverters
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	type work struct {
		path      string
		converter Converter
	}
	var matched []work

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isCSV(path) {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		var hits []Converter
		for _, c := range p.Converters {
			if strings.Contains(rel, c.FilePrefix()) {
				hits = append(hits, c)
			}
		}
		switch len(hits) {
		case 0:
			logger.Debug("no converter for file", "path", rel)
			return nil
		case 1:
			matched = append(matched, work{path: path, converter: hits[0]})
			return nil
		default:
			return fmt.Errorf("%w: %s", ErrAmbiguousConverter, rel)
		}
	})
	if err != nil {
		return fmt.Errorf("walk source %s: %w", sourceDir, err)
	}

	logger.Info("source tree scanned", "files", len(matched))

	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	rows := make(chan parsedRow, 256)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	parseDone := make(chan error, 1)
	go func() {
		for _, item := range matched {
			item := item
			g.Go(func() error {
				return parseFile(gctx, item.path, item.converter, rows)
			})
		}
		err := g.Wait()
		close(rows)
		parseDone <- err
	}()

	// Single collector: the writer interns IDs and is not thread-safe.
	var collectErr error
	for row := range rows {
		if collectErr != nil {
			continue // drain so parsers don't block
		}
		if len(row.events) == 0 {
			collectErr = w.AddPatient(row.patientKey)
			continue
		}
		for _, ev := range row.events {
			if err := w.AddEvent(row.patientKey, ev.Code, ev.Start, ev.Value); err != nil {
				collectErr = err
				break
			}
		}
	}

	if err := <-parseDone; err != nil {
		return err
	}
	return collectErr
}

// parseFile streams one CSV (optionally gzipped) into the row channel.
func parseFile(ctx context.Context, path string, converter Converter, out chan<- parsedRow) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gunzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, name := range header {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	idField := converter.PatientIDField()
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}

		patientKey, err := strconv.ParseUint(row[idField], 10, 64)
		if err != nil {
			return fmt.Errorf("%s line %d: bad %s %q", path, line, idField, row[idField])
		}

		events, err := converter.Events(row)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}

		select {
		case out <- parsedRow{patientKey: patientKey, events: events}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isCSV(path string) bool {
	return strings.HasSuffix(path, ".csv") || strings.HasSuffix(path, ".csv.gz")
}
