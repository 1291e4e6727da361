// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	databasePath      string
	outputPath        string
	configPath        string
	excludePrefix     string
	requireMarkerCode bool
	markerCode        uint32
	workers           int
	sourcePath        string
	eventPrefixes     []string
	debugMode         bool
	logDir            string

	rootCmd = &cobra.Command{
		Use:   "femr",
		Short: "Build and summarize clinical event extracts",
		Long: `femr is a batch tool for clinical event extracts: it ingests source
CSV tables into an embedded extract database and computes summary
statistics over it, such as the histogram of valid event counts per
patient.`,
		SilenceUsage: true,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Compute the valid-event-count histogram and write it as JSON",
		RunE:  runStats, // Defined in cmd_stats.go
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Build an extract from a tree of source CSV files",
		RunE:  runIngest, // Defined in cmd_ingest.go
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print extract metadata (patient count, code count, batch id)",
		RunE:  runInfo, // Defined in cmd_info.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Also write JSON logs to this directory")

	statsCmd.Flags().StringVar(&databasePath, "database", "", "Extract directory to scan")
	statsCmd.Flags().StringVar(&outputPath, "output", "", "Destination file for the histogram JSON")
	statsCmd.Flags().StringVar(&excludePrefix, "exclude-prefix", "STANFORD_OBS", "Code-string prefix marking an event invalid")
	statsCmd.Flags().BoolVar(&requireMarkerCode, "require-marker-code", false, "Only tally patients carrying the marker code")
	statsCmd.Flags().Uint32Var(&markerCode, "marker-code", 0, "Marker code id checked by --require-marker-code")
	statsCmd.Flags().IntVar(&workers, "workers", 1, "Scan parallelism (1 = sequential)")
	statsCmd.Flags().StringVar(&configPath, "config", "", "Optional YAML file supplying defaults for these flags")

	ingestCmd.Flags().StringVar(&sourcePath, "source", "", "Root of the source CSV tree")
	ingestCmd.Flags().StringVar(&databasePath, "database", "", "Extract directory to create")
	ingestCmd.Flags().StringSliceVar(&eventPrefixes, "event-prefix", []string{"observation"}, "Path prefixes of event tables to ingest")
	ingestCmd.Flags().IntVar(&workers, "workers", 4, "Parser concurrency")

	infoCmd.Flags().StringVar(&databasePath, "database", "", "Extract directory to inspect")

	rootCmd.AddCommand(statsCmd, ingestCmd, infoCmd)
}
