// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command femr manages clinical event extracts and computes summary
// statistics over them.
//
// Usage:
//
//	femr ingest --source ./csvs --database ./extract
//	femr stats --database ./extract --output ./final_counts.json
//	femr info --database ./extract
//
// All commands are one-shot batch jobs: they run to completion or exit
// non-zero on the first error, with no retries and no partial output.
package main

import (
	"os"
)

func main() {
	// Cobra handles argument parsing; RunE errors are printed by
	// Execute. The contract is simply a non-zero exit on any failure.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
