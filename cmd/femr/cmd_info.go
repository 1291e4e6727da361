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
)

// runInfo prints extract metadata to stdout.
func runInfo(cmd *cobra.Command, args []string) error {
	if databasePath == "" {
		return errors.New("--database is required")
	}

	db, err := dataset.Open(databasePath, false, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "patients: %d\n", db.Size())
	fmt.Fprintf(cmd.OutOrStdout(), "codes:    %d\n", db.Dictionary().Count())
	if id := db.BatchID(); id != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "batch:    %s\n", id)
	}
	return nil
}
