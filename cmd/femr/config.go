// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// StatsConfig is the fully resolved configuration of one stats run.
//
// Values come from the optional YAML config file, overridden by any
// flag the user set explicitly. There are no embedded path defaults:
// database and output must always be supplied.
type StatsConfig struct {
	Database          string `yaml:"database" validate:"required"`
	Output            string `yaml:"output" validate:"required"`
	ExcludePrefix     string `yaml:"exclude_prefix"`
	RequireMarkerCode bool   `yaml:"require_marker_code"`
	MarkerCode        uint32 `yaml:"marker_code"`
	Workers           int    `yaml:"workers" validate:"gte=0,lte=1024"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// resolveStatsConfig merges the YAML config file (if any) with command
// flags and validates the result. Flags the user set explicitly win
// over file values; untouched flags only contribute their defaults when
// the file left the field empty.
func resolveStatsConfig(cmd *cobra.Command) (StatsConfig, error) {
	var cfg StatsConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("database") || cfg.Database == "" {
		cfg.Database = databasePath
	}
	if flags.Changed("output") || cfg.Output == "" {
		cfg.Output = outputPath
	}
	if flags.Changed("exclude-prefix") || cfg.ExcludePrefix == "" {
		cfg.ExcludePrefix = excludePrefix
	}
	if flags.Changed("require-marker-code") {
		cfg.RequireMarkerCode = requireMarkerCode
	}
	if flags.Changed("marker-code") {
		cfg.MarkerCode = markerCode
	}
	if flags.Changed("workers") || cfg.Workers == 0 {
		cfg.Workers = workers
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
