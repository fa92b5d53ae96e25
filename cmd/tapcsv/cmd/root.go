//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of tapcsv.
//
// tapcsv is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tapcsv is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tapcsv. If not, see https://www.gnu.org/licenses/.

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tapcsv/config"
	"github.com/aaronlmathis/tapcsv/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile            string
	envFile            string
	logLevel           string
	logFormat          string
	addMetadataColumns bool
)

var rootCmd = &cobra.Command{
	Use:   "tapcsv",
	Short: "Singer tap for delimited text files",
	Long: `tapcsv reads delimited text files from local disk, S3 or GCS and emits their
records as streams, one stream per configured file definition.

The schema of every stream is inferred from the header row of its first file.
Records are written as Singer messages on stdout or loaded into CSV, Parquet,
PostgreSQL or MongoDB.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tapcsv.yaml",
		"Path to configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"Load environment variables from this file before reading the config (default .env when present)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().BoolVar(&addMetadataColumns, "add-metadata-columns", false,
		"Prepend _sdc_source_file, _sdc_source_file_mtime and _sdc_source_lineno to every record")
}

// loadEnvFile populates the environment used by ${VAR} substitution in the config.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		_ = godotenv.Load() // Ignore error if .env doesn't exist
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// loadConfig reads the config file and applies the CLI overrides.
func loadConfig(outputType, metricsTextfile string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(logLevel, logFormat, outputType, metricsTextfile, addMetadataColumns)
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

// stdoutCloser keeps the sink from closing the command's stdout.
type stdoutCloser struct {
	io.Writer
}

func (stdoutCloser) Close() error { return nil }
