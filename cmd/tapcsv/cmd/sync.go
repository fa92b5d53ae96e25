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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tapcsv"
	"github.com/aaronlmathis/tapcsv/metrics"
	"github.com/aaronlmathis/tapcsv/writers"
)

var (
	outputType      string
	metricsTextfile string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Extract every stream into the configured output",
	Long: `Sync announces each stream with its inferred schema and then writes all of its
records, stream by stream in configuration order. The first fatal error stops
the run.

Examples:
  tapcsv sync --config tapcsv.yaml > messages.jsonl
  tapcsv sync --config tapcsv.yaml --output parquet
  tapcsv sync --config tapcsv.yaml --metrics-textfile /var/lib/node_exporter/tapcsv.prom`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&outputType, "output", "o", "",
		"Override output type (singer, csv, parquet, postgres, mongodb)")
	syncCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "",
		"Write run metrics in Prometheus text format to this file")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(outputType, metricsTextfile)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	tap, err := tapcsv.New(ctx, cfg, tapcsv.WithLogger(log), tapcsv.WithMetrics(collector))
	if err != nil {
		return err
	}

	sink, err := writers.New(ctx, cfg.Output, stdoutCloser{cmd.OutOrStdout()})
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	syncErr := tap.Sync(ctx, sink)
	closeErr := sink.Close()
	if syncErr != nil {
		if ctx.Err() == context.Canceled {
			log.Warn("sync interrupted")
		}
		return fmt.Errorf("sync failed: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output: %w", closeErr)
	}

	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	log.Infow("sync complete", "streams", len(tap.Streams()), "output", cfg.Output.Type)
	return nil
}
