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

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tapcsv"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and resolve stream paths",
	Long: `Validate checks the configuration file and resolves the eligible files of
every stream without reading any records.

Example:
  tapcsv validate --config tapcsv.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("", "")
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	tap, err := tapcsv.New(ctx, cfg, tapcsv.WithLogger(log))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config file: %s\n", cfgFile)
	fmt.Fprintf(out, "Streams: %d\n", len(tap.Streams()))
	for _, s := range tap.Streams() {
		paths, err := s.GetFilePaths(ctx)
		if err != nil {
			return fmt.Errorf("stream %q: %w", s.Name(), err)
		}
		fmt.Fprintf(out, "  %s: %d file(s)\n", s.Name(), len(paths))
	}
	return nil
}
