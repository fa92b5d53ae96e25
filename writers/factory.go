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

package writers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aaronlmathis/tapcsv/config"
	"github.com/aaronlmathis/tapcsv/core"
)

// New builds the sink selected by cfg.Type. Singer output goes to stdout unless cfg.File is set.
func New(ctx context.Context, cfg config.OutputConfig, stdout io.WriteCloser) (core.StreamSink, error) {
	switch cfg.Type {
	case "", "singer":
		if cfg.File == "" {
			return NewSingerWriter(stdout), nil
		}
		f, err := os.Create(cfg.File)
		if err != nil {
			return nil, &SingerWriterError{Op: "open_file", Err: err}
		}
		return NewSingerWriter(f), nil

	case "csv":
		w, err := NewCSVWriter(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return w, nil

	case "parquet":
		compression, err := ParseCompression(cfg.Parquet.Compression)
		if err != nil {
			return nil, &ParquetWriterError{Op: "validate", Err: err}
		}
		w, err := NewParquetWriter(cfg.Dir,
			WithCompression(compression),
			WithBatchSize(int64(cfg.Parquet.BatchSize)),
		)
		if err != nil {
			return nil, err
		}
		return w, nil

	case "postgres":
		w, err := NewPostgresWriter(
			WithPostgresDSN(cfg.Postgres.DSN),
			WithPostgresSchema(cfg.Postgres.Schema),
			WithCreateTable(cfg.Postgres.CreateTable),
			WithTruncateTable(cfg.Postgres.Truncate),
			WithPostgresBatchSize(cfg.Postgres.BatchSize),
		)
		if err != nil {
			return nil, err
		}
		return w, nil

	case "mongodb":
		w, err := NewMongoWriter(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database,
			WithMongoBatchSize(cfg.MongoDB.BatchSize),
		)
		if err != nil {
			return nil, err
		}
		return w, nil

	default:
		return nil, fmt.Errorf("unknown output type %q", cfg.Type)
	}
}
