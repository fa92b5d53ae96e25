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

package core

import (
	"context"
)

// Package core defines the core interfaces for tapcsv.
//
// This file contains the record source and sink contracts and the FileStream contract
// implemented per file format.

// DataSource defines the interface for record extraction.
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// DataSink defines the interface for record loading.
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the data sink.
	Close() error
}

// StreamSink is a DataSink that receives each stream's schema before its records.
type StreamSink interface {
	DataSink
	// BeginStream announces the stream the following records belong to.
	BeginStream(ctx context.Context, stream string, schema *Schema, keys []string) error
}

// Rows is a pull iterator over the raw field values of one file.
type Rows interface {
	// Next returns the next row or io.EOF.
	Next() ([]string, error)
	// Close releases the underlying file handle.
	Close() error
}

// FileStream is one configured source producing records under a single inferred schema.
type FileStream interface {
	// Name returns the stream name.
	Name() string
	// PrimaryKeys returns the configured key fields.
	PrimaryKeys() []string
	// GetFilePaths resolves the configured path into the eligible files, memoized.
	GetFilePaths(ctx context.Context) ([]string, error)
	// IsValidFilename reports whether a path has the format's expected name.
	IsValidFilename(path string) bool
	// GetRows opens path and returns its decoded rows.
	GetRows(ctx context.Context, path string) (Rows, error)
	// FieldNames returns the positional record field names, metadata first.
	FieldNames(ctx context.Context) ([]string, error)
	// GetSchema returns the inferred schema, memoized.
	GetSchema(ctx context.Context) (*Schema, error)
	// GetRecords returns a fresh record source over every discovered file.
	GetRecords(ctx context.Context, partition Partition) (DataSource, error)
}
