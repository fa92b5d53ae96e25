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
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/aaronlmathis/tapcsv/core"
)

// CSVWriterError wraps CSV-specific write errors with context.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds CSV write performance statistics.
type CSVWriterStats struct {
	FilesWritten    int64
	RecordsWritten  int64
	FlushCount      int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// CSVWriterOptions configures CSV output.
type CSVWriterOptions struct {
	Comma       rune
	UseCRLF     bool
	WriteHeader bool
	BatchSize   int
	Fs          afero.Fs
}

// WriterOptionCSV is a functional option.
type WriterOptionCSV func(*CSVWriterOptions)

func WithComma(delim rune) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Comma = delim
	}
}

func WithWriteHeader(write bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.WriteHeader = write
	}
}

func WithCSVBatchSize(size int) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.BatchSize = size
	}
}

func WithUseCRLF(useCRLF bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.UseCRLF = useCRLF
	}
}

// WithCSVFs sets the filesystem the output files are created on.
func WithCSVFs(fs afero.Fs) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Fs = fs
	}
}

// CSVWriter implements core.StreamSink with one CSV file per stream in a directory.
type CSVWriter struct {
	dir        string
	options    CSVWriterOptions
	file       io.WriteCloser
	writer     *csv.Writer
	stream     *streamState
	recordBuf  []core.Record
	stats      CSVWriterStats
	errorState bool
	mu         sync.Mutex
}

// NewCSVWriter creates a CSV writer that writes <dir>/<stream>.csv files.
func NewCSVWriter(dir string, opts ...WriterOptionCSV) (*CSVWriter, error) {
	options := CSVWriterOptions{
		Comma:       ',',
		UseCRLF:     false,
		WriteHeader: true,
		BatchSize:   0,
	}

	for _, opt := range opts {
		opt(&options)
	}
	if options.Fs == nil {
		options.Fs = afero.NewOsFs()
	}
	if dir == "" {
		return nil, &CSVWriterError{Op: "validate", Err: fmt.Errorf("output directory is required")}
	}
	if err := options.Fs.MkdirAll(dir, 0755); err != nil {
		return nil, &CSVWriterError{Op: "create_directory", Err: err}
	}

	return &CSVWriter{
		dir:       dir,
		options:   options,
		recordBuf: make([]core.Record, 0, max(options.BatchSize, 1)),
		stats:     CSVWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// BeginStream finishes the previous stream file and opens the file for stream.
func (c *CSVWriter) BeginStream(ctx context.Context, stream string, schema *core.Schema, keys []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := newStreamState(stream, schema, keys)
	if err != nil {
		return &CSVWriterError{Op: "begin_stream", Err: err}
	}
	if err := c.closeFileUnsafe(); err != nil {
		return err
	}

	file, err := c.options.Fs.Create(streamFileName(c.dir, stream, ".csv"))
	if err != nil {
		c.errorState = true
		return &CSVWriterError{Op: "open_file", Err: err}
	}

	cw := csv.NewWriter(file)
	cw.Comma = c.options.Comma
	cw.UseCRLF = c.options.UseCRLF

	c.file = file
	c.writer = cw
	c.stream = state
	c.errorState = false
	c.stats.FilesWritten++

	if c.options.WriteHeader {
		if err := cw.Write(state.columnNames()); err != nil {
			c.errorState = true
			return &CSVWriterError{Op: "write_header", Err: err}
		}
	}
	return nil
}

// Write implements the DataSink interface.
func (c *CSVWriter) Write(ctx context.Context, record core.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return &CSVWriterError{Op: "write", Err: errNoStream}
	}
	if c.errorState {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	for k, v := range record {
		if v == nil {
			c.stats.NullValueCounts[k]++
		}
	}

	c.recordBuf = append(c.recordBuf, record)
	c.stats.RecordsWritten++

	if c.options.BatchSize > 0 && len(c.recordBuf) >= c.options.BatchSize {
		if err := c.flushBufferUnsafe(); err != nil {
			c.errorState = true
			return &CSVWriterError{Op: "flush_batch", Err: err}
		}
	}

	return nil
}

// Flush implements the DataSink interface.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writer == nil {
		return nil
	}
	if err := c.flushBufferUnsafe(); err != nil {
		return &CSVWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the DataSink interface.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeFileUnsafe()
}

// closeFileUnsafe flushes and closes the current stream file (must hold mutex).
func (c *CSVWriter) closeFileUnsafe() error {
	if c.file == nil {
		return nil
	}
	flushErr := c.flushBufferUnsafe()
	closeErr := c.file.Close()
	c.file = nil
	c.writer = nil
	c.stream = nil

	if flushErr != nil {
		return &CSVWriterError{Op: "flush", Err: flushErr}
	}
	if closeErr != nil {
		return &CSVWriterError{Op: "close_file", Err: closeErr}
	}
	return nil
}

// flushBufferUnsafe writes buffered records to CSV (must hold mutex).
func (c *CSVWriter) flushBufferUnsafe() error {
	start := time.Now()

	for _, record := range c.recordBuf {
		row := make([]string, len(c.stream.columns))
		for i, col := range c.stream.columns {
			row[i], _ = formatValue(record[col.Name])
		}
		if err := c.writer.Write(row); err != nil {
			return &CSVWriterError{
				Op:  "write_row",
				Err: fmt.Errorf("failed to write CSV row: %w", err),
			}
		}
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return &CSVWriterError{
			Op:  "csv_flush",
			Err: fmt.Errorf("CSV writer flush error: %w", err),
		}
	}

	c.stats.FlushCount++
	c.stats.LastFlushTime = time.Now()
	c.stats.FlushDuration += time.Since(start)
	c.recordBuf = c.recordBuf[:0]

	return nil
}

// Stats returns write statistics.
func (c *CSVWriter) Stats() CSVWriterStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	statsCopy := c.stats
	statsCopy.NullValueCounts = make(map[string]int64)
	for k, v := range c.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
