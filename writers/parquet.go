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
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/spf13/afero"

	"github.com/aaronlmathis/tapcsv/core"
)

// This file implements a batching Parquet sink that writes one file per stream, with the Arrow
// schema derived from the stream schema.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "open_file", "schema", "write_batch")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	FilesWritten    int64
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
	Fs           afero.Fs             // Filesystem the files are created on
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithParquetFs sets the filesystem the output files are created on.
func WithParquetFs(fs afero.Fs) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Fs = fs
	}
}

// ParseCompression maps a codec name onto its Parquet compression.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unknown compression %q", name)
	}
}

// ParquetWriter implements core.StreamSink with one Parquet file per stream in a directory.
type ParquetWriter struct {
	dir          string
	opts         *ParquetWriterOptions
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	builder      *array.RecordBuilder
	stream       *streamState
	recordBuffer []core.Record
	allocator    memory.Allocator
	stats        WriterStats
	errorState   bool
	mu           sync.Mutex
}

// NewParquetWriter creates a Parquet writer that writes <dir>/<stream>.parquet files.
func NewParquetWriter(dir string, options ...WriterOption) (*ParquetWriter, error) {
	opts := (&ParquetWriterOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if dir == "" {
		return nil, &ParquetWriterError{Op: "validate", Err: fmt.Errorf("output directory is required")}
	}
	if err := opts.Fs.MkdirAll(dir, 0755); err != nil {
		return nil, &ParquetWriterError{
			Op:  "create_directory",
			Err: fmt.Errorf("failed to create directory %s: %w", dir, err),
		}
	}

	return &ParquetWriter{
		dir:          dir,
		opts:         opts,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		allocator:    memory.NewGoAllocator(),
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	result := &ParquetWriterOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.RowGroupSize <= 0 {
		result.RowGroupSize = 10000
	}
	if result.Compression == 0 {
		result.Compression = compress.Codecs.Snappy
	}
	return result
}

// ArrowSchema converts a stream schema into its Arrow form.
func ArrowSchema(schema *core.Schema) *arrow.Schema {
	props := schema.Properties()
	fields := make([]arrow.Field, len(props))
	for i, p := range props {
		fields[i] = arrow.Field{Name: p.Name, Type: arrowType(p.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t core.PropertyType) arrow.DataType {
	switch t {
	case core.TypeDateTime:
		return arrow.FixedWidthTypes.Timestamp_us
	case core.TypeInteger:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.BinaryTypes.String
	}
}

// BeginStream closes the previous stream file and starts a new one for stream.
func (p *ParquetWriter) BeginStream(ctx context.Context, stream string, schema *core.Schema, keys []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := newStreamState(stream, schema, keys)
	if err != nil {
		return &ParquetWriterError{Op: "begin_stream", Err: err}
	}
	if err := p.closeFileUnsafe(); err != nil {
		return err
	}

	filename := streamFileName(p.dir, stream, ".parquet")
	file, err := p.opts.Fs.Create(filename)
	if err != nil {
		p.errorState = true
		return &ParquetWriterError{
			Op:  "open_file",
			Err: fmt.Errorf("failed to create parquet file %s: %w", filename, err),
		}
	}

	arrowSchema := ArrowSchema(schema)
	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	writer, err := pqarrow.NewFileWriter(arrowSchema, file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		file.Close()
		p.errorState = true
		return &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}

	p.writer = writer
	p.schema = arrowSchema
	p.builder = array.NewRecordBuilder(p.allocator, arrowSchema)
	p.stream = state
	p.errorState = false
	p.stats.FilesWritten++
	return nil
}

// Write implements the DataSink interface.
// Buffers records and writes in batches.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return &ParquetWriterError{Op: "write", Err: errNoStream}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return &ParquetWriterError{
				Op:  "flush_batch",
				Err: fmt.Errorf("failed to flush batch: %w", err),
			}
		}
	}
	return nil
}

// Flush implements the DataSink interface.
// Forces any buffered records to be written to the current file.
func (p *ParquetWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBatch()
}

// Close implements the DataSink interface.
func (p *ParquetWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closeFileUnsafe()
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	statsCopy := p.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// closeFileUnsafe flushes and closes the current stream file (must hold mutex).
// Closing the pqarrow writer also closes the underlying file.
func (p *ParquetWriter) closeFileUnsafe() error {
	if p.writer == nil {
		return nil
	}

	flushErr := p.flushBatch()
	p.builder.Release()
	closeErr := p.writer.Close()

	p.writer = nil
	p.builder = nil
	p.schema = nil
	p.stream = nil
	p.recordBuffer = p.recordBuffer[:0]

	if flushErr != nil {
		return &ParquetWriterError{Op: "flush_remaining", Err: flushErr}
	}
	if closeErr != nil {
		return &ParquetWriterError{
			Op:  "close_writer",
			Err: fmt.Errorf("failed to close parquet writer: %w", closeErr),
		}
	}
	return nil
}

// flushBatch writes the current buffer as one Arrow record (must hold mutex).
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 || p.writer == nil {
		return nil
	}
	start := time.Now()

	for _, record := range p.recordBuffer {
		for i, col := range p.stream.columns {
			if err := p.appendValue(p.builder.Field(i), col.Name, record[col.Name]); err != nil {
				return &ParquetWriterError{
					Op:  "append_value",
					Err: fmt.Errorf("failed to append value for field %s: %w", col.Name, err),
				}
			}
		}
	}

	rec := p.builder.NewRecord()
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write record batch: %w", err),
		}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// appendValue appends a value to the matching Arrow array builder.
func (p *ParquetWriter) appendValue(builder array.Builder, field string, value interface{}) error {
	if value == nil {
		builder.AppendNull()
		p.stats.NullValueCounts[field]++
		return nil
	}

	switch b := builder.(type) {
	case *array.StringBuilder:
		s, _ := formatValue(value)
		b.Append(s)
	case *array.Int64Builder:
		switch v := value.(type) {
		case int:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case *array.TimestampBuilder:
		switch v := value.(type) {
		case time.Time:
			b.Append(arrow.Timestamp(v.UnixMicro()))
		default:
			return fmt.Errorf("expected time.Time, got %T", value)
		}
	default:
		return fmt.Errorf("unsupported builder type %T", builder)
	}
	return nil
}
