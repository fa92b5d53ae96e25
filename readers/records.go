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

package readers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aaronlmathis/tapcsv/core"
	"github.com/aaronlmathis/tapcsv/filesystem"
)

// RecordReaderStats holds statistics about a record reader's progress.
type RecordReaderStats struct {
	FilesOpened  int64
	RecordsRead  int64
	ReadDuration time.Duration
	LastReadTime time.Time
	CurrentFile  string
}

// RecordReader implements core.DataSource over the discovered files of a FileStream.
//
// Files are read one at a time in discovery order. The first row of every file is the
// header and is skipped. Each open file is closed when it is exhausted, when decoding
// fails, or when the reader is closed.
type RecordReader struct {
	stream *FileStream
	paths  []string
	fields []string

	next   int
	rows   core.Rows
	path   string
	mtime  interface{}
	header bool
	lineno int

	closed bool
	stats  RecordReaderStats
}

var _ core.DataSource = (*RecordReader)(nil)

func newRecordReader(stream *FileStream, paths, fields []string) *RecordReader {
	return &RecordReader{
		stream: stream,
		paths:  paths,
		fields: fields,
	}
}

// Read implements the DataSource interface.
func (r *RecordReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.closed {
		return nil, io.EOF
	}

	for {
		if r.rows == nil {
			if r.next >= len(r.paths) {
				return nil, io.EOF
			}
			if err := r.openNext(ctx); err != nil {
				return nil, err
			}
		}

		row, err := r.rows.Next()
		if err == io.EOF {
			if err := r.closeCurrent(); err != nil {
				return nil, &core.DecodeError{Path: r.path, Err: err}
			}
			continue
		}
		if err != nil {
			r.closeCurrent()
			return nil, err
		}

		if !r.header {
			r.header = true
			continue
		}

		record := r.buildRecord(row)
		r.lineno++

		r.stats.RecordsRead++
		r.stats.ReadDuration += time.Since(start)
		r.stats.LastReadTime = time.Now()
		return record, nil
	}
}

// buildRecord pairs values with field names positionally. Extra values or extra names
// are ignored; for a repeated name the later value wins.
func (r *RecordReader) buildRecord(row []string) core.Record {
	values := make([]interface{}, 0, len(row)+3)
	if r.stream.addMetadata {
		values = append(values, r.path, r.mtime, r.lineno)
	}
	for _, v := range row {
		values = append(values, v)
	}

	n := len(r.fields)
	if len(values) < n {
		n = len(values)
	}
	record := make(core.Record, n)
	for i := 0; i < n; i++ {
		record[r.fields[i]] = values[i]
	}
	return record
}

func (r *RecordReader) openNext(ctx context.Context) error {
	path := r.paths[r.next]
	r.next++

	mtime, err := r.stream.fs.ModTime(ctx, path)
	switch {
	case errors.Is(err, filesystem.ErrNotSupported):
		r.mtime = nil
		r.stream.warn(core.Warning{
			Kind:    core.WarningUnsupportedMetadata,
			Stream:  r.stream.name,
			Path:    path,
			Message: "filesystem does not report modification time",
			Err:     err,
		})
	case err != nil:
		return &core.StreamError{Stream: r.stream.name, Op: "mtime", Path: path, Err: err}
	default:
		r.mtime = mtime.UTC()
	}

	rows, err := r.stream.GetRows(ctx, path)
	if err != nil {
		return err
	}

	r.rows = rows
	r.path = path
	r.header = false
	r.lineno = 0
	r.stats.FilesOpened++
	r.stats.CurrentFile = path
	r.stream.logger.Debugw("reading file", "file", path)
	return nil
}

func (r *RecordReader) closeCurrent() error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	r.stats.CurrentFile = ""
	return err
}

// Close releases the currently open file, if any. Further reads return io.EOF.
func (r *RecordReader) Close() error {
	r.closed = true
	return r.closeCurrent()
}

// Stats returns a snapshot of the reader's progress.
func (r *RecordReader) Stats() RecordReaderStats {
	return r.stats
}
