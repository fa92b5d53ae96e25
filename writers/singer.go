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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/aaronlmathis/tapcsv/core"
)

// SingerWriterError wraps Singer message errors with the failing operation.
type SingerWriterError struct {
	Op  string
	Err error
}

func (e *SingerWriterError) Error() string {
	return fmt.Sprintf("singer writer %s: %v", e.Op, e.Err)
}

func (e *SingerWriterError) Unwrap() error {
	return e.Err
}

// SingerWriterStats holds Singer output statistics.
type SingerWriterStats struct {
	SchemasWritten int64
	RecordsWritten int64
	BytesWritten   int64
}

type schemaMessage struct {
	Type          string       `json:"type"`
	Stream        string       `json:"stream"`
	Schema        *core.Schema `json:"schema"`
	KeyProperties []string     `json:"key_properties"`
}

type recordMessage struct {
	Type          string          `json:"type"`
	Stream        string          `json:"stream"`
	Record        json.RawMessage `json:"record"`
	TimeExtracted string          `json:"time_extracted,omitempty"`
}

// SingerOption configures a SingerWriter.
type SingerOption func(*SingerWriter)

// WithClock sets the clock used for time_extracted.
func WithClock(now func() time.Time) SingerOption {
	return func(s *SingerWriter) {
		s.now = now
	}
}

// WithoutTimeExtracted omits time_extracted from RECORD messages.
func WithoutTimeExtracted() SingerOption {
	return func(s *SingerWriter) {
		s.now = nil
	}
}

// SingerWriter implements core.StreamSink as line-delimited Singer SCHEMA and RECORD messages.
type SingerWriter struct {
	writer *bufio.Writer
	closer io.Closer
	now    func() time.Time
	stream *streamState
	stats  SingerWriterStats
	mu     sync.Mutex
}

// NewSingerWriter creates a Singer writer over w.
func NewSingerWriter(w io.WriteCloser, opts ...SingerOption) *SingerWriter {
	s := &SingerWriter{
		writer: bufio.NewWriter(w),
		closer: w,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginStream writes the SCHEMA message for stream.
func (s *SingerWriter) BeginStream(ctx context.Context, stream string, schema *core.Schema, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := newStreamState(stream, schema, keys)
	if err != nil {
		return &SingerWriterError{Op: "begin_stream", Err: err}
	}

	data, err := json.Marshal(schemaMessage{
		Type:          "SCHEMA",
		Stream:        stream,
		Schema:        schema,
		KeyProperties: state.keys,
	})
	if err != nil {
		return &SingerWriterError{Op: "marshal_schema", Err: err}
	}
	if err := s.writeLine(data); err != nil {
		return &SingerWriterError{Op: "write_schema", Err: err}
	}

	s.stream = state
	s.stats.SchemasWritten++
	return nil
}

// Write implements the DataSink interface.
func (s *SingerWriter) Write(ctx context.Context, record core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return &SingerWriterError{Op: "write", Err: errNoStream}
	}

	body, err := s.orderedRecord(record)
	if err != nil {
		return &SingerWriterError{Op: "marshal_record", Err: err}
	}

	msg := recordMessage{Type: "RECORD", Stream: s.stream.name, Record: body}
	if s.now != nil {
		msg.TimeExtracted = s.now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return &SingerWriterError{Op: "marshal_record", Err: err}
	}
	if err := s.writeLine(data); err != nil {
		return &SingerWriterError{Op: "write_record", Err: err}
	}

	s.stats.RecordsWritten++
	return nil
}

// Flush implements the DataSink interface.
func (s *SingerWriter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return &SingerWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the DataSink interface.
func (s *SingerWriter) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Stats returns write statistics.
func (s *SingerWriter) Stats() SingerWriterStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *SingerWriter) writeLine(data []byte) error {
	n, err := s.writer.Write(data)
	s.stats.BytesWritten += int64(n)
	if err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	s.stats.BytesWritten++
	return nil
}

// orderedRecord encodes record with schema columns first, then any extra keys sorted.
func (s *SingerWriter) orderedRecord(record core.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	seen := make(map[string]struct{}, len(s.stream.columns))
	first := true
	emit := func(key string, value interface{}) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, col := range s.stream.columns {
		seen[col.Name] = struct{}{}
		value, ok := record[col.Name]
		if !ok {
			continue
		}
		if err := emit(col.Name, value); err != nil {
			return nil, err
		}
	}

	var extra []string
	for key := range record {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		if err := emit(key, record[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
