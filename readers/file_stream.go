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
	"fmt"
	"io"
	"sync"

	"github.com/aaronlmathis/tapcsv/config"
	"github.com/aaronlmathis/tapcsv/core"
	"github.com/aaronlmathis/tapcsv/filesystem"
	"github.com/aaronlmathis/tapcsv/logger"
)

// RowDecoder yields the rows of one open file.
type RowDecoder interface {
	// Read returns the next row or io.EOF.
	Read() ([]string, error)
	// Line returns the number of physical lines consumed so far.
	Line() int
}

// Format supplies the format-specific parts of a FileStream.
type Format interface {
	// Name is a short format name used in diagnostics, e.g. "csv".
	Name() string
	// IsValidFilename reports whether path has the name this format expects.
	IsValidFilename(path string) bool
	// NewDecoder decodes rows from raw file content.
	NewDecoder(r io.Reader) (RowDecoder, error)
}

// StreamOption configures a FileStream.
type StreamOption func(*FileStream)

// WithLogger sets the logger warnings and progress are written to.
func WithLogger(log *logger.Logger) StreamOption {
	return func(s *FileStream) {
		s.logger = log
	}
}

// WithWarningHandler registers a callback that receives every warning.
func WithWarningHandler(handler core.WarningHandler) StreamOption {
	return func(s *FileStream) {
		s.onWarning = handler
	}
}

// WithMetadataColumns enables the three provenance columns.
func WithMetadataColumns(enabled bool) StreamOption {
	return func(s *FileStream) {
		s.addMetadata = enabled
	}
}

// FileStream is one configured source: the files below a path, decoded with one Format
// and described by a schema inferred from the header of the first file.
//
// The discovered file set and the schema are computed on first use and kept for the
// lifetime of the stream. Construct a new FileStream to pick up filesystem changes.
type FileStream struct {
	name        string
	cfg         config.FileConfig
	fs          filesystem.Filesystem
	format      Format
	addMetadata bool
	logger      *logger.Logger
	onWarning   core.WarningHandler

	pathsMu   sync.Mutex
	filePaths []string

	schemaMu sync.Mutex
	schema   *core.Schema
}

var _ core.FileStream = (*FileStream)(nil)

// NewFileStream creates a stream for cfg reading through fs.
func NewFileStream(cfg config.FileConfig, fs filesystem.Filesystem, format Format, options ...StreamOption) *FileStream {
	s := &FileStream{
		name:   cfg.Entity,
		cfg:    cfg.WithDefaults(),
		fs:     fs,
		format: format,
		logger: logger.NewNop(),
	}
	for _, option := range options {
		option(s)
	}
	s.logger = s.logger.WithStream(s.name)
	return s
}

// Name returns the stream name.
func (s *FileStream) Name() string {
	return s.name
}

// PrimaryKeys returns the configured key fields.
func (s *FileStream) PrimaryKeys() []string {
	return append([]string{}, s.cfg.Keys...)
}

// IsValidFilename reports whether path has the format's expected name.
func (s *FileStream) IsValidFilename(path string) bool {
	return s.format.IsValidFilename(path)
}

// GetFilePaths resolves the configured path into the ordered list of eligible files.
//
// A directory is walked recursively; a file is checked on its own. Files failing the
// name check are skipped with a warning. The first successful result is reused by every
// later call without touching the filesystem; failures are not remembered.
func (s *FileStream) GetFilePaths(ctx context.Context) ([]string, error) {
	s.pathsMu.Lock()
	defer s.pathsMu.Unlock()

	if s.filePaths != nil {
		return append([]string(nil), s.filePaths...), nil
	}

	path := s.cfg.Path
	exists, err := s.fs.Exists(ctx, path)
	if err != nil {
		return nil, &core.StreamError{Stream: s.name, Op: "discover", Path: path, Err: err}
	}
	if !exists {
		return nil, &core.StreamError{Stream: s.name, Op: "discover", Path: path, Err: core.ErrPathNotFound}
	}

	isDir, err := s.fs.IsDir(ctx, path)
	if err != nil {
		return nil, &core.StreamError{Stream: s.name, Op: "discover", Path: path, Err: err}
	}

	var paths []string
	accept := func(p string) error {
		if s.IsValidFilename(p) {
			paths = append(paths, p)
		} else {
			s.warn(core.Warning{
				Kind:    core.WarningInvalidFilename,
				Stream:  s.name,
				Path:    p,
				Message: fmt.Sprintf("skipping non-%s file", s.format.Name()),
			})
		}
		return nil
	}

	if isDir {
		if err := s.fs.Walk(ctx, path, accept); err != nil {
			return nil, &core.StreamError{Stream: s.name, Op: "discover", Path: path, Err: err}
		}
	} else {
		_ = accept(path)
	}

	if len(paths) == 0 {
		return nil, &core.StreamError{Stream: s.name, Op: "discover", Path: path, Err: core.ErrNoEligibleFiles}
	}

	s.logger.Debugw("discovered files", "path", path, "files", len(paths))
	s.filePaths = paths
	return append([]string(nil), paths...), nil
}

// GetRows opens path and returns its decoded rows. Each call opens the file afresh.
func (s *FileStream) GetRows(ctx context.Context, path string) (core.Rows, error) {
	rc, err := s.fs.Open(ctx, path)
	if err != nil {
		return nil, &core.DecodeError{Path: path, Err: err}
	}
	dec, err := s.format.NewDecoder(rc)
	if err != nil {
		rc.Close()
		return nil, &core.DecodeError{Path: path, Err: err}
	}
	return &fileRows{path: path, rc: rc, dec: dec}, nil
}

// GetSchema returns the stream schema inferred from the first row of the first discovered
// file, with the metadata properties first when enabled. The result is computed once.
func (s *FileStream) GetSchema(ctx context.Context) (*core.Schema, error) {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schema != nil {
		return s.schema, nil
	}

	paths, err := s.GetFilePaths(ctx)
	if err != nil {
		return nil, err
	}

	header, err := s.readHeader(ctx, paths[0])
	if err != nil {
		return nil, err
	}

	schema := core.NewSchema()
	if s.addMetadata {
		for _, p := range core.MetadataProperties() {
			schema.Add(p)
		}
	}
	for _, name := range header {
		schema.Add(core.Property{Name: name, Type: core.TypeString, Nullable: true})
	}

	s.logger.Debugw("inferred schema", "file", paths[0], "fields", len(header))
	s.schema = schema
	return schema, nil
}

func (s *FileStream) readHeader(ctx context.Context, path string) ([]string, error) {
	rows, err := s.GetRows(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	header, err := rows.Next()
	if err == io.EOF {
		return nil, &core.StreamError{Stream: s.name, Op: "infer_schema", Path: path, Err: core.ErrEmptyFile}
	}
	if err != nil {
		return nil, err
	}
	return header, nil
}

// FieldNames returns the positional record field names, duplicates included.
func (s *FileStream) FieldNames(ctx context.Context) ([]string, error) {
	schema, err := s.GetSchema(ctx)
	if err != nil {
		return nil, err
	}
	return schema.FieldNames(), nil
}

// GetRecords returns a record source over every discovered file. The partition is
// accepted for interface compatibility and ignored.
func (s *FileStream) GetRecords(ctx context.Context, _ core.Partition) (core.DataSource, error) {
	fields, err := s.FieldNames(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := s.GetFilePaths(ctx)
	if err != nil {
		return nil, err
	}
	return newRecordReader(s, paths, fields), nil
}

func (s *FileStream) warn(w core.Warning) {
	s.logger.Warnw(w.Message, "kind", string(w.Kind), "path", w.Path)
	if s.onWarning != nil {
		s.onWarning(w)
	}
}

// fileRows adapts a RowDecoder over an open file to core.Rows.
type fileRows struct {
	path   string
	rc     io.ReadCloser
	dec    RowDecoder
	closed bool
}

func (r *fileRows) Next() ([]string, error) {
	if r.closed {
		return nil, io.EOF
	}
	row, err := r.dec.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &core.DecodeError{Path: r.path, Line: r.dec.Line(), Err: err}
	}
	return row, nil
}

func (r *fileRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}
