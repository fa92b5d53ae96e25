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

package tapcsv

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/tapcsv/config"
	"github.com/aaronlmathis/tapcsv/core"
	"github.com/aaronlmathis/tapcsv/filesystem"
	"github.com/aaronlmathis/tapcsv/logger"
	"github.com/aaronlmathis/tapcsv/metrics"
	"github.com/aaronlmathis/tapcsv/readers"
)

// Option configures a Tap.
type Option func(*Tap)

// WithFilesystem replaces the filesystem built from the configuration.
func WithFilesystem(fs filesystem.Filesystem) Option {
	return func(t *Tap) {
		t.fs = fs
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *logger.Logger) Option {
	return func(t *Tap) {
		t.logger = log
	}
}

// WithMetrics records run metrics into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Tap) {
		t.metrics = c
	}
}

// WithWarningHandler receives every warning of every stream.
func WithWarningHandler(handler core.WarningHandler) Option {
	return func(t *Tap) {
		t.onWarning = handler
	}
}

// Tap owns the configured streams of one run.
type Tap struct {
	cfg       *config.Config
	fs        filesystem.Filesystem
	logger    *logger.Logger
	metrics   *metrics.Collector
	onWarning core.WarningHandler
	streams   []*readers.FileStream
}

// New validates cfg and builds one stream per file definition.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Tap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tap{cfg: cfg, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(t)
	}

	if t.fs == nil {
		fs, err := filesystem.New(ctx, cfg.Filesystem)
		if err != nil {
			return nil, err
		}
		t.fs = fs
	}

	for _, fc := range cfg.Files {
		stream, err := readers.NewCSVStream(fc, t.fs,
			readers.WithLogger(t.logger),
			readers.WithWarningHandler(t.warn),
			readers.WithMetadataColumns(cfg.AddMetadataColumns),
		)
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", fc.Entity, err)
		}
		t.streams = append(t.streams, stream)
	}
	return t, nil
}

// Streams returns the streams in configuration order.
func (t *Tap) Streams() []core.FileStream {
	out := make([]core.FileStream, len(t.streams))
	for i, s := range t.streams {
		out[i] = s
	}
	return out
}

// Discover infers every stream schema and returns the catalog.
func (t *Tap) Discover(ctx context.Context) (*core.Catalog, error) {
	catalog := &core.Catalog{Streams: make([]core.CatalogEntry, 0, len(t.streams))}
	for _, s := range t.streams {
		schema, err := s.GetSchema(ctx)
		if err != nil {
			return nil, err
		}
		catalog.Streams = append(catalog.Streams, core.CatalogEntry{
			TapStreamID:   s.Name(),
			Stream:        s.Name(),
			Schema:        schema,
			KeyProperties: s.PrimaryKeys(),
		})
		t.logger.Debugw("discovered stream", "stream", s.Name(), "properties", schema.Len())
	}
	return catalog, nil
}

// Sync announces each stream to sink with its schema and then writes all of its records.
// It stops at the first fatal error.
func (t *Tap) Sync(ctx context.Context, sink core.StreamSink) error {
	for _, s := range t.streams {
		if err := t.syncStream(ctx, s, sink); err != nil {
			return err
		}
	}
	if t.metrics != nil {
		t.metrics.Succeeded(time.Now())
	}
	return nil
}

func (t *Tap) syncStream(ctx context.Context, s *readers.FileStream, sink core.StreamSink) error {
	start := time.Now()
	log := t.logger.WithStream(s.Name())

	schema, err := s.GetSchema(ctx)
	if err != nil {
		return err
	}
	paths, err := s.GetFilePaths(ctx)
	if err != nil {
		return err
	}
	if err := sink.BeginStream(ctx, s.Name(), schema, s.PrimaryKeys()); err != nil {
		return err
	}

	src, err := s.GetRecords(ctx, nil)
	if err != nil {
		return err
	}

	pipeline, err := NewPipeline().From(src).To(sink).Build()
	if err != nil {
		src.Close()
		return err
	}

	err = pipeline.Execute(ctx)
	elapsed := time.Since(start)
	if t.metrics != nil {
		t.metrics.FilesDiscovered(s.Name(), len(paths))
		t.metrics.RecordsExtracted(s.Name(), pipeline.Written())
		t.metrics.StreamDuration(s.Name(), elapsed)
	}
	if err != nil {
		return err
	}

	fields := []interface{}{"files", len(paths), "records", pipeline.Written(), "duration", elapsed}
	if rr, ok := src.(*readers.RecordReader); ok {
		stats := rr.Stats()
		fields = append(fields, "files_opened", stats.FilesOpened, "read_duration", stats.ReadDuration)
	}
	log.Infow("stream synced", fields...)
	return nil
}

func (t *Tap) warn(w core.Warning) {
	if t.metrics != nil {
		t.metrics.Warning(w)
	}
	if t.onWarning != nil {
		t.onWarning(w)
	}
}
