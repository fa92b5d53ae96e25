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
	"io"

	"github.com/aaronlmathis/tapcsv/core"
)

// Package tapcsv extracts records from delimited text files into Singer-style streams.
//
// A Tap turns each configured file definition into a stream, infers the stream schema from the
// header of its first file and syncs every stream through a Pipeline into a core.StreamSink:
//
//   tap, err := tapcsv.New(ctx, cfg)
//   if err != nil { log.Fatal(err) }
//   catalog, err := tap.Discover(ctx)
//   ...
//   err = tap.Sync(ctx, writers.NewSingerWriter(os.Stdout))

// PipelineBuilder provides a fluent API for wiring one record source to a sink.
// Use NewPipeline() to create a new builder, then chain From, Map, and To.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]Transformer, 0),
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source core.DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Transform adds a Transformer to the pipeline.
func (pb *PipelineBuilder) Transform(transformer Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Map adds a mapping step to the pipeline using a function.
func (pb *PipelineBuilder) Map(fn func(ctx context.Context, record core.Record) (core.Record, error)) *PipelineBuilder {
	return pb.Transform(TransformFunc(fn))
}

// To sets the DataSink for the pipeline.
func (pb *PipelineBuilder) To(sink core.DataSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if pb.pipeline.sink == nil {
		return nil, fmt.Errorf("pipeline requires a data sink")
	}
	return pb.pipeline, nil
}

// Pipeline streams every record of one source into a sink.
//
// The source is closed when Execute returns. The sink is flushed but stays open, because one sink
// receives every stream of a run.
type Pipeline struct {
	transformers []Transformer
	source       core.DataSource
	sink         core.DataSink
	written      int64
}

// Execute runs the pipeline until the source is exhausted. The first error stops it.
func (p *Pipeline) Execute(ctx context.Context) (err error) {
	defer func() {
		closeErr := p.source.Close()
		if err == nil {
			err = closeErr
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := p.source.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		record, err = p.applyTransformations(ctx, record)
		if err != nil {
			return err
		}

		if err := p.sink.Write(ctx, record); err != nil {
			return err
		}
		p.written++
	}

	return p.sink.Flush()
}

// Written returns the number of records handed to the sink.
func (p *Pipeline) Written() int64 {
	return p.written
}

// applyTransformations applies all configured transformers to a record in sequence.
func (p *Pipeline) applyTransformations(ctx context.Context, record core.Record) (core.Record, error) {
	current := record
	for _, transformer := range p.transformers {
		transformed, err := transformer.Transform(ctx, current)
		if err != nil {
			return nil, err
		}
		current = transformed
	}
	return current, nil
}
