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
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/tapcsv/core"
)

// MongoWriterError wraps MongoDB write errors with the operation and collection.
type MongoWriterError struct {
	Op         string // Operation that failed (e.g., "connect", "insert")
	Collection string // Collection being written when the error occurred
	Err        error  // Underlying error
}

func (e *MongoWriterError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo writer %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo writer %s: %v", e.Op, e.Err)
}

func (e *MongoWriterError) Unwrap() error {
	return e.Err
}

// MongoWriterStats holds MongoDB write statistics.
type MongoWriterStats struct {
	RecordsWritten int64
	BatchesWritten int64
	WriteDuration  time.Duration
	LastWriteTime  time.Time
}

// MongoCollection is the part of *mongo.Collection the writer uses.
type MongoCollection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// CollectionFunc returns the collection a stream is loaded into.
type CollectionFunc func(stream string) MongoCollection

// MongoWriterOptions configures the MongoDB writer.
type MongoWriterOptions struct {
	BatchSize int           // Documents per InsertMany call
	Ordered   bool          // Stop a batch at the first failed insert
	Timeout   time.Duration // Timeout for connect and flush
}

// WriterOptionMongo is a functional option.
type WriterOptionMongo func(*MongoWriterOptions)

func WithMongoBatchSize(size int) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.BatchSize = size
	}
}

func WithMongoOrdered(ordered bool) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Ordered = ordered
	}
}

func WithMongoTimeout(timeout time.Duration) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Timeout = timeout
	}
}

// MongoWriter implements core.StreamSink with one collection per stream.
type MongoWriter struct {
	client     *mongo.Client
	collection CollectionFunc
	options    MongoWriterOptions
	stream     *streamState
	current    MongoCollection
	docBuf     []interface{}
	stats      MongoWriterStats
	errorState bool
	mu         sync.Mutex
}

// NewMongoWriter connects to uri and loads each stream into a collection of database.
func NewMongoWriter(ctx context.Context, uri, database string, opts ...WriterOptionMongo) (*MongoWriter, error) {
	w := newMongoWriter(nil, opts)

	connectCtx, cancel := context.WithTimeout(ctx, w.options.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &MongoWriterError{Op: "connect", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &MongoWriterError{Op: "ping", Err: err}
	}

	db := client.Database(database)
	w.client = client
	w.collection = func(stream string) MongoCollection {
		return db.Collection(stream)
	}
	return w, nil
}

// NewMongoWriterFromCollections returns a writer that resolves stream collections through fn.
func NewMongoWriterFromCollections(fn CollectionFunc, opts ...WriterOptionMongo) *MongoWriter {
	return newMongoWriter(fn, opts)
}

func newMongoWriter(fn CollectionFunc, opts []WriterOptionMongo) *MongoWriter {
	cfg := MongoWriterOptions{
		BatchSize: 1000,
		Ordered:   true,
		Timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &MongoWriter{
		collection: fn,
		options:    cfg,
		docBuf:     make([]interface{}, 0, cfg.BatchSize),
	}
}

// BeginStream flushes the previous stream and switches to the collection named after stream.
func (m *MongoWriter) BeginStream(ctx context.Context, stream string, schema *core.Schema, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := newStreamState(stream, schema, keys)
	if err != nil {
		return &MongoWriterError{Op: "begin_stream", Collection: stream, Err: err}
	}
	if err := m.flushUnsafe(ctx); err != nil {
		return err
	}

	m.stream = state
	m.current = m.collection(stream)
	m.errorState = false
	return nil
}

// Write implements the DataSink interface.
func (m *MongoWriter) Write(ctx context.Context, record core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return &MongoWriterError{Op: "write", Err: errNoStream}
	}
	if m.errorState {
		return &MongoWriterError{Op: "write", Collection: m.stream.name, Err: fmt.Errorf("writer is in error state")}
	}

	m.docBuf = append(m.docBuf, m.document(record))
	if len(m.docBuf) >= m.options.BatchSize {
		if err := m.flushUnsafe(ctx); err != nil {
			m.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the DataSink interface.
func (m *MongoWriter) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.options.Timeout)
	defer cancel()
	return m.flushUnsafe(ctx)
}

// Close implements the DataSink interface.
// Flushes and disconnects the client when the writer opened it.
func (m *MongoWriter) Close() error {
	if err := m.Flush(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.options.Timeout)
		defer cancel()
		err := m.client.Disconnect(ctx)
		m.client = nil
		if err != nil {
			return &MongoWriterError{Op: "disconnect", Err: err}
		}
	}
	return nil
}

// Stats returns write statistics.
func (m *MongoWriter) Stats() MongoWriterStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// document orders the record fields by the stream schema, extra keys last.
func (m *MongoWriter) document(record core.Record) bson.D {
	doc := make(bson.D, 0, len(record))
	seen := make(map[string]bool, len(m.stream.columns))
	for _, col := range m.stream.columns {
		seen[col.Name] = true
		if value, ok := record[col.Name]; ok {
			doc = append(doc, bson.E{Key: col.Name, Value: value})
		}
	}
	var extra []string
	for key := range record {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		doc = append(doc, bson.E{Key: key, Value: record[key]})
	}
	return doc
}

// flushUnsafe inserts the buffered documents (must hold mutex).
func (m *MongoWriter) flushUnsafe(ctx context.Context) error {
	if len(m.docBuf) == 0 {
		return nil
	}
	start := time.Now()

	_, err := m.current.InsertMany(ctx, m.docBuf, options.InsertMany().SetOrdered(m.options.Ordered))
	if err != nil {
		return &MongoWriterError{Op: "insert", Collection: m.stream.name, Err: err}
	}

	m.stats.RecordsWritten += int64(len(m.docBuf))
	m.stats.BatchesWritten++
	m.stats.WriteDuration += time.Since(start)
	m.stats.LastWriteTime = time.Now()
	m.docBuf = make([]interface{}, 0, m.options.BatchSize)
	return nil
}
