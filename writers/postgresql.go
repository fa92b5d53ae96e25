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
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/tapcsv/core"
)

// This file implements a batching PostgreSQL sink that loads every stream into its own table,
// created from the stream schema and upserted on the stream keys.

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "write", "connect")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write performance statistics.
type PostgresWriterStats struct {
	TablesPrepared   int64            // Streams whose table was set up
	RecordsWritten   int64            // Total records written
	BatchesWritten   int64            // Number of batches written
	TransactionCount int64            // Number of transactions committed
	LastWriteTime    time.Time        // Time of last write
	WriteDuration    time.Duration    // Total time spent writing
	ConnectionTime   time.Duration    // Time spent establishing connection
	NullValueCounts  map[string]int64 // Count of null values per column
	ConflictCount    int64            // Number of conflicts encountered
}

// ConflictResolution defines how rows that collide on the stream keys are handled.
type ConflictResolution int

const (
	// ConflictUpdate updates conflicting rows (ON CONFLICT DO UPDATE).
	ConflictUpdate ConflictResolution = iota
	// ConflictIgnore ignores conflicting rows (ON CONFLICT DO NOTHING).
	ConflictIgnore
	// ConflictError returns an error on conflict (default PostgreSQL behavior).
	ConflictError
)

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN                string             // PostgreSQL connection string
	Schema             string             // Target database schema
	BatchSize          int                // Number of records per batch
	CreateTable        bool               // Create table if not exists
	TruncateTable      bool               // Truncate table before writing
	ConflictResolution ConflictResolution // Conflict handling on the stream keys
	TransactionMode    bool               // Wrap batches in transactions
	ConnMaxLifetime    time.Duration      // Max connection lifetime
	ConnMaxIdleTime    time.Duration      // Max idle connection time
	MaxOpenConns       int                // Max open connections
	MaxIdleConns       int                // Max idle connections
	QueryTimeout       time.Duration      // Timeout for queries
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresSchema sets the database schema the stream tables live in.
func WithPostgresSchema(schema string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.Schema = schema
	}
}

// WithPostgresBatchSize sets the batch size for writes.
func WithPostgresBatchSize(size int) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCreateTable enables or disables table creation.
func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable enables or disables table truncation before writing.
func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

// WithConflictResolution sets how rows colliding on the stream keys are handled.
func WithConflictResolution(resolution ConflictResolution) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.ConflictResolution = resolution
	}
}

// WithTransactionMode enables or disables transaction wrapping for batches.
func WithTransactionMode(enabled bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TransactionMode = enabled
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = maxLifetime
		opts.ConnMaxIdleTime = maxIdleTime
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresWriter implements core.StreamSink for PostgreSQL output.
type PostgresWriter struct {
	db         *sql.DB
	ownsDB     bool
	options    PostgresWriterOptions
	stream     *streamState
	table      string
	insertSQL  string
	recordBuf  []core.Record
	stats      PostgresWriterStats
	errorState bool
	mu         sync.Mutex
}

// NewPostgresWriter connects to the DSN and returns a ready-to-use writer.
func NewPostgresWriter(opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := (&PostgresWriterOptions{}).withDefaults()
	for _, opt := range opts {
		opt(options)
	}
	options.normalize()

	if options.DSN == "" {
		return nil, &PostgresWriterError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}

	writer := newPostgresWriter(nil, options)
	if err := writer.connect(); err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}
	writer.ownsDB = true
	return writer, nil
}

// NewPostgresWriterFromDB returns a writer over an existing connection pool. Close leaves db open.
func NewPostgresWriterFromDB(db *sql.DB, opts ...PostgresWriterOption) *PostgresWriter {
	options := (&PostgresWriterOptions{}).withDefaults()
	for _, opt := range opts {
		opt(options)
	}
	options.normalize()
	return newPostgresWriter(db, options)
}

func newPostgresWriter(db *sql.DB, options *PostgresWriterOptions) *PostgresWriter {
	return &PostgresWriter{
		db:        db,
		options:   *options,
		recordBuf: make([]core.Record, 0, options.BatchSize),
		stats:     PostgresWriterStats{NullValueCounts: make(map[string]int64)},
	}
}

// withDefaults applies default values to PostgresWriterOptions.
func (opts *PostgresWriterOptions) withDefaults() *PostgresWriterOptions {
	opts.normalize()
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.ConnMaxIdleTime == 0 {
		opts.ConnMaxIdleTime = 1 * time.Minute
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	opts.CreateTable = true
	opts.TransactionMode = true
	return opts
}

// normalize restores defaults that options may have zeroed.
func (opts *PostgresWriterOptions) normalize() {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
}

// connect establishes the database connection and configures the connection pool.
func (w *PostgresWriter) connect() error {
	start := time.Now()

	db, err := sql.Open("postgres", w.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(w.options.MaxOpenConns)
	db.SetMaxIdleConns(w.options.MaxIdleConns)
	db.SetConnMaxLifetime(w.options.ConnMaxLifetime)
	db.SetConnMaxIdleTime(w.options.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	w.db = db
	w.stats.ConnectionTime = time.Since(start)
	return nil
}

// Stats returns a copy of the current write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	statsCopy := w.stats
	statsCopy.NullValueCounts = make(map[string]int64)
	for k, v := range w.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// BeginStream flushes the previous stream and prepares the table for stream.
func (w *PostgresWriter) BeginStream(ctx context.Context, stream string, schema *core.Schema, keys []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, err := newStreamState(stream, schema, keys)
	if err != nil {
		return &PostgresWriterError{Op: "begin_stream", Err: err}
	}
	if w.stream != nil {
		if err := w.flushBufferUnsafe(ctx); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "flush", Err: err}
		}
	}

	w.stream = state
	w.table = pq.QuoteIdentifier(w.options.Schema) + "." + pq.QuoteIdentifier(stream)
	w.insertSQL = w.buildInsertSQL()
	w.errorState = false

	if w.options.CreateTable {
		if _, err := w.db.ExecContext(ctx, w.buildCreateTableSQL()); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "create_table", Err: err}
		}
	}
	if w.options.TruncateTable {
		if _, err := w.db.ExecContext(ctx, "TRUNCATE TABLE "+w.table); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "truncate_table", Err: err}
		}
	}

	w.stats.TablesPrepared++
	return nil
}

// Write implements the DataSink interface.
// Buffers records and writes in batches. Thread-safe.
func (w *PostgresWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stream == nil {
		return &PostgresWriterError{Op: "write", Err: errNoStream}
	}
	if w.errorState {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	for k, v := range record {
		if v == nil {
			w.stats.NullValueCounts[k]++
		}
	}

	w.recordBuf = append(w.recordBuf, record)

	if len(w.recordBuf) >= w.options.BatchSize {
		if err := w.flushBufferUnsafe(ctx); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "flush_batch", Err: err}
		}
	}
	return nil
}

// Flush implements the DataSink interface.
// Forces any buffered records to be written to PostgreSQL.
func (w *PostgresWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()

	if err := w.flushBufferUnsafe(ctx); err != nil {
		return &PostgresWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the DataSink interface.
// Flushes and closes the connection pool when the writer opened it.
func (w *PostgresWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ownsDB && w.db != nil {
		err := w.db.Close()
		w.db = nil
		return err
	}
	return nil
}

func (w *PostgresWriter) quotedColumns() []string {
	cols := make([]string, len(w.stream.columns))
	for i, col := range w.stream.columns {
		cols[i] = pq.QuoteIdentifier(col.Name)
	}
	return cols
}

// buildCreateTableSQL renders the CREATE TABLE statement for the current stream.
func (w *PostgresWriter) buildCreateTableSQL() string {
	defs := make([]string, 0, len(w.stream.columns)+1)
	for _, col := range w.stream.columns {
		defs = append(defs, pq.QuoteIdentifier(col.Name)+" "+sqlType(col.Type))
	}
	if len(w.stream.keys) > 0 {
		keys := make([]string, len(w.stream.keys))
		for i, k := range w.stream.keys {
			keys[i] = pq.QuoteIdentifier(k)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", w.table, strings.Join(defs, ", "))
}

// buildInsertSQL renders the INSERT statement, with conflict handling when the stream has keys.
func (w *PostgresWriter) buildInsertSQL() string {
	cols := w.quotedColumns()
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		w.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if len(w.stream.keys) == 0 || w.options.ConflictResolution == ConflictError {
		return query
	}

	isKey := make(map[string]bool, len(w.stream.keys))
	keys := make([]string, len(w.stream.keys))
	for i, k := range w.stream.keys {
		isKey[k] = true
		keys[i] = pq.QuoteIdentifier(k)
	}
	var updates []string
	for _, col := range w.stream.columns {
		if isKey[col.Name] {
			continue
		}
		q := pq.QuoteIdentifier(col.Name)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	if w.options.ConflictResolution == ConflictIgnore || len(updates) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", query, strings.Join(keys, ", "))
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s",
		query, strings.Join(keys, ", "), strings.Join(updates, ", "))
}

// flushBufferUnsafe writes buffered records to PostgreSQL (must hold mutex).
func (w *PostgresWriter) flushBufferUnsafe(ctx context.Context) (err error) {
	if len(w.recordBuf) == 0 {
		return nil
	}
	start := time.Now()

	var tx *sql.Tx
	var stmt *sql.Stmt
	if w.options.TransactionMode {
		tx, err = w.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				tx.Rollback()
			}
		}()
		stmt, err = tx.PrepareContext(ctx, w.insertSQL)
	} else {
		stmt, err = w.db.PrepareContext(ctx, w.insertSQL)
	}
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range w.recordBuf {
		values := make([]interface{}, len(w.stream.columns))
		for i, col := range w.stream.columns {
			values[i] = convertValue(record[col.Name])
		}

		var result sql.Result
		result, err = stmt.ExecContext(ctx, values...)
		if err != nil {
			return fmt.Errorf("failed to execute insert: %w", err)
		}
		if rowsAffected, rerr := result.RowsAffected(); rerr == nil && rowsAffected == 0 {
			w.stats.ConflictCount++
		}
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		w.stats.TransactionCount++
	}

	w.stats.RecordsWritten += int64(len(w.recordBuf))
	w.stats.BatchesWritten++
	w.stats.LastWriteTime = time.Now()
	w.stats.WriteDuration += time.Since(start)
	w.recordBuf = w.recordBuf[:0]
	return nil
}

// sqlType maps a schema property type onto its PostgreSQL column type.
func sqlType(t core.PropertyType) string {
	switch t {
	case core.TypeDateTime:
		return "TIMESTAMPTZ"
	case core.TypeInteger:
		return "BIGINT"
	default:
		return "TEXT"
	}
}

// convertValue converts record values to driver values.
func convertValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time, int64, string:
		return v
	case int:
		return int64(v)
	default:
		s, _ := formatValue(v)
		return s
	}
}
