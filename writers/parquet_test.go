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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tapcsv/core"
)

// readParquet loads a Parquet file back into an Arrow table.
func readParquet(t *testing.T, path string) arrow.Table {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	table, err := pqarrow.ReadTable(context.Background(), f,
		parquet.NewReaderProperties(memory.DefaultAllocator),
		pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	t.Cleanup(table.Release)
	return table
}

// columnValues flattens a table column into Go values, nil for nulls.
func columnValues(t *testing.T, table arrow.Table, i int) []interface{} {
	t.Helper()
	var out []interface{}
	for _, chunk := range table.Column(i).Data().Chunks() {
		for row := 0; row < chunk.Len(); row++ {
			if chunk.IsNull(row) {
				out = append(out, nil)
				continue
			}
			switch c := chunk.(type) {
			case *array.String:
				out = append(out, c.Value(row))
			case *array.Int64:
				out = append(out, c.Value(row))
			case *array.Timestamp:
				out = append(out, time.UnixMicro(int64(c.Value(row))).UTC())
			default:
				t.Fatalf("unexpected column type %T", chunk)
			}
		}
	}
	return out
}

func TestParquetWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := NewParquetWriter(dir, WithBatchSize(2))
	require.NoError(t, err)

	mtime := time.Date(2024, 6, 30, 21, 59, 0, 0, time.UTC)
	require.NoError(t, w.BeginStream(ctx, "files", metadataSchema(), nil))
	for i, id := range []string{"a", "b", "c"} {
		rec := core.Record{
			core.SourceFileColumn:      "/data/x.csv",
			core.SourceFileMtimeColumn: mtime,
			core.SourceLinenoColumn:    i,
			"id":                       id,
		}
		if i == 2 {
			rec[core.SourceFileMtimeColumn] = nil
			delete(rec, "id")
		}
		require.NoError(t, w.Write(ctx, rec))
	}
	require.NoError(t, w.Close())

	table := readParquet(t, filepath.Join(dir, "files.parquet"))
	assert.Equal(t, int64(3), table.NumRows())

	var names []string
	for _, f := range table.Schema().Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{core.SourceFileColumn, core.SourceFileMtimeColumn, core.SourceLinenoColumn, "id"}, names)

	assert.Equal(t, []interface{}{"/data/x.csv", "/data/x.csv", "/data/x.csv"}, columnValues(t, table, 0))
	assert.Equal(t, []interface{}{mtime, mtime, nil}, columnValues(t, table, 1))
	assert.Equal(t, []interface{}{int64(0), int64(1), int64(2)}, columnValues(t, table, 2))
	assert.Equal(t, []interface{}{"a", "b", nil}, columnValues(t, table, 3))

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.BatchesWritten)
	assert.Equal(t, int64(1), stats.FilesWritten)
	assert.Equal(t, int64(1), stats.NullValueCounts["id"])
}

func TestParquetWriter_FilePerStream(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := NewParquetWriter(dir, WithCompression(compress.Codecs.Gzip))
	require.NoError(t, err)

	require.NoError(t, w.BeginStream(ctx, "a", peopleSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{"id": "1", "name": "ann"}))
	require.NoError(t, w.BeginStream(ctx, "b", peopleSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{"id": "2", "name": "bob"}))
	require.NoError(t, w.Write(ctx, core.Record{"id": "3", "name": "cy"}))
	require.NoError(t, w.Close())

	a := readParquet(t, filepath.Join(dir, "a.parquet"))
	assert.Equal(t, []interface{}{"ann"}, columnValues(t, a, 1))

	b := readParquet(t, filepath.Join(dir, "b.parquet"))
	assert.Equal(t, []interface{}{"2", "3"}, columnValues(t, b, 0))
	assert.Equal(t, int64(2), w.Stats().FilesWritten)
}

func TestParquetWriter_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewParquetWriter("")
	var writerErr *ParquetWriterError
	require.ErrorAs(t, err, &writerErr)
	assert.Equal(t, "validate", writerErr.Op)

	w, err := NewParquetWriter(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, w.Write(ctx, core.Record{"id": "1"}), errNoStream)
	assert.ErrorIs(t, w.BeginStream(ctx, "x", nil, nil), errNilSchema)

	schema := core.NewSchema(core.Property{Name: "n", Type: core.TypeInteger})
	require.NoError(t, w.BeginStream(ctx, "ints", schema, nil))
	require.NoError(t, w.Write(ctx, core.Record{"n": "not a number"}))
	err = w.Flush()
	require.ErrorAs(t, err, &writerErr)
	assert.Equal(t, "append_value", writerErr.Op)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name     string
		expected compress.Compression
		wantErr  bool
	}{
		{"", compress.Codecs.Snappy, false},
		{"snappy", compress.Codecs.Snappy, false},
		{"GZIP", compress.Codecs.Gzip, false},
		{"zstd", compress.Codecs.Zstd, false},
		{"none", compress.Codecs.Uncompressed, false},
		{"lzo", compress.Codecs.Uncompressed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCompression(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestArrowSchema(t *testing.T) {
	schema := ArrowSchema(metadataSchema())
	require.Equal(t, 4, len(schema.Fields()))
	assert.Equal(t, arrow.STRING, schema.Field(0).Type.ID())
	assert.Equal(t, arrow.TIMESTAMP, schema.Field(1).Type.ID())
	assert.Equal(t, arrow.INT64, schema.Field(2).Type.ID())
	assert.True(t, schema.Field(3).Nullable)
}
