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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tapcsv/core"
)

func singerLines(t *testing.T, out *bufferCloser) []string {
	t.Helper()
	return strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
}

func TestSingerWriter_SchemaThenRecords(t *testing.T) {
	ctx := context.Background()
	out := &bufferCloser{}
	clock := func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	w := NewSingerWriter(out, WithClock(clock))

	require.NoError(t, w.BeginStream(ctx, "people", peopleSchema(), []string{"id"}))
	require.NoError(t, w.Write(ctx, core.Record{"name": "ann", "id": "1"}))
	require.NoError(t, w.Write(ctx, core.Record{"id": "2"}))
	require.NoError(t, w.Close())
	assert.True(t, out.closed)

	lines := singerLines(t, out)
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{
		"type": "SCHEMA",
		"stream": "people",
		"schema": {"type": "object", "properties": {
			"id": {"type": ["string", "null"]},
			"name": {"type": ["string", "null"]}
		}},
		"key_properties": ["id"]
	}`, lines[0])
	assert.Equal(t, `{"type":"RECORD","stream":"people","record":{"id":"1","name":"ann"},"time_extracted":"2024-01-02T03:04:05Z"}`, lines[1])
	assert.Equal(t, `{"type":"RECORD","stream":"people","record":{"id":"2"},"time_extracted":"2024-01-02T03:04:05Z"}`, lines[2])

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.SchemasWritten)
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(out.Len()), stats.BytesWritten)
}

func TestSingerWriter_MetadataValues(t *testing.T) {
	ctx := context.Background()
	out := &bufferCloser{}
	w := NewSingerWriter(out, WithoutTimeExtracted())

	mtime := time.Date(2024, 6, 30, 21, 59, 0, 0, time.UTC)
	require.NoError(t, w.BeginStream(ctx, "files", metadataSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{
		core.SourceFileColumn:      "/data/a.csv",
		core.SourceFileMtimeColumn: mtime,
		core.SourceLinenoColumn:    0,
		"id":                       "7",
	}))
	require.NoError(t, w.Write(ctx, core.Record{
		core.SourceFileColumn:      "/data/b.csv",
		core.SourceFileMtimeColumn: nil,
		core.SourceLinenoColumn:    3,
		"id":                       "8",
		"extra":                    "x",
	}))
	require.NoError(t, w.Flush())

	lines := singerLines(t, out)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"key_properties":[]`)
	assert.Contains(t, lines[0], `"_sdc_source_file_mtime":{"format":"date-time","type":["string","null"]}`)
	assert.Equal(t, `{"type":"RECORD","stream":"files","record":{"_sdc_source_file":"/data/a.csv","_sdc_source_file_mtime":"2024-06-30T21:59:00Z","_sdc_source_lineno":0,"id":"7"}}`, lines[1])
	assert.Equal(t, `{"type":"RECORD","stream":"files","record":{"_sdc_source_file":"/data/b.csv","_sdc_source_file_mtime":null,"_sdc_source_lineno":3,"id":"8","extra":"x"}}`, lines[2])
}

func TestSingerWriter_MultipleStreams(t *testing.T) {
	ctx := context.Background()
	out := &bufferCloser{}
	w := NewSingerWriter(out, WithoutTimeExtracted())

	require.NoError(t, w.BeginStream(ctx, "a", peopleSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{"id": "1"}))
	require.NoError(t, w.BeginStream(ctx, "b", peopleSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{"id": "2"}))
	require.NoError(t, w.Flush())

	lines := singerLines(t, out)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"stream":"a"`)
	assert.Contains(t, lines[1], `"stream":"a"`)
	assert.Contains(t, lines[2], `"type":"SCHEMA","stream":"b"`)
	assert.Contains(t, lines[3], `"stream":"b"`)
}

func TestSingerWriter_Errors(t *testing.T) {
	ctx := context.Background()
	w := NewSingerWriter(&bufferCloser{})

	err := w.Write(ctx, core.Record{"id": "1"})
	var writerErr *SingerWriterError
	require.ErrorAs(t, err, &writerErr)
	assert.Equal(t, "write", writerErr.Op)
	assert.True(t, errors.Is(err, errNoStream))

	err = w.BeginStream(ctx, "people", nil, nil)
	assert.ErrorIs(t, err, errNilSchema)

	err = w.BeginStream(ctx, "", peopleSchema(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "singer writer begin_stream")
}
