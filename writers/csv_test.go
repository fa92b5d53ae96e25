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
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tapcsv/core"
)

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestCSVWriter_FilePerStream(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	w, err := NewCSVWriter("/out", WithCSVFs(fs))
	require.NoError(t, err)

	require.NoError(t, w.BeginStream(ctx, "people", peopleSchema(), []string{"id"}))
	require.NoError(t, w.Write(ctx, core.Record{"name": "ann", "id": "1"}))
	require.NoError(t, w.Write(ctx, core.Record{"id": "2"}))
	require.NoError(t, w.BeginStream(ctx, "more/people", peopleSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{"id": "3", "name": "a,b"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "id,name\n1,ann\n2,\n", readFile(t, fs, "/out/people.csv"))
	assert.Equal(t, "id,name\n3,\"a,b\"\n", readFile(t, fs, "/out/more_people.csv"))

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.FilesWritten)
	assert.Equal(t, int64(3), stats.RecordsWritten)
}

func TestCSVWriter_MetadataColumns(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	w, err := NewCSVWriter("/out", WithCSVFs(fs), WithComma(';'), WithCSVBatchSize(1))
	require.NoError(t, err)

	mtime := time.Date(2024, 6, 30, 23, 59, 0, 0, time.FixedZone("CEST", 2*60*60))
	require.NoError(t, w.BeginStream(ctx, "files", metadataSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{
		core.SourceFileColumn:      "/data/a.csv",
		core.SourceFileMtimeColumn: mtime,
		core.SourceLinenoColumn:    4,
		"id":                       "x",
	}))
	require.NoError(t, w.Write(ctx, core.Record{
		core.SourceFileColumn:      "/data/a.csv",
		core.SourceFileMtimeColumn: nil,
		core.SourceLinenoColumn:    5,
		"id":                       "y",
	}))

	// batch size 1 writes through before Close
	assert.Equal(t,
		"_sdc_source_file;_sdc_source_file_mtime;_sdc_source_lineno;id\n"+
			"/data/a.csv;2024-06-30T21:59:00Z;4;x\n"+
			"/data/a.csv;;5;y\n",
		readFile(t, fs, "/out/files.csv"))
	require.NoError(t, w.Close())
	assert.Equal(t, int64(1), w.Stats().NullValueCounts[core.SourceFileMtimeColumn])
}

func TestCSVWriter_Options(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	w, err := NewCSVWriter("/out", WithCSVFs(fs), WithWriteHeader(false), WithUseCRLF(true))
	require.NoError(t, err)

	require.NoError(t, w.BeginStream(ctx, "people", peopleSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{"id": "1", "name": "ann"}))
	require.NoError(t, w.Flush())
	assert.Equal(t, "1,ann\r\n", readFile(t, fs, "/out/people.csv"))
	require.NoError(t, w.Close())
}

func TestCSVWriter_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewCSVWriter("", WithCSVFs(afero.NewMemMapFs()))
	var writerErr *CSVWriterError
	require.ErrorAs(t, err, &writerErr)
	assert.Equal(t, "validate", writerErr.Op)

	w, err := NewCSVWriter("/out", WithCSVFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	assert.ErrorIs(t, w.Write(ctx, core.Record{"id": "1"}), errNoStream)
	assert.ErrorIs(t, w.BeginStream(ctx, "people", nil, nil), errNilSchema)
	assert.NoError(t, w.Flush())
	assert.NoError(t, w.Close())

	ro, err := NewCSVWriter("/out", WithCSVFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))
	if err == nil {
		err = ro.BeginStream(ctx, "people", peopleSchema(), nil)
	}
	require.Error(t, err)
}
