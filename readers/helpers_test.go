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
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tapcsv/core"
	"github.com/aaronlmathis/tapcsv/filesystem"
)

// countingFS records every call made through it and tracks open handles.
type countingFS struct {
	filesystem.Filesystem

	mu        sync.Mutex
	calls     map[string]int
	openFiles int
	noMtime   bool
}

func newCountingFS(inner filesystem.Filesystem) *countingFS {
	return &countingFS{Filesystem: inner, calls: make(map[string]int)}
}

func (c *countingFS) count(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
}

func (c *countingFS) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *countingFS) open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openFiles
}

func (c *countingFS) Exists(ctx context.Context, path string) (bool, error) {
	c.count("exists")
	return c.Filesystem.Exists(ctx, path)
}

func (c *countingFS) IsDir(ctx context.Context, path string) (bool, error) {
	c.count("isdir")
	return c.Filesystem.IsDir(ctx, path)
}

func (c *countingFS) Walk(ctx context.Context, root string, fn filesystem.WalkFunc) error {
	c.count("walk")
	return c.Filesystem.Walk(ctx, root, fn)
}

func (c *countingFS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	c.count("open")
	rc, err := c.Filesystem.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.openFiles++
	c.mu.Unlock()
	return &trackedFile{ReadCloser: rc, fs: c}, nil
}

func (c *countingFS) ModTime(ctx context.Context, path string) (time.Time, error) {
	c.count("modtime")
	if c.noMtime {
		return time.Time{}, filesystem.ErrNotSupported
	}
	return c.Filesystem.ModTime(ctx, path)
}

type trackedFile struct {
	io.ReadCloser
	fs     *countingFS
	closed bool
}

func (f *trackedFile) Close() error {
	if !f.closed {
		f.closed = true
		f.fs.mu.Lock()
		f.fs.openFiles--
		f.fs.mu.Unlock()
	}
	return f.ReadCloser.Close()
}

// memFS builds an in-memory filesystem from path -> content.
func memFS(t *testing.T, files map[string]string) *filesystem.AferoFS {
	t.Helper()
	mem := filesystem.NewMemory()
	for path, content := range files {
		require.NoError(t, mem.Fs().MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(mem.Fs(), path, []byte(content), 0644))
	}
	return mem
}

// warningRecorder collects warnings delivered to a handler.
type warningRecorder struct {
	warnings []core.Warning
}

func (w *warningRecorder) handle(warning core.Warning) {
	w.warnings = append(w.warnings, warning)
}

func (w *warningRecorder) kinds() []core.WarningKind {
	var kinds []core.WarningKind
	for _, warning := range w.warnings {
		kinds = append(kinds, warning.Kind)
	}
	return kinds
}

func drain(t *testing.T, src core.DataSource) []core.Record {
	t.Helper()
	var records []core.Record
	for {
		rec, err := src.Read(context.Background())
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}
