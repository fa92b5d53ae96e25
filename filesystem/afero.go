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

package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// AferoFS adapts an afero.Fs. It backs the local disk and the in-memory filesystem.
type AferoFS struct {
	fs afero.Fs
}

// NewAfero wraps fs.
func NewAfero(fs afero.Fs) *AferoFS {
	return &AferoFS{fs: fs}
}

// NewLocal returns the local disk filesystem.
func NewLocal() *AferoFS {
	return NewAfero(afero.NewOsFs())
}

// NewMemory returns an empty in-memory filesystem.
func NewMemory() *AferoFS {
	return NewAfero(afero.NewMemMapFs())
}

// Fs returns the underlying afero.Fs.
func (a *AferoFS) Fs() afero.Fs {
	return a.fs
}

func (a *AferoFS) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.Exists(a.fs, path)
	if err != nil {
		return false, &FSError{Op: "stat", Path: path, Err: err}
	}
	return ok, nil
}

func (a *AferoFS) IsDir(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := a.fs.Stat(path)
	if err != nil {
		return false, &FSError{Op: "stat", Path: path, Err: err}
	}
	return info.IsDir(), nil
}

func (a *AferoFS) Walk(ctx context.Context, root string, fn WalkFunc) error {
	return a.walkDir(ctx, root, fn)
}

func (a *AferoFS) walkDir(ctx context.Context, dir string, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// afero.ReadDir returns entries sorted by name
	infos, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return &FSError{Op: "walk", Path: dir, Err: err}
	}

	var subdirs []string
	for _, info := range infos {
		path := filepath.Join(dir, info.Name())
		if info.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			// listed like a file unless it points at a directory, never followed
			if target, err := a.fs.Stat(path); err == nil && target.IsDir() {
				continue
			}
		} else if !info.Mode().IsRegular() {
			continue
		}
		if err := fn(path); err != nil {
			return err
		}
	}

	for _, sub := range subdirs {
		if err := a.walkDir(ctx, sub, fn); err != nil {
			return err
		}
	}
	return nil
}

func (a *AferoFS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, &FSError{Op: "open", Path: path, Err: err}
	}
	return f, nil
}

func (a *AferoFS) ModTime(ctx context.Context, path string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	info, err := a.fs.Stat(path)
	if err != nil {
		return time.Time{}, &FSError{Op: "stat", Path: path, Err: err}
	}
	return info.ModTime(), nil
}
