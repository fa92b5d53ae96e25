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

// Package filesystem provides the storage capabilities streams read their files through.
//
// Every backend exposes the same small surface: existence and directory checks, a recursive
// walk in top-down lexical order, open-for-read and modification time lookup.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/tapcsv/config"
)

// ErrNotSupported is returned by backends that cannot provide a capability, such as
// modification times.
var ErrNotSupported = errors.New("operation not supported by filesystem")

// FSError provides structured error information for filesystem operations
type FSError struct {
	Op   string // Operation that failed (e.g., "stat", "walk", "open")
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("filesystem %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error {
	return e.Err
}

// WalkFunc is called once per regular file found by Walk, with the file's full path.
// Returning an error stops the walk and Walk returns that error.
type WalkFunc func(path string) error

// Filesystem is the capability interface streams consume.
type Filesystem interface {
	// Exists reports whether path names a file or directory.
	Exists(ctx context.Context, path string) (bool, error)
	// IsDir reports whether path names a directory.
	IsDir(ctx context.Context, path string) (bool, error)
	// Walk visits every regular file below root. Within a directory files are visited in
	// lexical order, then each subdirectory is walked in lexical order.
	Walk(ctx context.Context, root string, fn WalkFunc) error
	// Open opens path for reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// ModTime returns the last modification time of path, or ErrNotSupported.
	ModTime(ctx context.Context, path string) (time.Time, error)
}

// New creates the Filesystem selected by cfg.Protocol.
func New(ctx context.Context, cfg config.FilesystemConfig) (Filesystem, error) {
	switch cfg.Protocol {
	case "", "local":
		return NewLocal(), nil
	case "s3":
		return NewS3(ctx,
			WithS3Region(cfg.S3.Region),
			WithS3Profile(cfg.S3.Profile),
			WithS3Credentials(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.SessionToken),
			WithS3Endpoint(cfg.S3.EndpointURL),
			WithS3PathStyle(cfg.S3.ForcePathStyle),
		)
	case "gcs":
		return NewGCS(ctx,
			WithGCSCredentialsFile(cfg.GCS.CredentialsFile),
			WithGCSEndpoint(cfg.GCS.Endpoint),
			WithGCSAnonymous(cfg.GCS.Anonymous),
		)
	default:
		return nil, &FSError{Op: "new", Path: cfg.Protocol, Err: fmt.Errorf("unsupported protocol %q", cfg.Protocol)}
	}
}
