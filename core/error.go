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

package core

import (
	"errors"
	"fmt"
)

// Package core defines the error taxonomy for tapcsv.
//
// Fatal conditions are returned as errors. Non-fatal conditions are Warnings delivered
// to a WarningHandler while processing continues.

var (
	// ErrPathNotFound is returned when a stream's configured path does not exist.
	ErrPathNotFound = errors.New("path does not exist")
	// ErrNoEligibleFiles is returned when the path exists but no file passes the name check.
	ErrNoEligibleFiles = errors.New("no acceptable files")
	// ErrEmptyFile is returned when the header file of a stream has no rows.
	ErrEmptyFile = errors.New("file has no rows")
)

// StreamError wraps a fatal stream-level failure with the operation and path involved.
type StreamError struct {
	Stream string
	Op     string
	Path   string
	Err    error
}

func (e *StreamError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("stream %q %s: %v", e.Stream, e.Op, e.Err)
	}
	return fmt.Sprintf("stream %q %s %s: %v", e.Stream, e.Op, e.Path, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// DecodeError wraps any failure while reading or parsing a file.
// Line is the physical line reached when the failure occurred, 0 when the file could not
// be opened or failed before its first line.
type DecodeError struct {
	Path string
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("decode %s row %d: %v", e.Path, e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// WarningKind classifies non-fatal observations.
type WarningKind string

const (
	// WarningInvalidFilename is emitted for each file skipped during discovery.
	WarningInvalidFilename WarningKind = "invalid_filename"
	// WarningUnsupportedMetadata is emitted when a filesystem cannot report modification time.
	WarningUnsupportedMetadata WarningKind = "unsupported_metadata"
)

// Warning is a non-fatal observation surfaced alongside continued processing.
type Warning struct {
	Kind    WarningKind
	Stream  string
	Path    string
	Message string
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Kind, w.Message, w.Path)
}

// WarningHandler receives warnings as they occur.
type WarningHandler func(Warning)
