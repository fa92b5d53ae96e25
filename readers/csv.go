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
	"fmt"
	"io"
	"strings"

	"github.com/aaronlmathis/tapcsv/config"
	"github.com/aaronlmathis/tapcsv/filesystem"
)

// CSVReaderError wraps structured error information for the CSV format.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVFormat decodes delimited text files ending in ".csv".
type CSVFormat struct {
	Dialect  Dialect
	Encoding string
}

// NewCSVFormat resolves the dialect and encoding of fc.
func NewCSVFormat(fc config.FileConfig) (*CSVFormat, error) {
	fc = fc.WithDefaults()
	dialect, err := DialectFromConfig(fc)
	if err != nil {
		return nil, &CSVReaderError{Op: "dialect", Err: err}
	}
	if _, err := LookupDecoder(fc.Encoding); err != nil {
		return nil, &CSVReaderError{Op: "encoding", Err: err}
	}
	return &CSVFormat{Dialect: dialect, Encoding: fc.Encoding}, nil
}

func (f *CSVFormat) Name() string {
	return "csv"
}

// IsValidFilename requires a case-sensitive ".csv" suffix.
func (f *CSVFormat) IsValidFilename(path string) bool {
	return strings.HasSuffix(path, ".csv")
}

func (f *CSVFormat) NewDecoder(r io.Reader) (RowDecoder, error) {
	text, err := NewDecodingReader(r, f.Encoding)
	if err != nil {
		return nil, err
	}
	return NewRowReader(text, f.Dialect), nil
}

// NewCSVStream creates a FileStream over the CSV files described by fc.
// The dialect and encoding are validated before any file is touched.
func NewCSVStream(fc config.FileConfig, fs filesystem.Filesystem, options ...StreamOption) (*FileStream, error) {
	format, err := NewCSVFormat(fc)
	if err != nil {
		return nil, err
	}
	return NewFileStream(fc, fs, format, options...), nil
}
