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
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/tapcsv/core"
)

// Package writers provides core.StreamSink implementations for the records a tap emits.
//
// Every sink receives BeginStream before the records of a stream and orders its columns by
// the stream schema.

var (
	errNoStream  = errors.New("no active stream")
	errNilSchema = errors.New("schema is required")
)

// streamState is the per-stream bookkeeping shared by the sinks.
type streamState struct {
	name    string
	keys    []string
	columns []core.Property
}

func newStreamState(stream string, schema *core.Schema, keys []string) (*streamState, error) {
	if stream == "" {
		return nil, errors.New("stream name is required")
	}
	if schema == nil {
		return nil, errNilSchema
	}
	return &streamState{
		name:    stream,
		keys:    append([]string{}, keys...),
		columns: schema.Properties(),
	}, nil
}

func (s *streamState) columnNames() []string {
	names := make([]string, len(s.columns))
	for i, col := range s.columns {
		names[i] = col.Name
	}
	return names
}

// formatValue renders a record value as text. Nil values report false.
func formatValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), true
	case *time.Time:
		if v == nil {
			return "", false
		}
		return v.UTC().Format(time.RFC3339Nano), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// streamFileName maps a stream name onto a file name inside dir.
func streamFileName(dir, stream, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, stream)
	return filepath.Join(dir, name+ext)
}
