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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
)

func decodeString(t *testing.T, input, name string) (string, error) {
	t.Helper()
	r, err := NewDecodingReader(strings.NewReader(input), name)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	return string(out), err
}

func TestNewDecodingReader(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		input    string
		expected string
	}{
		{"utf-8 passthrough", "utf-8", "naïve,x\n", "naïve,x\n"},
		{"default is utf-8", "", "a,b\n", "a,b\n"},
		{"underscore spelling", "UTF_8", "a\n", "a\n"},
		{"utf-8 keeps bom", "utf-8", "\xef\xbb\xbfa,b\n", "\ufeffa,b\n"},
		{"utf-8-sig strips bom", "utf-8-sig", "\xef\xbb\xbfa,b\n", "a,b\n"},
		{"utf-8-sig without bom", "utf-8-sig", "a,b\n", "a,b\n"},
		{"latin1", "latin1", "caf\xe9\n", "café\n"},
		{"latin-1 alias", "latin-1", "caf\xe9\n", "café\n"},
		{"iso-8859-1", "ISO-8859-1", "\xfc\n", "ü\n"},
		{"cp1252", "cp1252", "\x80\n", "€\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := decodeString(t, tt.input, tt.encoding)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestNewDecodingReader_InvalidUTF8(t *testing.T) {
	_, err := decodeString(t, "ok\n\xff\xfe bad\n", "utf-8")
	assert.ErrorIs(t, err, encoding.ErrInvalidUTF8)
}

func TestNewDecodingReader_UnknownEncoding(t *testing.T) {
	_, err := NewDecodingReader(strings.NewReader(""), "klingon-8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown encoding")
}

func TestRowReader_OverDecodedText(t *testing.T) {
	text, err := NewDecodingReader(strings.NewReader("name;city\nJos\xe9;M\xe1laga\n"), "latin1")
	require.NoError(t, err)

	d := DefaultDialect()
	d.Delimiter = ';'
	rows := readAllRows(t, mustReadAll(t, text), d)
	assert.Equal(t, [][]string{{"name", "city"}, {"José", "Málaga"}}, rows)
}

func mustReadAll(t *testing.T, r io.Reader) string {
	t.Helper()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}
