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

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// encodingAliases maps common alternative spellings to names the indexes know.
var encodingAliases = map[string]string{
	"latin-1": "latin1",
	"latin_1": "latin1",
	"cp1252":  "windows-1252",
	"ascii":   "us-ascii",
}

// LookupDecoder returns a transformer that decodes the named encoding into validated UTF-8.
//
// "utf-8" keeps a leading byte order mark in the text while "utf-8-sig" strips it.
// Invalid UTF-8 input is an error for both.
func LookupDecoder(name string) (transform.Transformer, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")

	switch normalized {
	case "", "utf-8", "utf8":
		return encoding.UTF8Validator, nil
	case "utf-8-sig", "utf8-sig":
		return transform.Chain(encoding.UTF8Validator, unicode.UTF8BOM.NewDecoder()), nil
	}

	if alias, ok := encodingAliases[normalized]; ok {
		normalized = alias
	}

	enc, err := ianaindex.IANA.Encoding(normalized)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(normalized)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q", name)
		}
	}
	return enc.NewDecoder(), nil
}

// NewDecodingReader wraps r so reads yield UTF-8 text decoded from the named encoding.
func NewDecodingReader(r io.Reader, name string) (io.Reader, error) {
	decoder, err := LookupDecoder(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, decoder), nil
}
