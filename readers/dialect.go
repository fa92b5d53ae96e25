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
	"unicode/utf8"

	"github.com/aaronlmathis/tapcsv/config"
)

// Dialect describes how delimited text is tokenized.
type Dialect struct {
	Delimiter        rune // Field separator
	QuoteChar        rune // Character that opens and closes quoted fields
	DoubleQuote      bool // A doubled quote inside a quoted field is a literal quote
	EscapeChar       rune // Escape character, 0 for none
	SkipInitialSpace bool // Ignore spaces immediately following a delimiter
	Strict           bool // Malformed quoting and unexpected end of data are errors
}

// DefaultDialect returns comma separated, double-quoted, no escape character.
func DefaultDialect() Dialect {
	return Dialect{
		Delimiter:   ',',
		QuoteChar:   '"',
		DoubleQuote: true,
	}
}

// DialectFromConfig resolves the dialect of a file configuration, applying defaults for
// unset fields.
func DialectFromConfig(fc config.FileConfig) (Dialect, error) {
	fc = fc.WithDefaults()

	delimiter, err := singleRune("delimiter", fc.Delimiter)
	if err != nil {
		return Dialect{}, err
	}
	quote, err := singleRune("quotechar", fc.QuoteChar)
	if err != nil {
		return Dialect{}, err
	}
	var escape rune
	if fc.EscapeChar != "" {
		if escape, err = singleRune("escapechar", fc.EscapeChar); err != nil {
			return Dialect{}, err
		}
	}

	d := Dialect{
		Delimiter:        delimiter,
		QuoteChar:        quote,
		DoubleQuote:      *fc.DoubleQuote,
		EscapeChar:       escape,
		SkipInitialSpace: fc.SkipInitialSpace,
		Strict:           fc.Strict,
	}
	return d, d.Validate()
}

// Validate reports dialects the tokenizer cannot apply unambiguously.
func (d Dialect) Validate() error {
	if isLineBreak(d.Delimiter) || d.Delimiter == 0 {
		return fmt.Errorf("invalid delimiter %q", d.Delimiter)
	}
	if isLineBreak(d.QuoteChar) || d.QuoteChar == 0 {
		return fmt.Errorf("invalid quotechar %q", d.QuoteChar)
	}
	if isLineBreak(d.EscapeChar) {
		return fmt.Errorf("invalid escapechar %q", d.EscapeChar)
	}
	if d.Delimiter == d.QuoteChar {
		return fmt.Errorf("delimiter and quotechar must differ, both are %q", d.Delimiter)
	}
	if d.EscapeChar != 0 && (d.EscapeChar == d.Delimiter || d.EscapeChar == d.QuoteChar) {
		return fmt.Errorf("escapechar %q must differ from delimiter and quotechar", d.EscapeChar)
	}
	return nil
}

func singleRune(name, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%s must be a single character, got %q", name, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}
