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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FieldLimit is the maximum number of characters in a single field.
const FieldLimit = 131072

var (
	// ErrQuoteExpected is returned in strict mode when a closing quote is followed by
	// something other than a delimiter or line break.
	ErrQuoteExpected = errors.New("delimiter expected after closing quote")
	// ErrUnexpectedEnd is returned in strict mode when input ends inside a field.
	ErrUnexpectedEnd = errors.New("unexpected end of data")
	// ErrFieldLimit is returned when a field exceeds FieldLimit characters.
	ErrFieldLimit = fmt.Errorf("field larger than field limit (%d)", FieldLimit)
	// ErrNewlineInField is returned when a line break appears inside an unquoted field.
	ErrNewlineInField = errors.New("new-line character seen in unquoted field")
)

// ParseError reports a tokenizing failure and the physical line it occurred on.
type ParseError struct {
	Line int // 1-based physical line
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type parserState int

const (
	stateStartRecord parserState = iota
	stateStartField
	stateEscapedChar
	stateAfterEscapedCRNL
	stateInField
	stateInQuotedField
	stateEscapeInQuotedField
	stateQuoteInQuotedField
	stateEatCRNL
)

const (
	// noChar never matches input, it stands in for an unset escape character.
	noChar rune = -1
	// eol is fed after every physical line.
	eol rune = -2
)

// RowReader tokenizes delimited text one row at a time according to a Dialect.
//
// Line breaks are normalized before tokenizing: "\r\n" and a lone "\r" both become "\n",
// including inside quoted fields. A blank line yields a row with no fields.
type RowReader struct {
	r       *bufio.Reader
	dialect Dialect
	escape  rune

	line    int
	lineBuf strings.Builder

	state    parserState
	field    strings.Builder
	fieldLen int
	fields   []string
}

// NewRowReader creates a RowReader over decoded text.
func NewRowReader(r io.Reader, dialect Dialect) *RowReader {
	escape := dialect.EscapeChar
	if escape == 0 {
		escape = noChar
	}
	return &RowReader{
		r:       bufio.NewReader(r),
		dialect: dialect,
		escape:  escape,
	}
}

// Line returns the number of physical lines consumed so far.
func (r *RowReader) Line() int {
	return r.line
}

// Read returns the next row, or io.EOF when the input is exhausted.
func (r *RowReader) Read() ([]string, error) {
	r.state = stateStartRecord
	r.fields = nil
	r.resetField()

	for {
		line, err := r.readLine()
		if err == io.EOF {
			if r.fieldLen != 0 || r.state == stateInQuotedField {
				if r.dialect.Strict {
					return nil, r.parseError(ErrUnexpectedEnd)
				}
				r.saveField()
				return r.fields, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		r.line++

		for _, c := range line {
			if err := r.process(c); err != nil {
				return nil, err
			}
		}
		if err := r.process(eol); err != nil {
			return nil, err
		}

		if r.state == stateStartRecord {
			if r.fields == nil {
				return []string{}, nil
			}
			return r.fields, nil
		}
	}
}

// readLine returns the next physical line with its line break normalized to "\n".
// The final line may have no line break.
func (r *RowReader) readLine() (string, error) {
	r.lineBuf.Reset()
	for {
		c, _, err := r.r.ReadRune()
		if err != nil {
			if err == io.EOF && r.lineBuf.Len() > 0 {
				return r.lineBuf.String(), nil
			}
			return "", err
		}
		switch c {
		case '\n':
			r.lineBuf.WriteByte('\n')
			return r.lineBuf.String(), nil
		case '\r':
			next, _, err := r.r.ReadRune()
			switch {
			case err == nil && next != '\n':
				if err := r.r.UnreadRune(); err != nil {
					return "", err
				}
			case err != nil && err != io.EOF:
				return "", err
			}
			r.lineBuf.WriteByte('\n')
			return r.lineBuf.String(), nil
		default:
			r.lineBuf.WriteRune(c)
		}
	}
}

func (r *RowReader) process(c rune) error {
	d := r.dialect

	switch r.state {
	case stateStartRecord:
		if c == eol {
			// blank line
			return nil
		}
		if isLineBreak(c) {
			r.state = stateEatCRNL
			return nil
		}
		r.state = stateStartField
		return r.startField(c)

	case stateStartField:
		return r.startField(c)

	case stateEscapedChar:
		if isLineBreak(c) {
			r.state = stateAfterEscapedCRNL
			return r.addChar(c)
		}
		if c == eol {
			c = '\n'
		}
		r.state = stateInField
		return r.addChar(c)

	case stateAfterEscapedCRNL:
		if c == eol {
			return nil
		}
		return r.inField(c)

	case stateInField:
		return r.inField(c)

	case stateInQuotedField:
		switch {
		case c == eol:
		case c == r.escape:
			r.state = stateEscapeInQuotedField
		case c == d.QuoteChar:
			if d.DoubleQuote {
				r.state = stateQuoteInQuotedField
			} else {
				r.state = stateInField
			}
		default:
			return r.addChar(c)
		}
		return nil

	case stateEscapeInQuotedField:
		if c == eol {
			c = '\n'
		}
		r.state = stateInQuotedField
		return r.addChar(c)

	case stateQuoteInQuotedField:
		switch {
		case c == d.QuoteChar:
			// doubled quote
			r.state = stateInQuotedField
			return r.addChar(c)
		case c == d.Delimiter:
			r.saveField()
			r.state = stateStartField
		case isLineBreak(c) || c == eol:
			r.endRecordOrEat(c)
		case !d.Strict:
			r.state = stateInField
			return r.addChar(c)
		default:
			return r.parseError(fmt.Errorf("%w: '%c' expected after '%c'", ErrQuoteExpected, d.Delimiter, d.QuoteChar))
		}
		return nil

	case stateEatCRNL:
		switch {
		case isLineBreak(c):
		case c == eol:
			r.state = stateStartRecord
		default:
			return r.parseError(ErrNewlineInField)
		}
		return nil
	}

	return nil
}

func (r *RowReader) startField(c rune) error {
	d := r.dialect
	switch {
	case isLineBreak(c) || c == eol:
		r.endRecordOrEat(c)
	case c == d.QuoteChar:
		r.state = stateInQuotedField
	case c == r.escape:
		r.state = stateEscapedChar
	case c == ' ' && d.SkipInitialSpace:
	case c == d.Delimiter:
		r.saveField()
	default:
		r.state = stateInField
		return r.addChar(c)
	}
	return nil
}

func (r *RowReader) inField(c rune) error {
	d := r.dialect
	switch {
	case isLineBreak(c) || c == eol:
		r.endRecordOrEat(c)
	case c == r.escape:
		r.state = stateEscapedChar
	case c == d.Delimiter:
		r.saveField()
		r.state = stateStartField
	default:
		// state is kept, so after an escaped line break the end of the line does not end the record
		return r.addChar(c)
	}
	return nil
}

// endRecordOrEat saves the current field and either completes the record (eol) or
// waits for the end of the line.
func (r *RowReader) endRecordOrEat(c rune) {
	r.saveField()
	if c == eol {
		r.state = stateStartRecord
	} else {
		r.state = stateEatCRNL
	}
}

func (r *RowReader) addChar(c rune) error {
	if r.fieldLen >= FieldLimit {
		return r.parseError(ErrFieldLimit)
	}
	r.field.WriteRune(c)
	r.fieldLen++
	return nil
}

func (r *RowReader) saveField() {
	r.fields = append(r.fields, r.field.String())
	r.resetField()
}

func (r *RowReader) resetField() {
	r.field.Reset()
	r.fieldLen = 0
}

func (r *RowReader) parseError(err error) error {
	return &ParseError{Line: r.line, Err: err}
}
