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

package tapcsv

import (
	"context"

	"github.com/aaronlmathis/tapcsv/core"
)

// Transformer is a per-record step between a stream's record source and its sink.
type Transformer interface {
	// Transform returns the record to write, possibly the same one.
	Transform(ctx context.Context, record core.Record) (core.Record, error)
}

// TransformFunc adapts a function to the Transformer interface.
type TransformFunc func(ctx context.Context, record core.Record) (core.Record, error)

// Transform calls f(ctx, record).
func (f TransformFunc) Transform(ctx context.Context, record core.Record) (core.Record, error) {
	return f(ctx, record)
}
