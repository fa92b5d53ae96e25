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
	"bytes"
	"sync"

	"github.com/aaronlmathis/tapcsv/core"
)

// bufferCloser is an in-memory io.WriteCloser.
type bufferCloser struct {
	bytes.Buffer
	closed bool
	mu     sync.Mutex
}

func (b *bufferCloser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func peopleSchema() *core.Schema {
	return core.NewSchema(
		core.Property{Name: "id", Type: core.TypeString, Nullable: true},
		core.Property{Name: "name", Type: core.TypeString, Nullable: true},
	)
}

func metadataSchema() *core.Schema {
	schema := core.NewSchema(core.MetadataProperties()...)
	schema.Add(core.Property{Name: "id", Type: core.TypeString, Nullable: true})
	return schema
}
