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
	"bytes"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/goccy/go-json"
)

// Package core defines the core types for tapcsv.
//
// This file contains records, schemas, metadata columns and the discovery catalog.

// Record represents a single extracted row.
// Data fields are strings; injected metadata fields carry their own types.
type Record map[string]interface{}

// Partition identifies a slice of a stream. It is reserved for future use and is
// currently ignored by every stream.
type Partition map[string]interface{}

// Metadata column names prepended to every record when metadata columns are enabled.
const (
	SourceFileColumn      = "_sdc_source_file"
	SourceFileMtimeColumn = "_sdc_source_file_mtime"
	SourceLinenoColumn    = "_sdc_source_lineno"
)

// PropertyType is the declared type of a schema property.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeDateTime PropertyType = "date-time"
	TypeInteger  PropertyType = "integer"
)

// Property is one (name, type) pair of a Schema.
type Property struct {
	Name     string
	Type     PropertyType
	Nullable bool
}

// MarshalJSON renders the property as a JSON-schema fragment.
func (p Property) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	switch p.Type {
	case TypeDateTime:
		out["format"] = "date-time"
		out["type"] = jsonTypes("string", p.Nullable)
	case TypeInteger:
		out["type"] = jsonTypes("integer", p.Nullable)
	default:
		out["type"] = jsonTypes("string", p.Nullable)
	}
	return json.Marshal(out)
}

func jsonTypes(base string, nullable bool) interface{} {
	if nullable {
		return []string{base, "null"}
	}
	return base
}

// MetadataProperties returns the metadata properties in their fixed order.
func MetadataProperties() []Property {
	return []Property{
		{Name: SourceFileColumn, Type: TypeString},
		{Name: SourceFileMtimeColumn, Type: TypeDateTime, Nullable: true},
		{Name: SourceLinenoColumn, Type: TypeInteger},
	}
}

// Schema is the ordered field description of a stream.
//
// FieldNames keeps every name in header order, duplicates included, because records
// are built by positional pairing against it. Properties collapses duplicates to a single
// entry that keeps the position of the first occurrence.
type Schema struct {
	properties *orderedmap.OrderedMap[string, Property]
	fieldNames []string
}

// NewSchema creates a schema from the given properties, in order.
func NewSchema(props ...Property) *Schema {
	s := &Schema{properties: orderedmap.NewOrderedMap[string, Property]()}
	for _, p := range props {
		s.Add(p)
	}
	return s
}

// Add appends a property.
func (s *Schema) Add(p Property) {
	s.fieldNames = append(s.fieldNames, p.Name)
	s.properties.Set(p.Name, p)
}

// FieldNames returns a copy of the positional field names.
func (s *Schema) FieldNames() []string {
	return append([]string(nil), s.fieldNames...)
}

// Properties returns the distinct properties in order.
func (s *Schema) Properties() []Property {
	props := make([]Property, 0, s.properties.Len())
	for el := s.properties.Front(); el != nil; el = el.Next() {
		props = append(props, el.Value)
	}
	return props
}

// Property looks up a property by name.
func (s *Schema) Property(name string) (Property, bool) {
	return s.properties.Get(name)
}

// Len returns the number of distinct properties.
func (s *Schema) Len() int {
	return s.properties.Len()
}

// MarshalJSON renders the schema as a JSON-schema object with properties in field order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"object","properties":{`)
	for el := s.properties.Front(); el != nil; el = el.Next() {
		if el != s.properties.Front() {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(el.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(el.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// CatalogEntry describes one stream in a discovery catalog.
type CatalogEntry struct {
	TapStreamID   string   `json:"tap_stream_id"`
	Stream        string   `json:"stream"`
	Schema        *Schema  `json:"schema"`
	KeyProperties []string `json:"key_properties"`
}

// Catalog is the result of discovery across all configured streams.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}
