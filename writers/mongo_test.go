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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/tapcsv/core"
)

// fakeCollection records InsertMany calls.
type fakeCollection struct {
	batches [][]interface{}
	ordered []bool
	err     error
}

func (f *fakeCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, documents)
	for _, opt := range opts {
		if opt.Ordered != nil {
			f.ordered = append(f.ordered, *opt.Ordered)
		}
	}
	return &mongo.InsertManyResult{InsertedIDs: make([]interface{}, len(documents))}, nil
}

func fakeCollections() (map[string]*fakeCollection, CollectionFunc) {
	colls := make(map[string]*fakeCollection)
	return colls, func(stream string) MongoCollection {
		if _, ok := colls[stream]; !ok {
			colls[stream] = &fakeCollection{}
		}
		return colls[stream]
	}
}

func TestMongoWriter_BatchesPerStream(t *testing.T) {
	ctx := context.Background()
	colls, fn := fakeCollections()
	w := NewMongoWriterFromCollections(fn, WithMongoBatchSize(2), WithMongoOrdered(false))

	require.NoError(t, w.BeginStream(ctx, "people", peopleSchema(), []string{"id"}))
	require.NoError(t, w.Write(ctx, core.Record{"name": "ann", "id": "1"}))
	require.NoError(t, w.Write(ctx, core.Record{"id": "2", "zz": "extra", "aa": "first"}))
	require.NoError(t, w.Write(ctx, core.Record{"id": "3"}))
	require.NoError(t, w.BeginStream(ctx, "orders", peopleSchema(), nil))
	require.NoError(t, w.Write(ctx, core.Record{"id": "9"}))
	require.NoError(t, w.Close())

	people := colls["people"]
	require.Len(t, people.batches, 2)
	assert.Equal(t, []interface{}{
		bson.D{{Key: "id", Value: "1"}, {Key: "name", Value: "ann"}},
		bson.D{{Key: "id", Value: "2"}, {Key: "aa", Value: "first"}, {Key: "zz", Value: "extra"}},
	}, people.batches[0])
	assert.Equal(t, []interface{}{bson.D{{Key: "id", Value: "3"}}}, people.batches[1])
	assert.Equal(t, []bool{false, false}, people.ordered)

	require.Len(t, colls["orders"].batches, 1)

	stats := w.Stats()
	assert.Equal(t, int64(4), stats.RecordsWritten)
	assert.Equal(t, int64(3), stats.BatchesWritten)
}

func TestMongoWriter_InsertFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("not primary")
	w := NewMongoWriterFromCollections(func(string) MongoCollection {
		return &fakeCollection{err: boom}
	}, WithMongoBatchSize(1))

	require.NoError(t, w.BeginStream(ctx, "people", peopleSchema(), nil))
	err := w.Write(ctx, core.Record{"id": "1"})
	var writerErr *MongoWriterError
	require.ErrorAs(t, err, &writerErr)
	assert.Equal(t, "insert", writerErr.Op)
	assert.Equal(t, "people", writerErr.Collection)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "mongo writer insert [people]: not primary", err.Error())

	err = w.Write(ctx, core.Record{"id": "2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error state")
}

func TestMongoWriter_RequiresStream(t *testing.T) {
	_, fn := fakeCollections()
	w := NewMongoWriterFromCollections(fn)
	assert.ErrorIs(t, w.Write(context.Background(), core.Record{"id": "1"}), errNoStream)
	assert.ErrorIs(t, w.BeginStream(context.Background(), "x", nil, nil), errNilSchema)
	assert.NoError(t, w.Close())
}
