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

package filesystem

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body     string
	modified *time.Time
}

// fakeS3 serves a single bucket from memory, one page per listing.
type fakeS3 struct {
	bucket  string
	objects map[string]fakeObject
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, errors.New("no such bucket")
	}
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if in.MaxKeys != nil && int(*in.MaxKeys) < len(keys) {
		keys = keys[:*in.MaxKeys]
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(obj.body))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{LastModified: obj.modified}, nil
}

func newFakeS3() *fakeS3 {
	when := time.Date(2023, 11, 5, 8, 0, 0, 0, time.UTC)
	return &fakeS3{
		bucket: "landing",
		objects: map[string]fakeObject{
			"in/b.csv":                              {body: "id\n2\n", modified: &when},
			"in/a.csv":                              {body: "id\n1\n", modified: &when},
			"in/subfolder1/alphabet.csv":            {body: "l\na\n"},
			"in/subfolder1/subfolder2/alphabet.csv": {body: "l\nb\n"},
			"in/subfolder1/":                        {},
			"inbox/unrelated.csv":                   {body: "x\n"},
			"single.csv":                            {body: "h\n", modified: &when},
		},
	}
}

func TestS3FS_Walk(t *testing.T) {
	fs := NewS3FromClient(newFakeS3())

	assert.Equal(t, []string{
		"s3://landing/in/a.csv",
		"s3://landing/in/b.csv",
		"s3://landing/in/subfolder1/alphabet.csv",
		"s3://landing/in/subfolder1/subfolder2/alphabet.csv",
	}, collectWalk(t, fs, "s3://landing/in"))
}

func TestS3FS_ExistsAndIsDir(t *testing.T) {
	ctx := context.Background()
	fs := NewS3FromClient(newFakeS3())

	tests := []struct {
		path   string
		exists bool
		isDir  bool
	}{
		{"s3://landing/in", true, true},
		{"s3://landing/in/", true, true},
		{"s3://landing/in/a.csv", true, false},
		{"s3://landing/in/subfolder1", true, true},
		{"s3://landing/missing", false, false},
		{"s3://landing", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ok, err := fs.Exists(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, ok)

			dir, err := fs.IsDir(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.isDir, dir)
		})
	}
}

func TestS3FS_OpenAndModTime(t *testing.T) {
	ctx := context.Background()
	fs := NewS3FromClient(newFakeS3())

	rc, err := fs.Open(ctx, "s3://landing/in/a.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))

	mtime, err := fs.ModTime(ctx, "s3://landing/in/a.csv")
	require.NoError(t, err)
	assert.Equal(t, 2023, mtime.Year())

	_, err = fs.ModTime(ctx, "s3://landing/in/subfolder1/alphabet.csv")
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = fs.Open(ctx, "s3://landing/missing.csv")
	var fsErr *FSError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, "get_object", fsErr.Op)
}

func TestS3FS_BadPath(t *testing.T) {
	fs := NewS3FromClient(newFakeS3())
	_, err := fs.Exists(context.Background(), "/local/path")
	var fsErr *FSError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, "parse", fsErr.Op)
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(&types.NotFound{}))
	assert.True(t, isS3NotFound(&types.NoSuchKey{}))
	assert.False(t, isS3NotFound(errors.New("access denied")))
}
