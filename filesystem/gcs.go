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
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSOptions configures the Google Cloud Storage filesystem
type GCSOptions struct {
	CredentialsFile string // Service account JSON, empty for application default credentials
	Endpoint        string // Custom endpoint, e.g. an emulator
	Anonymous       bool   // Send unauthenticated requests
}

// GCSOption represents a configuration function for GCSFS
type GCSOption func(*GCSOptions)

// WithGCSCredentialsFile sets the service account credentials file.
func WithGCSCredentialsFile(path string) GCSOption {
	return func(opts *GCSOptions) {
		opts.CredentialsFile = path
	}
}

// WithGCSEndpoint sets a custom API endpoint.
func WithGCSEndpoint(endpoint string) GCSOption {
	return func(opts *GCSOptions) {
		opts.Endpoint = endpoint
	}
}

// WithGCSAnonymous disables authentication.
func WithGCSAnonymous(anonymous bool) GCSOption {
	return func(opts *GCSOptions) {
		opts.Anonymous = anonymous
	}
}

// GCSFS reads "gs://bucket/key" paths from Google Cloud Storage.
type GCSFS struct {
	client *storage.Client
}

// NewGCS creates a GCS filesystem.
func NewGCS(ctx context.Context, options ...GCSOption) (*GCSFS, error) {
	var opts GCSOptions
	for _, option := range options {
		option(&opts)
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	if opts.Anonymous {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, &FSError{Op: "create_client", Err: err}
	}
	return &GCSFS{client: client}, nil
}

// NewGCSFromClient creates a GCS filesystem over an existing client.
func NewGCSFromClient(client *storage.Client) *GCSFS {
	return &GCSFS{client: client}
}

// Close releases the storage client.
func (f *GCSFS) Close() error {
	return f.client.Close()
}

func (f *GCSFS) Exists(ctx context.Context, path string) (bool, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return false, err
	}
	if key == "" {
		return f.hasPrefix(ctx, bucket, "")
	}

	_, err = f.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, storage.ErrObjectNotExist) {
		return false, &FSError{Op: "attrs", Path: path, Err: err}
	}
	return f.hasPrefix(ctx, bucket, dirPrefix(key))
}

func (f *GCSFS) IsDir(ctx context.Context, path string) (bool, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return false, err
	}
	if key == "" {
		return true, nil
	}
	if key[len(key)-1] != '/' {
		_, err := f.client.Bucket(bucket).Object(key).Attrs(ctx)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, storage.ErrObjectNotExist) {
			return false, &FSError{Op: "attrs", Path: path, Err: err}
		}
	}
	return f.hasPrefix(ctx, bucket, dirPrefix(key))
}

func (f *GCSFS) Walk(ctx context.Context, root string, fn WalkFunc) error {
	bucket, key, err := f.split(root)
	if err != nil {
		return err
	}
	prefix := dirPrefix(key)

	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return &FSError{Op: "list_objects", Path: root, Err: err}
	}

	var keys []string
	it := f.client.Bucket(bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return &FSError{Op: "list_objects", Path: root, Err: err}
		}
		keys = append(keys, attrs.Name)
	}

	return walkKeys(ctx, prefix, keys, func(key string) error {
		return fn(gcsURL(bucket, key))
	})
}

func (f *GCSFS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return nil, err
	}
	r, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, &FSError{Op: "open", Path: path, Err: err}
	}
	return r, nil
}

func (f *GCSFS) ModTime(ctx context.Context, path string) (time.Time, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return time.Time{}, err
	}
	attrs, err := f.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		return time.Time{}, &FSError{Op: "attrs", Path: path, Err: err}
	}
	if attrs.Updated.IsZero() {
		return time.Time{}, ErrNotSupported
	}
	return attrs.Updated, nil
}

func (f *GCSFS) split(path string) (string, string, error) {
	bucket, key, ok := splitURL("gs", path)
	if !ok {
		return "", "", &FSError{Op: "parse", Path: path, Err: fmt.Errorf("expected gs://bucket/key")}
	}
	return bucket, key, nil
}

func (f *GCSFS) hasPrefix(ctx context.Context, bucket, prefix string) (bool, error) {
	it := f.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, &FSError{Op: "list_objects", Path: gcsURL(bucket, prefix), Err: err}
	}
	return true, nil
}

func gcsURL(bucket, key string) string {
	return "gs://" + bucket + "/" + key
}
