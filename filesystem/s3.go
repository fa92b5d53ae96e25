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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3FS.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Options configures the S3 filesystem
type S3Options struct {
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
	MaxKeys        int32           // Page size for listings
}

// S3Option represents a configuration function for S3FS
type S3Option func(*S3Options)

// WithS3Region sets the AWS region.
func WithS3Region(region string) S3Option {
	return func(opts *S3Options) {
		opts.Region = region
	}
}

// WithS3Profile selects a shared config profile.
func WithS3Profile(profile string) S3Option {
	return func(opts *S3Options) {
		opts.Profile = profile
	}
}

// WithS3Credentials sets static credentials. Empty keys leave the default chain in place.
func WithS3Credentials(accessKeyID, secretAccessKey, sessionToken string) S3Option {
	return func(opts *S3Options) {
		opts.Credentials = aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			SessionToken:    sessionToken,
		}
	}
}

// WithS3Endpoint sets a custom endpoint.
func WithS3Endpoint(endpoint string) S3Option {
	return func(opts *S3Options) {
		opts.EndpointURL = endpoint
	}
}

// WithS3PathStyle toggles path-style addressing.
func WithS3PathStyle(pathStyle bool) S3Option {
	return func(opts *S3Options) {
		opts.ForcePathStyle = pathStyle
	}
}

// WithS3MaxKeys sets the listing page size.
func WithS3MaxKeys(maxKeys int32) S3Option {
	return func(opts *S3Options) {
		opts.MaxKeys = maxKeys
	}
}

// S3FS reads "s3://bucket/key" paths from Amazon S3 or an S3-compatible store.
type S3FS struct {
	client S3API
	opts   S3Options
}

// NewS3 creates an S3 filesystem using the default AWS credential chain unless
// credentials are given explicitly.
func NewS3(ctx context.Context, options ...S3Option) (*S3FS, error) {
	opts := S3Options{MaxKeys: 1000}
	for _, option := range options {
		option(&opts)
	}

	cfg, err := createAWSConfig(ctx, opts)
	if err != nil {
		return nil, &FSError{Op: "create_aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return &S3FS{client: client, opts: opts}, nil
}

// NewS3FromClient creates an S3 filesystem over an existing client.
func NewS3FromClient(client S3API, options ...S3Option) *S3FS {
	opts := S3Options{MaxKeys: 1000}
	for _, option := range options {
		option(&opts)
	}
	return &S3FS{client: client, opts: opts}
}

// createAWSConfig creates AWS configuration from options
func createAWSConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(opts.Region))
	}

	if opts.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}

func (f *S3FS) Exists(ctx context.Context, path string) (bool, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return false, err
	}
	if key == "" {
		return f.hasPrefix(ctx, bucket, "")
	}

	_, err = f.head(ctx, bucket, key)
	if err == nil {
		return true, nil
	}
	if !isS3NotFound(err) {
		return false, &FSError{Op: "head_object", Path: path, Err: err}
	}
	return f.hasPrefix(ctx, bucket, dirPrefix(key))
}

func (f *S3FS) IsDir(ctx context.Context, path string) (bool, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return false, err
	}
	if key == "" {
		return true, nil
	}
	if key[len(key)-1] != '/' {
		_, err := f.head(ctx, bucket, key)
		if err == nil {
			return false, nil
		}
		if !isS3NotFound(err) {
			return false, &FSError{Op: "head_object", Path: path, Err: err}
		}
	}
	return f.hasPrefix(ctx, bucket, dirPrefix(key))
}

func (f *S3FS) Walk(ctx context.Context, root string, fn WalkFunc) error {
	bucket, key, err := f.split(root)
	if err != nil {
		return err
	}
	prefix := dirPrefix(key)

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(f.opts.MaxKeys),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(f.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return &FSError{Op: "list_objects", Path: root, Err: err}
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return walkKeys(ctx, prefix, keys, func(key string) error {
		return fn(s3URL(bucket, key))
	})
}

func (f *S3FS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &FSError{Op: "get_object", Path: path, Err: err}
	}
	return out.Body, nil
}

func (f *S3FS) ModTime(ctx context.Context, path string) (time.Time, error) {
	bucket, key, err := f.split(path)
	if err != nil {
		return time.Time{}, err
	}
	out, err := f.head(ctx, bucket, key)
	if err != nil {
		return time.Time{}, &FSError{Op: "head_object", Path: path, Err: err}
	}
	if out.LastModified == nil {
		return time.Time{}, ErrNotSupported
	}
	return *out.LastModified, nil
}

func (f *S3FS) split(path string) (string, string, error) {
	bucket, key, ok := splitURL("s3", path)
	if !ok {
		return "", "", &FSError{Op: "parse", Path: path, Err: fmt.Errorf("expected s3://bucket/key")}
	}
	return bucket, key, nil
}

func (f *S3FS) head(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	return f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}

func (f *S3FS) hasPrefix(ctx context.Context, bucket, prefix string) (bool, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(1),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	out, err := f.client.ListObjectsV2(ctx, input)
	if err != nil {
		return false, &FSError{Op: "list_objects", Path: s3URL(bucket, prefix), Err: err}
	}
	return len(out.Contents) > 0, nil
}

func s3URL(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == 404
}
