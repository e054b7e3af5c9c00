//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of WDIShape.
//
// WDIShape is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// WDIShape is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with WDIShape. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/aaronlmathis/wdishape/core"
)

// S3ReaderError represents an error that occurred during S3 reading operations.
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "get_object", "read")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3ReaderStats holds statistics about the S3 read.
type S3ReaderStats struct {
	ObjectSize   int64         // Content length reported by S3
	ETag         string        // ETag of the object read
	RowsRead     int64         // Rows read from the object
	ReadDuration time.Duration // Total time spent reading
	LastReadTime time.Time     // Time of last read operation
}

// S3GetObjectAPI is the subset of the S3 client used by S3Reader.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ClientOptions configures how an S3 client is built.
type S3ClientOptions struct {
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
}

// S3ReaderOptions configures the S3 reader.
type S3ReaderOptions struct {
	S3ClientOptions
	Bucket     string            // S3 bucket name
	Key        string            // Object key
	CSVOptions []ReaderOptionCSV // Options for the CSV decoder over the object body
	Client     S3GetObjectAPI    // Pre-built client; skips config loading
}

// ReaderOptionS3 is a functional option for S3Reader.
type ReaderOptionS3 func(*S3ReaderOptions)

// WithS3Bucket sets the bucket.
func WithS3Bucket(bucket string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Bucket = bucket
	}
}

// WithS3Key sets the object key.
func WithS3Key(key string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Key = key
	}
}

// WithS3Region sets the AWS region.
func WithS3Region(region string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Region = region
	}
}

// WithS3Profile selects a shared config profile.
func WithS3Profile(profile string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Profile = profile
	}
}

// WithS3Credentials sets static credentials.
func WithS3Credentials(creds aws.Credentials) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Credentials = creds
	}
}

// WithS3Endpoint points the client at an S3-compatible endpoint.
func WithS3Endpoint(endpoint string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.EndpointURL = endpoint
	}
}

// WithS3PathStyle forces path-style addressing.
func WithS3PathStyle(pathStyle bool) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

// WithS3CSVOptions passes options to the CSV decoder.
func WithS3CSVOptions(options ...ReaderOptionCSV) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.CSVOptions = append(opts.CSVOptions, options...)
	}
}

// WithS3Client injects a client, mainly for tests.
func WithS3Client(client S3GetObjectAPI) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Client = client
	}
}

// S3Reader streams indicator rows from a single CSV object.
type S3Reader struct {
	csv   *CSVReader
	stats S3ReaderStats
	opts  S3ReaderOptions
	mu    sync.Mutex
}

var (
	_ core.RowSource  = (*S3Reader)(nil)
	_ core.Positioner = (*S3Reader)(nil)
)

// NewS3Reader fetches the object and prepares a CSV decoder over its body.
// A missing bucket or key yields a *core.SourceNotFoundError.
func NewS3Reader(ctx context.Context, options ...ReaderOptionS3) (*S3Reader, error) {
	var opts S3ReaderOptions
	for _, option := range options {
		option(&opts)
	}

	if opts.Bucket == "" || opts.Key == "" {
		return nil, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("bucket and key are required")}
	}

	client := opts.Client
	if client == nil {
		c, err := NewS3Client(ctx, opts.S3ClientOptions)
		if err != nil {
			return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
		}
		client = c
	}

	location := fmt.Sprintf("s3://%s/%s", opts.Bucket, opts.Key)
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(opts.Key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, &core.SourceNotFoundError{Location: location, Err: err}
		}
		return nil, &S3ReaderError{Op: "get_object", Err: err}
	}

	csvReader, err := NewCSVReader(result.Body, opts.CSVOptions...)
	if err != nil {
		result.Body.Close()
		return nil, &S3ReaderError{Op: "open_csv", Err: err}
	}

	reader := &S3Reader{csv: csvReader, opts: opts}
	reader.stats.ObjectSize = aws.ToInt64(result.ContentLength)
	reader.stats.ETag = aws.ToString(result.ETag)
	return reader, nil
}

// NewS3Client builds an S3 client from the default config chain plus overrides.
func NewS3Client(ctx context.Context, opts S3ClientOptions) (*s3.Client, error) {
	cfg, err := createAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	}), nil
}

// Read returns the next row of the object.
func (s *S3Reader) Read(ctx context.Context) (core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		s.stats.ReadDuration += time.Since(start)
		s.stats.LastReadTime = time.Now()
	}()

	row, err := s.csv.Read(ctx)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &S3ReaderError{Op: "read_row", Err: err}
	}

	s.stats.RowsRead++
	return row, nil
}

// Line returns the input line of the last row read.
func (s *S3Reader) Line() int {
	return s.csv.Line()
}

// Close closes the object body.
func (s *S3Reader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csv.Close()
}

// Stats returns a copy of the reader statistics.
func (s *S3Reader) Stats() S3ReaderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func createAWSConfig(ctx context.Context, opts S3ClientOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
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

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
