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

// Package output resolves output locations (local files, S3 objects,
// PostgreSQL and MongoDB) and builds the matching sink for each format.
package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/readers"
	"github.com/aaronlmathis/wdishape/writers"
)

// OutputFormat represents a supported sink format.
type OutputFormat int

const (
	FormatJSON OutputFormat = iota
	FormatCSV
	FormatParquet
	FormatPostgres
	FormatMongo
)

var formatNames = map[OutputFormat]string{
	FormatJSON:     "json",
	FormatCSV:      "csv",
	FormatParquet:  "parquet",
	FormatPostgres: "postgres",
	FormatMongo:    "mongo",
}

func (f OutputFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("OutputFormat(%d)", int(f))
}

// ParseFormat parses a format name.
func ParseFormat(s string) (OutputFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for format, n := range formatNames {
		if n == name {
			return format, nil
		}
	}
	return FormatJSON, fmt.Errorf("unknown output format %q", s)
}

// FormatForPath guesses a file format from the path extension, defaulting to JSON.
func FormatForPath(path string) OutputFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatJSON
	}
}

func contentType(format OutputFormat) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/json"
	}
}

// SinkOptions carries writer options for each format.
type SinkOptions struct {
	JSON     []writers.WriterOptionJSON
	CSV      []writers.WriterOptionCSV
	Parquet  []writers.WriterOption
	Postgres []writers.PostgresWriterOption
	Mongo    []writers.WriterOptionMongo
}

// Location creates a DataSink for a given format.
type Location interface {
	NewSink(ctx context.Context, format OutputFormat, opts SinkOptions) (core.DataSink, error)
}

// Resolve maps a location string to a Location.
//
//	s3://bucket/key                  S3 object
//	postgres://..., postgresql://... PostgreSQL database
//	mongodb://..., mongodb+srv://... MongoDB deployment
//	-                                standard output
//	anything else                    local file path
func Resolve(location string, s3opts readers.S3ClientOptions) (Location, error) {
	switch {
	case location == "":
		return nil, fmt.Errorf("empty output location")
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := readers.ParseS3URI(location)
		if err != nil {
			return nil, err
		}
		return S3Location{Bucket: bucket, Key: key, ClientOptions: s3opts}, nil
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return PostgresLocation{DSN: location}, nil
	case strings.HasPrefix(location, "mongodb://"), strings.HasPrefix(location, "mongodb+srv://"):
		return MongoLocation{URI: location}, nil
	default:
		return FileLocation{Path: location}, nil
	}
}

// newFileSink builds a file-format writer over w.
func newFileSink(w io.WriteCloser, format OutputFormat, opts SinkOptions) (core.DataSink, error) {
	switch format {
	case FormatJSON:
		return writers.NewJSONWriter(w, opts.JSON...), nil
	case FormatCSV:
		cw, err := writers.NewCSVWriter(w, opts.CSV...)
		if err != nil {
			return nil, err
		}
		return cw, nil
	case FormatParquet:
		return writers.NewParquetWriter(w, opts.Parquet...), nil
	default:
		return nil, fmt.Errorf("format %s cannot be written to a file", format)
	}
}

// FileLocation writes output to a local filesystem path, or stdout for "-".
// The file is created on the first write, so a run that fails before
// writing leaves no file behind.
type FileLocation struct {
	Path string
}

// NewSink instantiates a writer for the file location.
func (f FileLocation) NewSink(_ context.Context, format OutputFormat, opts SinkOptions) (core.DataSink, error) {
	if f.Path == "-" {
		return newFileSink(stdoutWriter{}, format, opts)
	}
	return newFileSink(&lazyFile{path: f.Path}, format, opts)
}

type lazyFile struct {
	path string
	file *os.File
}

func (l *lazyFile) Write(p []byte) (int, error) {
	if l.file == nil {
		file, err := os.Create(l.path)
		if err != nil {
			return 0, err
		}
		l.file = file
	}
	return l.file.Write(p)
}

func (l *lazyFile) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

type stdoutWriter struct{}

func (stdoutWriter) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdoutWriter) Close() error { return nil }

// S3PutObjectAPI is the subset of the S3 client used for uploads.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Location writes objects to an S3 bucket.
type S3Location struct {
	Bucket        string
	Key           string
	Client        S3PutObjectAPI          // Pre-built client; skips config loading
	ClientOptions readers.S3ClientOptions // Used when Client is nil
}

// s3WriteCloser buffers the artifact and uploads it on Close, only if anything was written.
type s3WriteCloser struct {
	ctx         context.Context
	buf         bytes.Buffer
	written     bool
	client      S3PutObjectAPI
	bucket      string
	key         string
	contentType string
}

func (s *s3WriteCloser) Write(p []byte) (int, error) {
	s.written = true
	return s.buf.Write(p)
}

func (s *s3WriteCloser) Close() error {
	if !s.written {
		return nil
	}
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(s.buf.Bytes()),
		ContentType: aws.String(s.contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	s.written = false
	return nil
}

// NewSink creates a writer uploading to S3.
func (s S3Location) NewSink(ctx context.Context, format OutputFormat, opts SinkOptions) (core.DataSink, error) {
	if s.Client == nil {
		client, err := readers.NewS3Client(ctx, s.ClientOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.Client = client
	}

	return newFileSink(&s3WriteCloser{
		ctx:         ctx,
		client:      s.Client,
		bucket:      s.Bucket,
		key:         s.Key,
		contentType: contentType(format),
	}, format, opts)
}

// PostgresLocation directs output to a PostgreSQL database.
type PostgresLocation struct {
	DSN string
}

// NewSink instantiates a PostgreSQL writer.
func (p PostgresLocation) NewSink(ctx context.Context, format OutputFormat, opts SinkOptions) (core.DataSink, error) {
	if format != FormatPostgres {
		return nil, fmt.Errorf("unsupported format %s for PostgresLocation", format)
	}
	pw, err := writers.NewPostgresWriter(ctx, append([]writers.PostgresWriterOption{writers.WithPostgresDSN(p.DSN)}, opts.Postgres...)...)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// MongoLocation directs output to a MongoDB collection.
type MongoLocation struct {
	URI string
}

// NewSink instantiates a MongoDB writer.
func (m MongoLocation) NewSink(ctx context.Context, format OutputFormat, opts SinkOptions) (core.DataSink, error) {
	if format != FormatMongo {
		return nil, fmt.Errorf("unsupported format %s for MongoLocation", format)
	}
	mw, err := writers.NewMongoWriter(ctx, append([]writers.WriterOptionMongo{writers.WithMongoURI(m.URI)}, opts.Mongo...)...)
	if err != nil {
		return nil, err
	}
	return mw, nil
}

// DefaultFormat returns the natural format of a location: the database
// format for databases, otherwise the one implied by the path extension.
func DefaultFormat(loc Location) OutputFormat {
	switch l := loc.(type) {
	case PostgresLocation:
		return FormatPostgres
	case MongoLocation:
		return FormatMongo
	case S3Location:
		return FormatForPath(l.Key)
	case FileLocation:
		return FormatForPath(l.Path)
	default:
		return FormatJSON
	}
}
