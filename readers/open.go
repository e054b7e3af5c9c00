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
	"io/fs"
	"os"
	"strings"

	"github.com/aaronlmathis/wdishape/core"
)

// SourceOptions bundles the per-transport options used by Open.
type SourceOptions struct {
	CSV  []ReaderOptionCSV
	S3   []ReaderOptionS3
	HTTP []ReaderOptionHTTP
}

// Open resolves location to a row source.
//
//	s3://bucket/key         object in S3 (or an S3-compatible store)
//	http://..., https://... resource fetched with GET
//	anything else           local file path
//
// A missing location yields a *core.SourceNotFoundError.
func Open(ctx context.Context, location string, opts SourceOptions) (core.RowSource, error) {
	switch {
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := ParseS3URI(location)
		if err != nil {
			return nil, err
		}
		s3Opts := append([]ReaderOptionS3{WithS3Bucket(bucket), WithS3Key(key), WithS3CSVOptions(opts.CSV...)}, opts.S3...)
		reader, err := NewS3Reader(ctx, s3Opts...)
		if err != nil {
			return nil, err
		}
		return reader, nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		httpOpts := append([]ReaderOptionHTTP{WithHTTPCSVOptions(opts.CSV...)}, opts.HTTP...)
		reader, err := NewHTTPReader(ctx, location, httpOpts...)
		if err != nil {
			return nil, err
		}
		return reader, nil
	default:
		reader, err := OpenFile(location, opts.CSV...)
		if err != nil {
			return nil, err
		}
		return reader, nil
	}
}

// OpenFile opens a local CSV file.
func OpenFile(path string, options ...ReaderOptionCSV) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.SourceNotFoundError{Location: path, Err: err}
		}
		return nil, &CSVReaderError{Op: "open_file", Err: err}
	}

	reader, err := NewCSVReader(file, options...)
	if err != nil {
		file.Close()
		return nil, err
	}
	return reader, nil
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q needs a bucket and a key", uri)
	}
	return bucket, key, nil
}
