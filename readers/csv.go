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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/wdishape/core"
)

// CSVReaderError wraps errors raised while reading indicator rows.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVReaderStats holds statistics about the CSV reading process.
type CSVReaderStats struct {
	RowsRead      int64
	HeaderSkipped bool
	ReadDuration  time.Duration
	LastReadTime  time.Time
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	SkipHeader       bool
}

// ReaderOptionCSV is a functional option for CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

// WithCSVComma sets the field delimiter.
func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

// WithCSVSkipHeader discards the first row when set.
func WithCSVSkipHeader(skip bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.SkipHeader = skip }
}

// WithCSVTrimSpace trims leading space in fields.
func WithCSVTrimSpace(trim bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.TrimLeadingSpace = trim }
}

// WithCSVLazyQuotes tolerates quotes inside unquoted fields.
func WithCSVLazyQuotes(lazy bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.LazyQuotes = lazy }
}

// CSVReader streams positional indicator rows from a delimited source.
// Rows may have any arity; short rows are the caller's concern.
type CSVReader struct {
	reader *csv.Reader
	closer io.Closer
	stats  CSVReaderStats
	opts   CSVReaderOptions
	line   int

	// headerErr is a syntax error in the skipped header, returned by the first Read.
	headerErr error
}

var (
	_ core.RowSource  = (*CSVReader)(nil)
	_ core.Positioner = (*CSVReader)(nil)
)

// NewCSVReader creates a new CSV reader. The header row, when skipped, is consumed immediately.
// A syntax error in that header is reported by the first Read as a malformed row, like any other row.
func NewCSVReader(r io.ReadCloser, options ...ReaderOptionCSV) (*CSVReader, error) {
	opts := CSVReaderOptions{
		Comma:      ',',
		SkipHeader: true,
	}

	for _, opt := range options {
		opt(&opts)
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma = opts.Comma
	csvReader.Comment = opts.Comment
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = opts.LazyQuotes
	csvReader.TrimLeadingSpace = opts.TrimLeadingSpace

	reader := &CSVReader{
		reader: csvReader,
		closer: r,
		opts:   opts,
	}

	if opts.SkipHeader {
		_, err := csvReader.Read()
		switch {
		case err == nil:
			reader.stats.HeaderSkipped = true
		case errors.Is(err, io.EOF):
			// empty input, nothing to skip
		default:
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, &CSVReaderError{Op: "read_header", Err: err}
			}
			reader.stats.HeaderSkipped = true
			reader.headerErr = &CSVReaderError{
				Op:  "parse_header",
				Err: &core.MalformedRowError{Line: parseErr.StartLine, Err: err},
			}
		}
	}

	return reader, nil
}

// Read returns the next row. Syntax errors come back as *core.MalformedRowError inside a
// *CSVReaderError; the reader stays usable afterwards.
func (c *CSVReader) Read(ctx context.Context) (core.Row, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, &CSVReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if c.headerErr != nil {
		err := c.headerErr
		c.headerErr = nil
		c.line = 1
		return nil, err
	}

	record, err := c.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			c.line = parseErr.StartLine
			return nil, &CSVReaderError{
				Op:  "parse_row",
				Err: &core.MalformedRowError{Line: parseErr.StartLine, Err: err},
			}
		}
		return nil, &CSVReaderError{Op: "read_row", Err: err}
	}

	c.line, _ = c.reader.FieldPos(0)

	c.stats.RowsRead++
	c.stats.LastReadTime = time.Now()
	c.stats.ReadDuration += time.Since(start)

	return core.Row(record), nil
}

// Line returns the input line on which the last row started.
func (c *CSVReader) Line() int {
	return c.line
}

// Close closes the underlying reader.
func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Stats returns the current reader statistics.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}
