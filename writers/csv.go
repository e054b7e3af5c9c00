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

package writers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aaronlmathis/wdishape/core"
)

// CSVWriterError represents an error that occurred during CSV writing operations.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds statistics about the CSV writer's performance.
type CSVWriterStats struct {
	RowsWritten   int64
	FlushCount    int64
	FlushDuration time.Duration
	LastFlushTime time.Time
}

// CSVWriterOptions configures the denormalized CSV writer.
type CSVWriterOptions struct {
	Comma       rune
	UseCRLF     bool
	WriteHeader bool
	Shape       core.Shape
	Years       core.YearAxis
}

// WriterOptionCSV represents a configuration function for CSVWriterOptions.
type WriterOptionCSV func(*CSVWriterOptions)

// WithComma sets the field delimiter.
func WithComma(delim rune) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Comma = delim
	}
}

// WithWriteHeader controls whether the synthetic header row is written.
func WithWriteHeader(write bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.WriteHeader = write
	}
}

// WithUseCRLF sets whether to use CRLF line endings.
func WithUseCRLF(useCRLF bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.UseCRLF = useCRLF
	}
}

// WithCSVShape selects flat rows (country_code, values...) or nested rows
// (country_code, indicator, values...). Only the flat header is the plain
// country_code,_2020,...,_1960 layout; nested output adds the indicator column
// so rows of different indicators stay distinguishable.
func WithCSVShape(shape core.Shape) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Shape = shape
	}
}

// WithYearAxis sets the years named in the synthetic header.
func WithYearAxis(axis core.YearAxis) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Years = axis
	}
}

// CSVWriter writes a table as one row per country (flat) or per country and indicator (nested),
// under a synthetic header such as country_code,_2020,_2019,...,_1960.
// Value sequences are written as they are; a sequence longer or shorter than the header is not padded.
type CSVWriter struct {
	writer  *csv.Writer
	closer  io.Closer
	options CSVWriterOptions
	stats   CSVWriterStats
	mu      sync.Mutex
}

var _ core.DataSink = (*CSVWriter)(nil)

// NewCSVWriter creates a new CSVWriter with the given options.
func NewCSVWriter(w io.WriteCloser, opts ...WriterOptionCSV) (*CSVWriter, error) {
	options := CSVWriterOptions{
		Comma:       ',',
		WriteHeader: true,
		Shape:       core.ShapeNested,
		Years:       core.DefaultYearAxis,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Shape != core.ShapeFlat && options.Shape != core.ShapeNested {
		return nil, &CSVWriterError{Op: "validate", Err: fmt.Errorf("unknown shape %q", options.Shape)}
	}

	cw := csv.NewWriter(w)
	cw.Comma = options.Comma
	cw.UseCRLF = options.UseCRLF

	return &CSVWriter{
		writer:  cw,
		closer:  w,
		options: options,
	}, nil
}

// Header returns the header row for the configured shape and year axis.
func (c *CSVWriter) Header() []string {
	header := []string{"country_code"}
	if c.options.Shape == core.ShapeNested {
		header = append(header, "indicator")
	}
	return append(header, c.options.Years.Columns()...)
}

// Write writes the table, countries and labels in sorted order.
func (c *CSVWriter) Write(ctx context.Context, table core.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.options.Shape == core.ShapeFlat {
		if _, err := table.Flatten(); err != nil {
			return &CSVWriterError{Op: "shape", Err: err}
		}
	}

	if c.options.WriteHeader {
		if err := c.writer.Write(c.Header()); err != nil {
			return &CSVWriterError{Op: "write_header", Err: err}
		}
	}

	for _, country := range table.Countries() {
		if err := ctx.Err(); err != nil {
			return &CSVWriterError{Op: "write", Err: err}
		}
		for _, label := range table.Labels(country) {
			row := []string{country}
			if c.options.Shape == core.ShapeNested {
				row = append(row, label)
			}
			row = append(row, table[country][label]...)
			if err := c.writer.Write(row); err != nil {
				return &CSVWriterError{
					Op:  "write_row",
					Err: fmt.Errorf("failed to write CSV row: %w", err),
				}
			}
			c.stats.RowsWritten++
		}
	}

	return c.flushUnsafe()
}

// Flush flushes the underlying csv.Writer.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushUnsafe()
}

func (c *CSVWriter) flushUnsafe() error {
	start := time.Now()
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return &CSVWriterError{Op: "flush", Err: fmt.Errorf("CSV writer flush error: %w", err)}
	}
	c.stats.FlushCount++
	c.stats.LastFlushTime = time.Now()
	c.stats.FlushDuration += time.Since(start)
	return nil
}

// Close flushes and closes the underlying writer.
func (c *CSVWriter) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Stats returns a copy of the writer statistics.
func (c *CSVWriter) Stats() CSVWriterStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
