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
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/wdishape/core"
)

// ParquetWriterError represents an error that occurred during Parquet writing operations.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "create_writer", "write_batch", "close_writer")
	Err error  // Underlying error
}

func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// Column layout of the long-form Parquet output.
const (
	ParquetCountryColumn   = "country_code"
	ParquetIndicatorColumn = "indicator"
	ParquetPositionColumn  = "position"
	ParquetYearColumn      = "year"
	ParquetValueColumn     = "value"
)

// ParquetSchema is the Arrow schema of the long-form output: one row per value.
var ParquetSchema = arrow.NewSchema([]arrow.Field{
	{Name: ParquetCountryColumn, Type: arrow.BinaryTypes.String},
	{Name: ParquetIndicatorColumn, Type: arrow.BinaryTypes.String},
	{Name: ParquetPositionColumn, Type: arrow.PrimitiveTypes.Int32},
	{Name: ParquetYearColumn, Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: ParquetValueColumn, Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// WriterStats holds statistics about the Parquet writer.
type WriterStats struct {
	RowsWritten    int64
	BatchesWritten int64
	NullValues     int64
	WriteDuration  time.Duration
	LastWriteTime  time.Time
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Rows per Arrow record batch
	RowGroupSize int64                // Max rows per Parquet row group
	Compression  compress.Compression // Compression algorithm
	Years        core.YearAxis        // Maps value positions to years
	Metadata     map[string]string    // Schema-level key/value metadata
}

// WriterOption is a functional option for ParquetWriter.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of rows per record batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the compression codec.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize caps the number of rows per row group.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithParquetYearAxis sets the year axis used for the year column.
func WithParquetYearAxis(axis core.YearAxis) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Years = axis
	}
}

// WithMetadata attaches key/value metadata to the file schema.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// ParquetWriter writes a table in long form: country_code, indicator, position, year, value.
// Empty values are stored as nulls; positions outside the year axis get a null year.
type ParquetWriter struct {
	writer    io.Writer
	closer    io.Closer
	opts      ParquetWriterOptions
	stats     WriterStats
	allocator memory.Allocator
}

var _ core.DataSink = (*ParquetWriter)(nil)

// writerOnly hides Close so the parquet file writer cannot close our sink.
type writerOnly struct{ io.Writer }

// NewParquetWriter creates a Parquet writer over w.
func NewParquetWriter(w io.WriteCloser, options ...WriterOption) *ParquetWriter {
	opts := ParquetWriterOptions{
		BatchSize:    1000,
		RowGroupSize: 10000,
		Compression:  compress.Codecs.Snappy,
		Years:        core.DefaultYearAxis,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	return &ParquetWriter{
		writer:    w,
		closer:    w,
		opts:      opts,
		allocator: memory.NewGoAllocator(),
	}
}

func (p *ParquetWriter) schema() *arrow.Schema {
	if len(p.opts.Metadata) == 0 {
		return ParquetSchema
	}
	keys := make([]string, 0, len(p.opts.Metadata))
	for k := range p.opts.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = p.opts.Metadata[k]
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(ParquetSchema.Fields(), &md)
}

// Write encodes the whole table as one Parquet file.
func (p *ParquetWriter) Write(ctx context.Context, table core.Table) error {
	start := time.Now()
	schema := p.schema()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	fw, err := pqarrow.NewFileWriter(schema, writerOnly{p.writer}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: fmt.Errorf("failed to create parquet file writer: %w", err)}
	}

	builder := array.NewRecordBuilder(p.allocator, schema)
	defer builder.Release()

	countryB := builder.Field(0).(*array.StringBuilder)
	indicatorB := builder.Field(1).(*array.StringBuilder)
	positionB := builder.Field(2).(*array.Int32Builder)
	yearB := builder.Field(3).(*array.Int32Builder)
	valueB := builder.Field(4).(*array.StringBuilder)

	var pending int64
	flush := func() error {
		if pending == 0 {
			return nil
		}
		rec := builder.NewRecord()
		defer rec.Release()
		if err := fw.Write(rec); err != nil {
			return &ParquetWriterError{Op: "write_batch", Err: fmt.Errorf("failed to write record batch: %w", err)}
		}
		p.stats.BatchesWritten++
		pending = 0
		return nil
	}

	for _, country := range table.Countries() {
		if err := ctx.Err(); err != nil {
			fw.Close()
			return &ParquetWriterError{Op: "write", Err: err}
		}
		for _, label := range table.Labels(country) {
			for position, value := range table[country][label] {
				countryB.Append(country)
				indicatorB.Append(label)
				positionB.Append(int32(position))
				if year, ok := p.opts.Years.Year(position); ok {
					yearB.Append(int32(year))
				} else {
					yearB.AppendNull()
				}
				if value == "" {
					valueB.AppendNull()
					p.stats.NullValues++
				} else {
					valueB.Append(value)
				}
				pending++
				p.stats.RowsWritten++

				if pending >= p.opts.BatchSize {
					if err := flush(); err != nil {
						fw.Close()
						return err
					}
				}
			}
		}
	}

	if err := flush(); err != nil {
		fw.Close()
		return err
	}

	if err := fw.Close(); err != nil {
		return &ParquetWriterError{Op: "close_writer", Err: fmt.Errorf("failed to close parquet writer: %w", err)}
	}

	p.stats.WriteDuration += time.Since(start)
	p.stats.LastWriteTime = time.Now()
	return nil
}

// Flush is a no-op; Write emits a complete file.
func (p *ParquetWriter) Flush() error {
	return nil
}

// Close closes the underlying writer.
func (p *ParquetWriter) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// Stats returns the writer statistics.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}
