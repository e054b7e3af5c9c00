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

package core

import (
	"context"
)

// Package core defines the core interfaces for the WDIShape library.
//
// This file contains the primary interfaces for row sources, table sinks, transformation,
// filtering and validation.

// RowSource defines the interface for row extraction.
// Implementations stream rows from a delimited source (local file, S3 object, HTTP resource).
type RowSource interface {
	// Read returns the next row or io.EOF when no more rows are available.
	Read(ctx context.Context) (Row, error)
	// Close releases any resources held by the source.
	Close() error
}

// Positioner is implemented by sources that know the input line of the last row read.
type Positioner interface {
	Line() int
}

// DataSink defines the interface for loading a finished Result Table.
// Implementations write the table to a destination (JSON, CSV, Parquet, PostgreSQL, MongoDB).
type DataSink interface {
	// Write outputs the whole table to the sink.
	Write(ctx context.Context, table Table) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the sink.
	Close() error
}

// Transformer defines the interface for row transformation operations.
type Transformer interface {
	// Transform applies the transformation to a row and returns the result.
	Transform(ctx context.Context, row Row) (Row, error)
}

// Filter defines the interface for row filtering.
// Filters run after indicator validation and before accumulation.
type Filter interface {
	// ShouldInclude returns true if the row should reach the table.
	ShouldInclude(ctx context.Context, row Row) (bool, error)
}

// Validator checks a finished table before it is handed to any sink.
type Validator interface {
	Validate(ctx context.Context, table Table) error
}
