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
	"fmt"
)

// Package core defines the error handling types for the WDIShape library.
//
// This file contains the error taxonomy, error handling strategies and function adapters.

// SourceNotFoundError is returned when the input location does not exist. It aborts the run.
type SourceNotFoundError struct {
	Location string
	Err      error
}

func (e *SourceNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source not found: %s", e.Location)
	}
	return fmt.Sprintf("source not found: %s: %v", e.Location, e.Err)
}

func (e *SourceNotFoundError) Unwrap() error {
	return e.Err
}

// MalformedRowError reports a row that cannot be addressed, either because it has fewer than
// MinRowFields fields or because its CSV syntax is broken (Err is set).
type MalformedRowError struct {
	Line   int // input line, 0 when unknown
	Fields int
	Err    error
}

func (e *MalformedRowError) Error() string {
	var where string
	if e.Line > 0 {
		where = fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed row%s: %v", where, e.Err)
	}
	return fmt.Sprintf("malformed row%s: %d fields, need at least %d", where, e.Fields, MinRowFields)
}

func (e *MalformedRowError) Unwrap() error {
	return e.Err
}

// ErrorHandler defines how row errors are handled during processing.
type ErrorHandler interface {
	// HandleError processes an error raised for a single row.
	// Returning a non-nil error will stop the pipeline; returning nil will continue.
	HandleError(ctx context.Context, row Row, err error) error
}

// ErrorStrategy defines how to handle row errors in the pipeline.
type ErrorStrategy int

const (
	// FailFast stops processing on the first error encountered.
	FailFast ErrorStrategy = iota
	// SkipErrors continues processing, skipping failed rows.
	SkipErrors
	// CollectErrors continues processing, recording every failed row in the run report.
	CollectErrors
)

// String returns the configuration name of the strategy.
func (s ErrorStrategy) String() string {
	switch s {
	case FailFast:
		return "fail-fast"
	case SkipErrors:
		return "skip"
	case CollectErrors:
		return "collect"
	default:
		return fmt.Sprintf("ErrorStrategy(%d)", int(s))
	}
}

// ParseErrorStrategy converts a configuration string to an ErrorStrategy.
func ParseErrorStrategy(s string) (ErrorStrategy, error) {
	switch s {
	case "fail-fast", "failfast":
		return FailFast, nil
	case "skip":
		return SkipErrors, nil
	case "collect", "":
		return CollectErrors, nil
	default:
		return 0, fmt.Errorf("unknown error strategy %q (want fail-fast, skip or collect)", s)
	}
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, row Row, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, row Row, err error) error {
	return f(ctx, row, err)
}
