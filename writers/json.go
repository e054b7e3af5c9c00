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
	"encoding/json"
	"fmt"
	"io"

	"github.com/aaronlmathis/wdishape/core"
)

// JSONWriterError wraps errors raised while serializing a table to JSON.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// JSONWriterOptions configures the JSON writer.
type JSONWriterOptions struct {
	Shape  core.Shape
	Indent string // empty for compact output
}

// WriterOptionJSON is a functional option for JSONWriter.
type WriterOptionJSON func(*JSONWriterOptions)

// WithJSONShape selects flat or nested output.
func WithJSONShape(shape core.Shape) WriterOptionJSON {
	return func(opts *JSONWriterOptions) {
		opts.Shape = shape
	}
}

// WithJSONIndent pretty-prints with the given indent.
func WithJSONIndent(indent string) WriterOptionJSON {
	return func(opts *JSONWriterOptions) {
		opts.Indent = indent
	}
}

// JSONWriter writes a table as one JSON object.
// Object keys come out sorted, so equal tables always serialize to equal bytes.
type JSONWriter struct {
	writer io.Writer
	closer io.Closer
	opts   JSONWriterOptions
}

var _ core.DataSink = (*JSONWriter)(nil)

// NewJSONWriter creates a JSON writer over w.
func NewJSONWriter(w io.WriteCloser, options ...WriterOptionJSON) *JSONWriter {
	opts := JSONWriterOptions{Shape: core.ShapeNested}
	for _, opt := range options {
		opt(&opts)
	}
	return &JSONWriter{
		writer: w,
		closer: w,
		opts:   opts,
	}
}

// Write serializes the table in the configured shape.
func (j *JSONWriter) Write(ctx context.Context, table core.Table) error {
	doc, err := table.Shaped(j.opts.Shape)
	if err != nil {
		return &JSONWriterError{Op: "shape", Err: err}
	}

	var data []byte
	if j.opts.Indent != "" {
		data, err = json.MarshalIndent(doc, "", j.opts.Indent)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: fmt.Errorf("failed to marshal table to JSON: %w", err)}
	}

	if _, err := j.writer.Write(data); err != nil {
		return &JSONWriterError{Op: "write", Err: fmt.Errorf("failed to write JSON data: %w", err)}
	}

	return nil
}

// Flush flushes the underlying writer if it buffers.
func (j *JSONWriter) Flush() error {
	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the underlying writer.
func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
