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

package wdishape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/wdishape/aggregate"
	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/indicator"
)

// Package wdishape reshapes World Development Indicators style CSV exports into
// per-country tables keyed by human-readable indicator labels.
//
// Core Concepts:
//   - RowSource: streams rows from a local file, S3 object or HTTP resource.
//   - Mapping: the indicator codes to keep and the labels they are stored under.
//   - Transformer / Filter: optional per-row steps before accumulation.
//   - Validator: optional checks on the finished table.
//   - DataSink: receives the finished table (JSON, CSV, Parquet, PostgreSQL, MongoDB).
//
// Example usage:
//
//   pipeline, err := wdishape.NewPipeline().
//       From(reader).
//       Select(indicator.Default()).
//       Filter(filter.CountryNotIn("WLD")).
//       To(jsonWriter).
//       Build()
//   if err != nil { log.Fatal(err) }
//   report, err := pipeline.Execute(context.Background())
//
// Sinks receive the table only after the whole source was read and validated,
// so a failed run never produces partial output.

// PipelineBuilder provides a fluent API for constructing reshaping pipelines.
// Use NewPipeline() to create a new builder, then chain From, Select, To and configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
// The default error strategy is CollectErrors and the default logger discards everything.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]core.Transformer, 0),
			filters:      make([]core.Filter, 0),
			strategy:     core.CollectErrors,
			logger:       zap.NewNop(),
		},
	}
}

// From sets the row source.
func (pb *PipelineBuilder) From(source core.RowSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Select sets the indicator mapping: which codes to keep and their labels.
func (pb *PipelineBuilder) Select(mapping indicator.Mapping) *PipelineBuilder {
	pb.pipeline.mapping = mapping
	return pb
}

// Transform adds a Transformer, applied to every row before indicator lookup.
func (pb *PipelineBuilder) Transform(transformer core.Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Filter adds a Filter, applied to rows whose indicator code is in the mapping.
func (pb *PipelineBuilder) Filter(filter core.Filter) *PipelineBuilder {
	pb.pipeline.filters = append(pb.pipeline.filters, filter)
	return pb
}

// Where adds a filtering condition using a function.
func (pb *PipelineBuilder) Where(fn func(ctx context.Context, row core.Row) (bool, error)) *PipelineBuilder {
	return pb.Filter(core.FilterFunc(fn))
}

// Validate adds a Validator run on the finished table before any sink sees it.
func (pb *PipelineBuilder) Validate(validator core.Validator) *PipelineBuilder {
	pb.pipeline.validators = append(pb.pipeline.validators, validator)
	return pb
}

// To adds one or more sinks. Each receives the same table.
func (pb *PipelineBuilder) To(sinks ...core.DataSink) *PipelineBuilder {
	pb.pipeline.sinks = append(pb.pipeline.sinks, sinks...)
	return pb
}

// WithErrorStrategy sets the error handling strategy for row errors.
func (pb *PipelineBuilder) WithErrorStrategy(strategy core.ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom handler that sees every row error and may abort the run.
func (pb *PipelineBuilder) WithErrorHandler(handler core.ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// WithLogger sets the logger used for row warnings and the run summary.
func (pb *PipelineBuilder) WithLogger(logger *zap.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a row source")
	}
	if err := pb.pipeline.mapping.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline requires a valid indicator mapping: %w", err)
	}
	if len(pb.pipeline.sinks) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one data sink")
	}
	return pb.pipeline, nil
}

// Pipeline reads every row of a source into a Result Table and hands the table to its sinks.
// A Pipeline runs once; the source and sinks are closed when Execute returns.
type Pipeline struct {
	source       core.RowSource
	mapping      indicator.Mapping
	transformers []core.Transformer
	filters      []core.Filter
	validators   []core.Validator
	sinks        []core.DataSink
	strategy     core.ErrorStrategy
	errorHandler core.ErrorHandler
	logger       *zap.Logger
}

// Execute runs the pipeline.
//
// The returned report is never nil and describes the run even when it failed.
// Row errors (malformed rows, transformer or filter errors) are governed by the
// error strategy; source errors, validation failures and sink errors are fatal.
func (p *Pipeline) Execute(ctx context.Context) (report *core.Report, err error) {
	start := time.Now()
	report = &core.Report{}
	reshaper := aggregate.NewReshaper(p.mapping)

	defer func() {
		if closeErr := p.close(); closeErr != nil && err == nil {
			err = closeErr
		}
		report.RowsSelected = reshaper.Stats().RowsSelected
		report.Duration = time.Since(start)
	}()

	if err := p.scan(ctx, reshaper, report); err != nil {
		return report, err
	}

	table := reshaper.Result()
	report.Countries = len(table)

	for _, validator := range p.validators {
		if err := validator.Validate(ctx, table); err != nil {
			return report, fmt.Errorf("table validation failed: %w", err)
		}
	}

	for _, sink := range p.sinks {
		if err := sink.Write(ctx, table); err != nil {
			return report, fmt.Errorf("failed to write table: %w", err)
		}
		if err := sink.Flush(); err != nil {
			return report, fmt.Errorf("failed to flush sink: %w", err)
		}
	}

	p.logger.Info("reshape complete",
		zap.Int64("rows_read", report.RowsRead),
		zap.Int64("rows_selected", reshaper.Stats().RowsSelected),
		zap.Int64("rows_skipped", report.RowsSkipped),
		zap.Int64("rows_malformed", report.RowsMalformed),
		zap.Int("countries", report.Countries),
		zap.Int("sinks", len(p.sinks)),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// scan reads the source to the end, folding selected rows into reshaper.
func (p *Pipeline) scan(ctx context.Context, reshaper *aggregate.Reshaper, report *core.Report) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := p.source.Read(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var malformed *core.MalformedRowError
			if errors.As(err, &malformed) {
				report.RowsRead++
				report.RowsMalformed++
				if err := p.handleError(ctx, report, row, err); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("failed to read source: %w", err)
		}
		report.RowsRead++

		if !row.Valid() {
			report.RowsMalformed++
			if err := p.handleError(ctx, report, row, &core.MalformedRowError{Line: p.line(), Fields: len(row)}); err != nil {
				return err
			}
			continue
		}

		transformed, err := p.applyTransformations(ctx, row)
		if err != nil {
			report.RowsSkipped++
			if err := p.handleError(ctx, report, row, fmt.Errorf("transform failed at line %d: %w", p.line(), err)); err != nil {
				return err
			}
			continue
		}

		if _, ok := p.mapping.Label(transformed.Indicator()); !ok {
			report.RowsSkipped++
			continue
		}

		include, err := p.applyFilters(ctx, transformed)
		if err != nil {
			report.RowsSkipped++
			if err := p.handleError(ctx, report, transformed, fmt.Errorf("filter failed at line %d: %w", p.line(), err)); err != nil {
				return err
			}
			continue
		}
		if !include {
			report.RowsSkipped++
			continue
		}

		if err := reshaper.Add(ctx, transformed); err != nil {
			// A transformer shortened the row below the minimum width.
			report.RowsMalformed++
			var malformed *core.MalformedRowError
			if errors.As(err, &malformed) {
				malformed.Line = p.line()
			}
			if err := p.handleError(ctx, report, transformed, err); err != nil {
				return err
			}
		}
	}
}

// line returns the input line of the last row read, or 0 when the source cannot tell.
func (p *Pipeline) line() int {
	if pos, ok := p.source.(core.Positioner); ok {
		return pos.Line()
	}
	return 0
}

// applyFilters applies all configured filters to a row.
func (p *Pipeline) applyFilters(ctx context.Context, row core.Row) (bool, error) {
	for _, filter := range p.filters {
		include, err := filter.ShouldInclude(ctx, row)
		if err != nil {
			return false, err
		}
		if !include {
			return false, nil
		}
	}
	return true, nil
}

// applyTransformations applies all configured transformers to a row in sequence.
func (p *Pipeline) applyTransformations(ctx context.Context, row core.Row) (core.Row, error) {
	current := row
	for _, transformer := range p.transformers {
		transformed, err := transformer.Transform(ctx, current)
		if err != nil {
			return nil, err
		}
		current = transformed
	}
	return current, nil
}

// handleError handles a row error according to the pipeline's error strategy and handler.
// Returns an error if processing should stop, or nil to continue.
func (p *Pipeline) handleError(ctx context.Context, report *core.Report, row core.Row, err error) error {
	if p.strategy == core.FailFast {
		return err
	}

	p.logger.Warn("skipping row", zap.Error(err), zap.Strings("row", row))
	if p.strategy == core.CollectErrors {
		report.Warnings = append(report.Warnings, err)
	}
	if p.errorHandler != nil {
		return p.errorHandler.HandleError(ctx, row, err)
	}
	return nil
}

// close closes every sink and the source, returning the first error.
func (p *Pipeline) close() error {
	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
		}
	}
	if err := p.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close source: %w", err))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
