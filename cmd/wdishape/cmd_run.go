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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aaronlmathis/wdishape"
	"github.com/aaronlmathis/wdishape/config"
	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/filter"
	"github.com/aaronlmathis/wdishape/indicator"
	"github.com/aaronlmathis/wdishape/output"
	"github.com/aaronlmathis/wdishape/readers"
	"github.com/aaronlmathis/wdishape/transform"
	"github.com/aaronlmathis/wdishape/validators"
	"github.com/aaronlmathis/wdishape/writers"
)

type runFlags struct {
	input           string
	output          string
	shape           string
	skipHeader      bool
	delimiter       string
	indicators      []string
	indicatorsFile  string
	csvOutput       string
	parquetOutput   string
	postgresDSN     string
	postgresTable   string
	mongoURI        string
	mongoDatabase   string
	mongoCollection string
	errorStrategy   string
	countries       []string
	excludeCountry  []string
	indent          string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reshape an indicator export",
		Long: `Reads the input once, keeps the rows whose indicator code is in the
mapping and writes the resulting table to every configured output.

Outputs are written only after the whole input was read; a missing input
or a failed validation leaves no output behind. Malformed rows are skipped
and reported unless --error-strategy fail-fast is given.`,
		Example: `  wdishape run -i WDIData.csv -o wdi.json
  wdishape run -i s3://wdi/WDIData.csv -o wdi.json --csv-output wdi.csv
  wdishape run -i WDIData.csv -o - --shape flat --indicator SP.POP.1564.TO.ZS=population-working-age`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, a, f)
			if err != nil {
				return err
			}
			return runReshape(cmd, a, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "Input location: path, s3://bucket/key or http(s) URL")
	flags.StringVarP(&f.output, "output", "o", "", "Output location: path, s3://bucket/key, database URL or - for stdout")
	flags.StringVar(&f.shape, "shape", "", "Output shape: nested or flat")
	flags.BoolVar(&f.skipHeader, "skip-header", true, "Treat the first input row as a header")
	flags.StringVar(&f.delimiter, "delimiter", "", "Input field delimiter")
	flags.StringArrayVar(&f.indicators, "indicator", nil, "Indicator to keep as CODE=LABEL (repeatable)")
	flags.StringVar(&f.indicatorsFile, "indicators-file", "", "YAML file of code: label pairs")
	flags.StringVar(&f.csvOutput, "csv-output", "", "Also write a denormalized CSV with a _YYYY header")
	flags.StringVar(&f.parquetOutput, "parquet-output", "", "Also write a long-form Parquet file")
	flags.StringVar(&f.postgresDSN, "postgres-dsn", "", "Also upsert the table into PostgreSQL")
	flags.StringVar(&f.postgresTable, "postgres-table", "", "PostgreSQL table name")
	flags.StringVar(&f.mongoURI, "mongo-uri", "", "Also upsert one document per country into MongoDB")
	flags.StringVar(&f.mongoDatabase, "mongo-database", "", "MongoDB database")
	flags.StringVar(&f.mongoCollection, "mongo-collection", "", "MongoDB collection")
	flags.StringVar(&f.errorStrategy, "error-strategy", "", "Row error handling: fail-fast, skip or collect")
	flags.StringSliceVar(&f.countries, "country", nil, "Keep only these country codes")
	flags.StringSliceVar(&f.excludeCountry, "exclude-country", nil, "Drop these country codes")
	flags.StringVar(&f.indent, "indent", "", "Indent JSON output with this string")

	return cmd
}

// loadConfig reads the configuration file and applies command-line overrides.
func loadConfig(cmd *cobra.Command, a *app, f *runFlags) (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	set("input", &cfg.Input.Location, f.input)
	set("output", &cfg.Output.Location, f.output)
	set("shape", &cfg.Shape, f.shape)
	set("delimiter", &cfg.Input.Delimiter, f.delimiter)
	set("indicators-file", &cfg.IndicatorsFile, f.indicatorsFile)
	set("csv-output", &cfg.Output.CSV, f.csvOutput)
	set("parquet-output", &cfg.Output.Parquet, f.parquetOutput)
	set("postgres-dsn", &cfg.Output.Postgres.DSN, f.postgresDSN)
	set("postgres-table", &cfg.Output.Postgres.Table, f.postgresTable)
	set("mongo-uri", &cfg.Output.Mongo.URI, f.mongoURI)
	set("mongo-database", &cfg.Output.Mongo.Database, f.mongoDatabase)
	set("mongo-collection", &cfg.Output.Mongo.Collection, f.mongoCollection)
	set("error-strategy", &cfg.ErrorStrategy, f.errorStrategy)
	set("indent", &cfg.Output.Indent, f.indent)

	if flags.Changed("skip-header") {
		cfg.Input.SkipHeader = f.skipHeader
	}
	if flags.Changed("indicator") {
		mapping, err := indicator.Parse(f.indicators)
		if err != nil {
			return nil, err
		}
		cfg.Indicators = mapping
		cfg.IndicatorsFile = ""
	} else if flags.Changed("indicators-file") {
		cfg.Indicators = nil
	}
	if flags.Changed("country") {
		cfg.Filters.Countries = f.countries
	}
	if flags.Changed("exclude-country") {
		cfg.Filters.ExcludeCountries = f.excludeCountry
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if !a.verbose {
		if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
			a.level.SetLevel(level)
		}
	}
	return cfg, nil
}

func runReshape(cmd *cobra.Command, a *app, cfg *config.Config) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.logger

	mapping, err := cfg.Mapping()
	if err != nil {
		return err
	}

	source, err := readers.Open(ctx, cfg.Input.Location, sourceOptions(cfg))
	if err != nil {
		return err
	}

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		source.Close()
		return err
	}

	builder := wdishape.NewPipeline().
		From(source).
		Select(mapping).
		To(sinks...).
		WithErrorStrategy(cfg.GetErrorStrategy()).
		WithLogger(logger.With(zap.String("input", cfg.Input.Location)))

	for _, t := range buildTransforms(cfg) {
		builder.Transform(t)
	}
	filters, err := buildFilters(cfg)
	if err != nil {
		closeAll(source, sinks)
		return err
	}
	for _, flt := range filters {
		builder.Filter(flt)
	}
	if v := buildValidator(cfg); v != nil {
		builder.Validate(v)
	}

	pipeline, err := builder.Build()
	if err != nil {
		closeAll(source, sinks)
		return err
	}

	logger.Debug("starting run",
		zap.String("output", cfg.Output.Location),
		zap.Strings("indicators", mapping.Codes()),
		zap.String("shape", cfg.Shape),
		zap.Int("sinks", len(sinks)),
	)

	report, err := pipeline.Execute(ctx)
	printReport(cmd, report)
	return err
}

func closeAll(source core.RowSource, sinks []core.DataSink) {
	for _, sink := range sinks {
		sink.Close()
	}
	source.Close()
}

func s3ClientOptions(cfg *config.Config) readers.S3ClientOptions {
	return readers.S3ClientOptions{
		Region:         cfg.S3.Region,
		Profile:        cfg.S3.Profile,
		EndpointURL:    cfg.S3.Endpoint,
		ForcePathStyle: cfg.S3.PathStyle,
	}
}

func sourceOptions(cfg *config.Config) readers.SourceOptions {
	opts := readers.SourceOptions{
		CSV: []readers.ReaderOptionCSV{
			readers.WithCSVComma(cfg.GetDelimiter()),
			readers.WithCSVSkipHeader(cfg.Input.SkipHeader),
			readers.WithCSVLazyQuotes(cfg.Input.LazyQuotes),
		},
		S3: []readers.ReaderOptionS3{
			readers.WithS3Region(cfg.S3.Region),
			readers.WithS3Profile(cfg.S3.Profile),
			readers.WithS3Endpoint(cfg.S3.Endpoint),
			readers.WithS3PathStyle(cfg.S3.PathStyle),
		},
		HTTP: []readers.ReaderOptionHTTP{
			readers.WithHTTPTimeout(cfg.GetHTTPTimeout()),
		},
	}
	if cfg.Input.BearerToken != "" {
		opts.HTTP = append(opts.HTTP, readers.WithHTTPBearerToken(cfg.Input.BearerToken))
	}
	return opts
}

func sinkOptions(cfg *config.Config) output.SinkOptions {
	shape := cfg.GetShape()
	years := cfg.GetYearAxis()
	return output.SinkOptions{
		JSON: []writers.WriterOptionJSON{
			writers.WithJSONShape(shape),
			writers.WithJSONIndent(cfg.Output.Indent),
		},
		CSV: []writers.WriterOptionCSV{
			writers.WithCSVShape(shape),
			writers.WithYearAxis(years),
		},
		Parquet: []writers.WriterOption{
			writers.WithParquetYearAxis(years),
			writers.WithMetadata(map[string]string{"wdishape.source": cfg.Input.Location}),
		},
		Postgres: []writers.PostgresWriterOption{
			writers.WithTableName(cfg.Output.Postgres.Table),
			writers.WithTruncateTable(cfg.Output.Postgres.Truncate),
		},
		Mongo: []writers.WriterOptionMongo{
			writers.WithMongoDatabase(cfg.Output.Mongo.Database),
			writers.WithMongoCollection(cfg.Output.Mongo.Collection),
			writers.WithMongoShape(shape),
		},
	}
}

// buildSinks creates one sink per configured output. On error, sinks already created are closed.
func buildSinks(ctx context.Context, cfg *config.Config) ([]core.DataSink, error) {
	type target struct {
		location string
		format   *output.OutputFormat
	}
	csvFormat, parquetFormat := output.FormatCSV, output.FormatParquet
	targets := []target{{location: cfg.Output.Location}}
	if cfg.Output.CSV != "" {
		targets = append(targets, target{location: cfg.Output.CSV, format: &csvFormat})
	}
	if cfg.Output.Parquet != "" {
		targets = append(targets, target{location: cfg.Output.Parquet, format: &parquetFormat})
	}
	if cfg.Output.Postgres.DSN != "" {
		targets = append(targets, target{location: cfg.Output.Postgres.DSN})
	}
	if cfg.Output.Mongo.URI != "" {
		targets = append(targets, target{location: cfg.Output.Mongo.URI})
	}

	opts := sinkOptions(cfg)
	sinks := make([]core.DataSink, 0, len(targets))
	for _, t := range targets {
		loc, err := output.Resolve(t.location, s3ClientOptions(cfg))
		if err != nil {
			closeSinks(sinks)
			return nil, err
		}
		format := output.DefaultFormat(loc)
		if t.format != nil {
			format = *t.format
		}
		sink, err := loc.NewSink(ctx, format, opts)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("output %s: %w", t.location, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func closeSinks(sinks []core.DataSink) {
	for _, sink := range sinks {
		sink.Close()
	}
}

func buildTransforms(cfg *config.Config) []core.Transformer {
	var out []core.Transformer
	if cfg.Transforms.TrimSpace {
		out = append(out, transform.TrimSpace())
	}
	if cfg.Transforms.UpperCountry {
		out = append(out, transform.UpperCountry())
	}
	if len(cfg.Transforms.MissingTokens) > 0 {
		out = append(out, transform.NormalizeMissing(cfg.Transforms.MissingTokens...))
	}
	return out
}

func buildFilters(cfg *config.Config) ([]core.Filter, error) {
	var out []core.Filter
	if len(cfg.Filters.Countries) > 0 {
		out = append(out, filter.CountryIn(cfg.Filters.Countries...))
	}
	if len(cfg.Filters.ExcludeCountries) > 0 {
		out = append(out, filter.CountryNotIn(cfg.Filters.ExcludeCountries...))
	}
	if cfg.Filters.CountryPattern != "" {
		f, err := filter.CountryMatches(cfg.Filters.CountryPattern)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if cfg.Filters.DropEmpty {
		out = append(out, filter.HasValues())
	}
	return out, nil
}

func buildValidator(cfg *config.Config) core.Validator {
	v := cfg.Validation
	if v.MinCountries == 0 && len(v.RequiredLabels) == 0 && v.ValueCount == 0 && v.MaxEmptyRate == 0 {
		return nil
	}
	return validators.NewConfigurableDataQualityValidator(v.MinCountries, v.RequiredLabels,
		validators.WithValueCount(v.ValueCount),
		validators.WithMaxEmptyRate(v.MaxEmptyRate),
	)
}

func printReport(cmd *cobra.Command, report *core.Report) {
	if report == nil {
		return
	}
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "rows read: %d, selected: %d, skipped: %d, malformed: %d, countries: %d (%s)\n",
		report.RowsRead, report.RowsSelected, report.RowsSkipped, report.RowsMalformed,
		report.Countries, report.Duration.Round(time.Millisecond))
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  warning: %v\n", warning)
	}
}
