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
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/wdishape/core"
)

// PostgresWriterError represents an error that occurred while writing to PostgreSQL.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "write", "connect")
	Err error  // The underlying error
}

func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds statistics about the PostgreSQL writer.
type PostgresWriterStats struct {
	RowsWritten      int64         // (country, indicator) rows written
	TransactionCount int64         // Number of transactions committed
	LastWriteTime    time.Time     // Time of last write
	WriteDuration    time.Duration // Total time spent writing
	ConnectionTime   time.Duration // Time spent establishing connection
}

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN             string        // PostgreSQL connection string
	TableName       string        // Target table, optionally schema-qualified
	CreateTable     bool          // Create table if not exists
	TruncateTable   bool          // Truncate table before writing
	Upsert          bool          // Replace rows that share (country_code, indicator)
	ConnMaxLifetime time.Duration // Max connection lifetime
	MaxOpenConns    int           // Max open connections
	QueryTimeout    time.Duration // Timeout for connect and write
}

// PostgresWriterOption is a functional option for PostgresWriter.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithPostgresDSN sets the connection string.
func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithTableName sets the target table.
func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithCreateTable creates the table when missing.
func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable empties the table before writing.
func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

// WithUpsert replaces existing (country_code, indicator) rows instead of failing.
func WithUpsert(upsert bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.Upsert = upsert
	}
}

// WithPostgresQueryTimeout sets the timeout for connect and write.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresWriter stores a table as (country_code, indicator, vals TEXT[]) rows in one transaction.
type PostgresWriter struct {
	db      *sql.DB
	options PostgresWriterOptions
	stats   PostgresWriterStats
	mu      sync.Mutex
}

var _ core.DataSink = (*PostgresWriter)(nil)

// NewPostgresWriter validates options and connects.
func NewPostgresWriter(ctx context.Context, opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := PostgresWriterOptions{
		TableName:       "indicator_values",
		CreateTable:     true,
		Upsert:          true,
		QueryTimeout:    30 * time.Second,
		ConnMaxLifetime: 5 * time.Minute,
		MaxOpenConns:    4,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := validatePostgresOptions(options); err != nil {
		return nil, &PostgresWriterError{Op: "validate", Err: err}
	}

	writer := &PostgresWriter{options: options}
	if err := writer.connect(ctx); err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}
	return writer, nil
}

func validatePostgresOptions(opts PostgresWriterOptions) error {
	if opts.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if opts.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	return nil
}

func (w *PostgresWriter) connect(ctx context.Context) error {
	start := time.Now()

	db, err := sql.Open("postgres", w.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(w.options.MaxOpenConns)
	db.SetConnMaxLifetime(w.options.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, w.options.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	w.db = db
	w.stats.ConnectionTime = time.Since(start)
	return nil
}

// quoteTable quotes each part of a possibly schema-qualified table name.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

func createTableQuery(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (country_code TEXT NOT NULL, indicator TEXT NOT NULL, vals TEXT[] NOT NULL, PRIMARY KEY (country_code, indicator))",
		quoteTable(table))
}

func insertQuery(table string, upsert bool) string {
	query := fmt.Sprintf("INSERT INTO %s (country_code, indicator, vals) VALUES ($1, $2, $3)", quoteTable(table))
	if upsert {
		query += " ON CONFLICT (country_code, indicator) DO UPDATE SET vals = EXCLUDED.vals"
	}
	return query
}

// Write stores the table inside a single transaction; on any failure nothing is committed.
func (w *PostgresWriter) Write(ctx context.Context, table core.Table) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.options.QueryTimeout)
	defer cancel()

	if w.options.CreateTable {
		if _, err := w.db.ExecContext(ctx, createTableQuery(w.options.TableName)); err != nil {
			return &PostgresWriterError{Op: "create_table", Err: err}
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresWriterError{Op: "begin", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if w.options.TruncateTable {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", quoteTable(w.options.TableName))); err != nil {
			return &PostgresWriterError{Op: "truncate", Err: err}
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertQuery(w.options.TableName, w.options.Upsert))
	if err != nil {
		return &PostgresWriterError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	var written int64
	for _, country := range table.Countries() {
		for _, label := range table.Labels(country) {
			if _, err = stmt.ExecContext(ctx, country, label, pq.Array(table[country][label])); err != nil {
				return &PostgresWriterError{Op: "insert", Err: fmt.Errorf("failed to insert %s/%s: %w", country, label, err)}
			}
			written++
		}
	}

	if err = tx.Commit(); err != nil {
		return &PostgresWriterError{Op: "commit", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	w.stats.RowsWritten += written
	w.stats.TransactionCount++
	w.stats.LastWriteTime = time.Now()
	w.stats.WriteDuration += time.Since(start)
	return nil
}

// Flush is a no-op; Write commits before returning.
func (w *PostgresWriter) Flush() error {
	return nil
}

// Close closes the connection pool.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// Stats returns the writer statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
