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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresWriter_QuoteTable(t *testing.T) {
	assert.Equal(t, `"indicator_values"`, quoteTable("indicator_values"))
	assert.Equal(t, `"wdi"."values"`, quoteTable("wdi.values"))
	assert.Equal(t, `"odd""name"`, quoteTable(`odd"name`))
}

func TestPostgresWriter_Queries(t *testing.T) {
	create := createTableQuery("wdi.values")
	assert.Contains(t, create, `CREATE TABLE IF NOT EXISTS "wdi"."values"`)
	assert.Contains(t, create, "vals TEXT[] NOT NULL")
	assert.Contains(t, create, "PRIMARY KEY (country_code, indicator)")

	plain := insertQuery("indicator_values", false)
	assert.Equal(t, `INSERT INTO "indicator_values" (country_code, indicator, vals) VALUES ($1, $2, $3)`, plain)

	upsert := insertQuery("indicator_values", true)
	assert.Contains(t, upsert, "ON CONFLICT (country_code, indicator) DO UPDATE SET vals = EXCLUDED.vals")
}

func TestPostgresWriter_Validation(t *testing.T) {
	_, err := NewPostgresWriter(context.Background())
	require.Error(t, err)

	var writerErr *PostgresWriterError
	require.ErrorAs(t, err, &writerErr)
	assert.Equal(t, "validate", writerErr.Op)
	assert.Contains(t, err.Error(), "dsn is required")

	_, err = NewPostgresWriter(context.Background(),
		WithPostgresDSN("postgres://localhost/wdi"),
		WithTableName(""),
	)
	require.ErrorAs(t, err, &writerErr)
	assert.Contains(t, err.Error(), "table name is required")
}
