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
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/wdishape/core"
)

func writeParquet(t *testing.T, table core.Table, options ...WriterOption) (string, *ParquetWriter) {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "out.parquet")
	f, err := os.Create(filename)
	require.NoError(t, err)

	writer := NewParquetWriter(f, options...)
	require.NoError(t, writer.Write(context.Background(), table))
	require.NoError(t, writer.Close())
	return filename, writer
}

func readParquet(t *testing.T, filename string) *pqarrow.FileReader {
	t.Helper()
	pf, err := file.OpenParquetFile(filename, false)
	require.NoError(t, err)
	t.Cleanup(func() { pf.Close() })

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	return fr
}

func TestParquetWriter_LongForm(t *testing.T) {
	filename, writer := writeParquet(t, sampleTable(), WithBatchSize(2))

	stats := writer.Stats()
	assert.Equal(t, int64(5), stats.RowsWritten)
	assert.Equal(t, int64(3), stats.BatchesWritten)
	assert.Equal(t, int64(1), stats.NullValues)

	fr := readParquet(t, filename)
	tbl, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(5), tbl.NumRows())
	require.Equal(t, int64(5), tbl.NumCols())
	assert.Equal(t, ParquetCountryColumn, tbl.Schema().Field(0).Name)
	assert.Equal(t, ParquetValueColumn, tbl.Schema().Field(4).Name)

	var countries, values []string
	var years []int32
	var nulls int
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		arr := chunk.(*array.String)
		for i := 0; i < arr.Len(); i++ {
			countries = append(countries, arr.Value(i))
		}
	}
	for _, chunk := range tbl.Column(3).Data().Chunks() {
		arr := chunk.(*array.Int32)
		for i := 0; i < arr.Len(); i++ {
			years = append(years, arr.Value(i))
		}
	}
	for _, chunk := range tbl.Column(4).Data().Chunks() {
		arr := chunk.(*array.String)
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				nulls++
				continue
			}
			values = append(values, arr.Value(i))
		}
	}

	assert.Equal(t, []string{"FRA", "USA", "USA", "USA", "USA"}, countries)
	assert.Equal(t, []int32{2020, 2020, 2020, 2019, 2018}, years)
	assert.Equal(t, []string{"67", "20.9", "331", "329"}, values)
	assert.Equal(t, 1, nulls)
}

func TestParquetWriter_YearOutsideAxis(t *testing.T) {
	table := core.Table{"USA": {"gdp": {"1", "2", "3"}}}
	filename, _ := writeParquet(t, table, WithParquetYearAxis(core.YearAxis{First: 2000, Last: 2001}))

	tbl, err := readParquet(t, filename).ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()

	var nullYears int
	for _, chunk := range tbl.Column(3).Data().Chunks() {
		nullYears += chunk.NullN()
	}
	assert.Equal(t, 1, nullYears)
}

func TestParquetWriter_Options(t *testing.T) {
	filename, _ := writeParquet(t, sampleTable(),
		WithCompression(compress.Codecs.Gzip),
		WithRowGroupSize(2),
		WithMetadata(map[string]string{"source": "wdi"}),
	)

	fr := readParquet(t, filename)
	assert.Equal(t, 3, fr.ParquetReader().NumRowGroups())

	kv := fr.ParquetReader().MetaData().KeyValueMetadata()
	value := kv.FindValue("source")
	require.NotNil(t, value)
	assert.Equal(t, "wdi", *value)
}

func TestParquetWriter_EmptyTable(t *testing.T) {
	filename, writer := writeParquet(t, core.Table{})
	assert.Equal(t, int64(0), writer.Stats().RowsWritten)

	tbl, err := readParquet(t, filename).ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, int64(0), tbl.NumRows())
}

func TestParquetWriter_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := newMockWriteCloser()
	writer := NewParquetWriter(mock)
	err := writer.Write(ctx, sampleTable())
	assert.ErrorIs(t, err, context.Canceled)
}
