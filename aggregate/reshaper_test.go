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

package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/indicator"
)

func TestReshaper_SelectsMappedCodes(t *testing.T) {
	ctx := context.Background()
	r := NewReshaper(indicator.Mapping{
		"SP.POP.TOTL":    "population-total",
		"SP.DYN.LE00.IN": "life-expectancy",
	})

	rows := []core.Row{
		{"_", "USA", "United States", "SP.POP.TOTL", "10"},
		{"_", "USA", "United States", "SP.DYN.LE00.IN", "70"},
		{"_", "FRA", "France", "SP.POP.TOTL", "5"},
		{"_", "DEU", "Germany", "SP.URB.TOTL", "1"},
	}
	for _, row := range rows {
		require.NoError(t, r.Add(ctx, row))
	}

	assert.Equal(t, core.Table{
		"USA": {"population-total": {"10"}, "life-expectancy": {"70"}},
		"FRA": {"population-total": {"5"}},
	}, r.Result())

	stats := r.Stats()
	assert.Equal(t, int64(4), stats.RowsAdded)
	assert.Equal(t, int64(3), stats.RowsSelected)
	assert.Equal(t, int64(1), stats.RowsSkipped)
}

func TestReshaper_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	r := NewReshaper(indicator.Mapping{"X": "x"})

	require.NoError(t, r.Add(ctx, core.Row{"_", "USA", "_", "X", "1", "2"}))
	require.NoError(t, r.Add(ctx, core.Row{"_", "USA", "_", "X", "3"}))

	values, ok := r.Result().Get("USA", "x")
	require.True(t, ok)
	assert.Equal(t, []string{"3"}, values)
	assert.Equal(t, int64(1), r.Stats().Overwrites)
}

func TestReshaper_MalformedRow(t *testing.T) {
	ctx := context.Background()
	r := NewReshaper(indicator.Mapping{"X": "x"})

	err := r.Add(ctx, core.Row{"_", "USA", "_"})
	var malformed *core.MalformedRowError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 3, malformed.Fields)
	assert.Empty(t, r.Result())

	// A four-field row is valid and yields an empty sequence
	require.NoError(t, r.Add(ctx, core.Row{"_", "USA", "_", "X"}))
	values, ok := r.Result().Get("USA", "x")
	require.True(t, ok)
	assert.NotNil(t, values)
	assert.Empty(t, values)
}

func TestReshaper_Sparse(t *testing.T) {
	r := NewReshaper(indicator.Mapping{"X": "x"})
	require.NoError(t, r.Add(context.Background(), core.Row{"_", "BRA", "_", "Y", "1"}))
	_, present := r.Result()["BRA"]
	assert.False(t, present)
}

func TestReshaper_Reset(t *testing.T) {
	r := NewReshaper(indicator.Mapping{"X": "x"})
	require.NoError(t, r.Add(context.Background(), core.Row{"_", "USA", "_", "X", "1"}))
	r.Reset()
	assert.Empty(t, r.Result())
	assert.Equal(t, ReshaperStats{}, r.Stats())
}
