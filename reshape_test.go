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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/indicator"
)

var populationLife = indicator.Mapping{
	"SP.POP.TOTL":    "population-total",
	"SP.DYN.LE00.IN": "life-expectancy",
}

func TestReshape_Flat(t *testing.T) {
	rows := []core.Row{
		{"_", "USA", "_", "X", "1", "2"},
		{"_", "USA", "_", "Y", "9"},
	}

	shaped, warnings, err := ReshapeAs(rows, indicator.Mapping{"X": "label"}, core.ShapeFlat)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, map[string][]string{"USA": {"1", "2"}}, shaped)
}

func TestReshape_Nested(t *testing.T) {
	rows := []core.Row{
		{"_", "USA", "_", "SP.POP.TOTL", "10"},
		{"_", "USA", "_", "SP.DYN.LE00.IN", "70"},
		{"_", "FRA", "_", "SP.POP.TOTL", "5"},
	}

	table, warnings := Reshape(rows, populationLife)
	assert.Empty(t, warnings)

	want := core.Table{
		"USA": {"population-total": {"10"}, "life-expectancy": {"70"}},
		"FRA": {"population-total": {"5"}},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("Reshape() mismatch (-want +got):\n%s", diff)
	}
}

func TestReshape_LastWriteWins(t *testing.T) {
	rows := []core.Row{
		{"_", "USA", "_", "SP.POP.TOTL", "1", "2"},
		{"_", "USA", "_", "SP.POP.TOTL", "3"},
	}

	table, _ := Reshape(rows, populationLife)
	assert.Equal(t, []string{"3"}, table["USA"]["population-total"])
}

func TestReshape_SparseAndUnknownCodes(t *testing.T) {
	rows := []core.Row{
		{"_", "USA", "_", "SP.POP.TOTL", "1"},
		{"_", "DEU", "_", "NY.GDP.MKTP.CD", "4"},
		{"_", "ABW", "_", "SP.DYN.LE00.IN"},
	}

	table, warnings := Reshape(rows, populationLife)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"ABW", "USA"}, table.Countries())
	assert.NotContains(t, table, "DEU")

	values, ok := table.Get("ABW", "life-expectancy")
	require.True(t, ok)
	assert.NotNil(t, values, "a truncated row yields an empty sequence")
	assert.Empty(t, values)
}

func TestReshape_MalformedRowWarning(t *testing.T) {
	rows := []core.Row{
		{"_", "USA", "_", "SP.POP.TOTL", "1"},
		{"_", "FRA", "_"},
		{"_", "FRA", "_", "SP.POP.TOTL", "2"},
	}

	table, warnings := Reshape(rows, populationLife)
	require.Len(t, warnings, 1)

	var malformed *core.MalformedRowError
	require.ErrorAs(t, warnings[0], &malformed)
	assert.Equal(t, 2, malformed.Line)
	assert.Equal(t, 3, malformed.Fields)
	assert.Equal(t, []string{"2"}, table["FRA"]["population-total"])
}

func TestReshape_DoesNotAliasInput(t *testing.T) {
	rows := []core.Row{{"_", "USA", "_", "SP.POP.TOTL", "1"}}
	table, _ := Reshape(rows, populationLife)

	rows[0][4] = "changed"
	assert.Equal(t, []string{"1"}, table["USA"]["population-total"])
}

func TestReshapeAs_FlatNeedsSingleIndicator(t *testing.T) {
	rows := []core.Row{
		{"_", "USA", "_", "SP.POP.TOTL", "10"},
		{"_", "USA", "_", "SP.DYN.LE00.IN", "70"},
	}
	_, _, err := ReshapeAs(rows, populationLife, core.ShapeFlat)
	assert.Error(t, err)
}
