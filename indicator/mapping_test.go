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

package indicator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	m := Default()
	require.NoError(t, m.Validate())
	assert.Len(t, m, 6)

	label, ok := m.Label("SP.DYN.LE00.IN")
	assert.True(t, ok)
	assert.Equal(t, "life-expectancy", label)

	_, ok = m.Label("SP.URB.TOTL")
	assert.False(t, ok)
}

func TestMapping_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mapping Mapping
		wantErr string
	}{
		{"empty", Mapping{}, "empty"},
		{"blank label", Mapping{"X": " "}, "empty label"},
		{"blank code", Mapping{"": "x"}, "empty code"},
		{"shared label", Mapping{"A": "same", "B": "same"}, "share label"},
		{"ok", Mapping{"A": "a", "B": "b"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse(t *testing.T) {
	m, err := Parse([]string{"SP.POP.TOTL=population-total", " X = label "})
	require.NoError(t, err)
	assert.Equal(t, Mapping{"SP.POP.TOTL": "population-total", "X": "label"}, m)
	assert.Equal(t, []string{"SP.POP.TOTL", "X"}, m.Codes())

	_, err = Parse([]string{"SP.POP.TOTL"})
	assert.Error(t, err)

	_, err = Parse([]string{"X=a", "X=b"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indicators.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SP.POP.TOTL: population-total\nNY.GDP.MKTP.CD: gdp\n"), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Mapping{"SP.POP.TOTL": "population-total", "NY.GDP.MKTP.CD": "gdp"}, m)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("A: same\nB: same\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	m := Mapping{"A": "a"}
	c := m.Clone()
	c["B"] = "b"
	assert.Len(t, m, 1)
}
