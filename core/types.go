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
	"sort"
	"strings"
)

// Package core defines the core types for the WDIShape library.
//
// WDIShape reshapes World-Bank-style indicator CSV files into nested structured data keyed by
// country code and indicator label.
//
// This file contains the row, table and shape types plus the function adapters.

// Positional layout of an indicator row.
const (
	ScopeField     = 0
	CountryField   = 1
	NameField      = 2
	IndicatorField = 3
	ValuesStart    = 4

	// MinRowFields is the smallest arity from which an indicator code can be addressed.
	MinRowFields = ValuesStart
)

// Row is one parsed input line: scope, country code, country name, indicator code, yearly values.
type Row []string

// Valid reports whether the row is long enough to address the indicator code.
func (r Row) Valid() bool {
	return len(r) >= MinRowFields
}

// Country returns the country code field, or "" for a short row.
func (r Row) Country() string {
	if len(r) <= CountryField {
		return ""
	}
	return r[CountryField]
}

// Indicator returns the indicator code field, or "" for a short row.
func (r Row) Indicator() string {
	if len(r) <= IndicatorField {
		return ""
	}
	return r[IndicatorField]
}

// Values returns a copy of the yearly value tail. The result is never nil.
func (r Row) Values() []string {
	if len(r) <= ValuesStart {
		return []string{}
	}
	return append([]string{}, r[ValuesStart:]...)
}

// Table is the Result Table: country code -> indicator label -> yearly values in input column order.
type Table map[string]map[string][]string

// Set stores values for (country, label), creating the country entry if absent.
// A later Set for the same pair replaces the earlier sequence.
func (t Table) Set(country, label string, values []string) {
	labels, ok := t[country]
	if !ok {
		labels = make(map[string][]string)
		t[country] = labels
	}
	if values == nil {
		values = []string{}
	}
	labels[label] = values
}

// Get returns the values stored for (country, label).
func (t Table) Get(country, label string) ([]string, bool) {
	labels, ok := t[country]
	if !ok {
		return nil, false
	}
	values, ok := labels[label]
	return values, ok
}

// Countries returns the country codes in sorted order.
func (t Table) Countries() []string {
	countries := make([]string, 0, len(t))
	for country := range t {
		countries = append(countries, country)
	}
	sort.Strings(countries)
	return countries
}

// Labels returns the indicator labels stored for country in sorted order.
func (t Table) Labels(country string) []string {
	labels := make([]string, 0, len(t[country]))
	for label := range t[country] {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Flatten projects the table to country code -> values.
// It fails when any country carries more than one label.
func (t Table) Flatten() (map[string][]string, error) {
	flat := make(map[string][]string, len(t))
	for _, country := range t.Countries() {
		labels := t.Labels(country)
		if len(labels) > 1 {
			return nil, fmt.Errorf("flat shape needs one indicator per country, %s has %d (%s)",
				country, len(labels), strings.Join(labels, ", "))
		}
		for _, label := range labels {
			flat[country] = t[country][label]
		}
	}
	return flat, nil
}

// Shaped returns the table in the requested output shape, ready for serialization.
func (t Table) Shaped(shape Shape) (interface{}, error) {
	switch shape {
	case ShapeFlat:
		return t.Flatten()
	case ShapeNested, "":
		return map[string]map[string][]string(t), nil
	default:
		return nil, fmt.Errorf("unknown output shape %q", shape)
	}
}

// Shape selects the serialized form of a Table.
type Shape string

const (
	// ShapeNested maps country code to indicator label to values.
	ShapeNested Shape = "nested"
	// ShapeFlat maps country code directly to values (single indicator runs).
	ShapeFlat Shape = "flat"
)

// ParseShape converts a configuration string to a Shape.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapeNested, "":
		return ShapeNested, nil
	case ShapeFlat:
		return ShapeFlat, nil
	default:
		return "", fmt.Errorf("unknown output shape %q (want flat or nested)", s)
	}
}

// YearAxis names the value columns of a row. First is the year of the first value column;
// values run towards Last, descending when First > Last.
type YearAxis struct {
	First int
	Last  int
}

// DefaultYearAxis is the 2020..1960 layout of the World Development Indicators extract.
var DefaultYearAxis = YearAxis{First: 2020, Last: 1960}

// Len returns the number of year columns.
func (a YearAxis) Len() int {
	if a.First >= a.Last {
		return a.First - a.Last + 1
	}
	return a.Last - a.First + 1
}

// Year returns the year of the value at position, or false when position is outside the axis.
func (a YearAxis) Year(position int) (int, bool) {
	if position < 0 || position >= a.Len() {
		return 0, false
	}
	if a.First >= a.Last {
		return a.First - position, true
	}
	return a.First + position, true
}

// Columns returns the synthetic header names ("_2020", "_2019", ...).
func (a YearAxis) Columns() []string {
	columns := make([]string, a.Len())
	for i := range columns {
		year, _ := a.Year(i)
		columns[i] = fmt.Sprintf("_%d", year)
	}
	return columns
}

// TransformFunc is a function adapter for the Transformer interface.
type TransformFunc func(ctx context.Context, row Row) (Row, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, row Row) (Row, error) {
	return f(ctx, row)
}

// FilterFunc is a function adapter for the Filter interface.
type FilterFunc func(ctx context.Context, row Row) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, row Row) (bool, error) {
	return f(ctx, row)
}

// ValidatorFunc is a function adapter for the Validator interface.
type ValidatorFunc func(ctx context.Context, table Table) error

// Validate implements the Validator interface for ValidatorFunc.
func (f ValidatorFunc) Validate(ctx context.Context, table Table) error {
	return f(ctx, table)
}
