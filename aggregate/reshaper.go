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

	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/indicator"
)

// ReshaperStats counts what happened to the rows handed to a Reshaper.
type ReshaperStats struct {
	RowsAdded     int64
	RowsSelected  int64
	RowsSkipped   int64 // indicator code not in the mapping
	RowsMalformed int64
	Overwrites    int64 // (country, label) pairs replaced by a later row
}

// Reshaper groups selected rows by country code and indicator label.
// The value tail of the last matching row wins for each (country, label) pair.
type Reshaper struct {
	mapping indicator.Mapping
	table   core.Table
	stats   ReshaperStats
}

var _ Aggregator = (*Reshaper)(nil)

// NewReshaper returns a Reshaper selecting the codes in mapping.
func NewReshaper(mapping indicator.Mapping) *Reshaper {
	return &Reshaper{
		mapping: mapping,
		table:   make(core.Table),
	}
}

// Add folds one row into the table. Rows with unknown indicator codes are ignored.
// A row too short to carry an indicator code yields a *core.MalformedRowError and leaves the table untouched.
func (r *Reshaper) Add(ctx context.Context, row core.Row) error {
	r.stats.RowsAdded++

	if !row.Valid() {
		r.stats.RowsMalformed++
		return &core.MalformedRowError{Fields: len(row)}
	}

	label, ok := r.mapping.Label(row.Indicator())
	if !ok {
		r.stats.RowsSkipped++
		return nil
	}

	country := row.Country()
	if _, exists := r.table.Get(country, label); exists {
		r.stats.Overwrites++
	}
	r.table.Set(country, label, row.Values())
	r.stats.RowsSelected++
	return nil
}

// Result returns the table built so far. The table is shared with the Reshaper until Reset.
func (r *Reshaper) Result() core.Table {
	return r.table
}

// Reset drops the accumulated table and counters.
func (r *Reshaper) Reset() {
	r.table = make(core.Table)
	r.stats = ReshaperStats{}
}

// Stats returns a snapshot of the row counters.
func (r *Reshaper) Stats() ReshaperStats {
	return r.stats
}
