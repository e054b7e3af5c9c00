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

	"github.com/aaronlmathis/wdishape/aggregate"
	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/indicator"
)

// Reshape groups rows by country code and indicator label. rows must not contain a header.
//
// Malformed rows are skipped and returned as warnings, each a *core.MalformedRowError
// whose Line is the 1-based position of the row in rows. Rows with codes missing from
// mapping are ignored. For a repeated (country, label) pair the last row wins.
func Reshape(rows []core.Row, mapping indicator.Mapping) (core.Table, []error) {
	reshaper := aggregate.NewReshaper(mapping)
	var warnings []error

	for i, row := range rows {
		if err := reshaper.Add(context.Background(), row); err != nil {
			var malformed *core.MalformedRowError
			if errors.As(err, &malformed) && malformed.Line == 0 {
				malformed.Line = i + 1
			}
			warnings = append(warnings, err)
		}
	}

	return reshaper.Result(), warnings
}

// ReshapeAs is Reshape followed by projection to shape: the nested map for
// core.ShapeNested, the flat map for core.ShapeFlat.
func ReshapeAs(rows []core.Row, mapping indicator.Mapping, shape core.Shape) (interface{}, []error, error) {
	table, warnings := Reshape(rows, mapping)
	shaped, err := table.Shaped(shape)
	if err != nil {
		return nil, warnings, err
	}
	return shaped, warnings, nil
}
