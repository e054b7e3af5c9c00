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

import "time"

// Report is the terminal summary of one run.
type Report struct {
	RowsRead      int64         // Rows returned by the source, header excluded
	RowsSelected  int64         // Rows whose indicator code was in the mapping
	RowsSkipped   int64         // Rows with unknown codes or rejected by a filter
	RowsMalformed int64         // Rows skipped as malformed
	Countries     int           // Country codes in the final table
	Warnings      []error       // Collected row errors (CollectErrors strategy)
	Duration      time.Duration // Wall time of the run
}

// HasWarnings reports whether any row error was recorded.
func (r *Report) HasWarnings() bool {
	return r != nil && len(r.Warnings) > 0
}
