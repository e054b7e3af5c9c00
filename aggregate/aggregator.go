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
)

// Aggregator folds rows into a Result Table.
type Aggregator interface {
	// Add processes a row for aggregation.
	Add(ctx context.Context, row core.Row) error
	// Result returns the table accumulated so far.
	Result() core.Table
	// Reset clears the aggregator state for reuse.
	Reset()
}
