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

package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aaronlmathis/wdishape/core"
)

// Package filter provides composable row filters for WDIShape pipelines.
//
// Filters see rows whose indicator code is already known to the mapping and
// decide whether they reach the table. Fields are addressed by position
// (core.CountryField, core.ScopeField, ...); a row too short to carry the field is excluded.

func field(row core.Row, idx int) (string, bool) {
	if idx < 0 || idx >= len(row) {
		return "", false
	}
	return row[idx], true
}

// In creates a filter that includes rows whose field is one of values.
func In(idx int, values ...string) core.Filter {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return core.FilterFunc(func(ctx context.Context, row core.Row) (bool, error) {
		value, ok := field(row, idx)
		if !ok {
			return false, nil
		}
		_, found := set[value]
		return found, nil
	})
}

// NotIn creates a filter that excludes rows whose field is one of values.
func NotIn(idx int, values ...string) core.Filter {
	return Not(In(idx, values...))
}

// MatchesRegex creates a filter that includes rows whose field matches pattern.
func MatchesRegex(idx int, pattern string) (core.Filter, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
	}
	return core.FilterFunc(func(ctx context.Context, row core.Row) (bool, error) {
		value, ok := field(row, idx)
		if !ok {
			return false, nil
		}
		return regex.MatchString(value), nil
	}), nil
}

// CountryIn includes only the listed country codes. Matching ignores case.
func CountryIn(codes ...string) core.Filter {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	return core.FilterFunc(func(ctx context.Context, row core.Row) (bool, error) {
		if len(row) <= core.CountryField {
			return false, nil
		}
		_, found := set[strings.ToUpper(row.Country())]
		return found, nil
	})
}

// CountryNotIn drops the listed country codes, e.g. regional aggregates.
func CountryNotIn(codes ...string) core.Filter {
	return Not(CountryIn(codes...))
}

// CountryMatches includes country codes matching pattern.
func CountryMatches(pattern string) (core.Filter, error) {
	return MatchesRegex(core.CountryField, pattern)
}

// HasValues excludes rows whose value tail is empty or entirely blank.
func HasValues() core.Filter {
	return core.FilterFunc(func(ctx context.Context, row core.Row) (bool, error) {
		for _, value := range row.Values() {
			if strings.TrimSpace(value) != "" {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not inverts a filter.
func Not(f core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, row core.Row) (bool, error) {
		include, err := f.ShouldInclude(ctx, row)
		if err != nil {
			return false, err
		}
		return !include, nil
	})
}

// And creates a filter that requires all provided filters to pass
func And(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, row core.Row) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, row)
			if err != nil {
				return false, err
			}
			if !include {
				return false, nil
			}
		}
		return true, nil
	})
}

// Or creates a filter that requires at least one of the provided filters to pass
func Or(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, row core.Row) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, row)
			if err != nil {
				return false, err
			}
			if include {
				return true, nil
			}
		}
		return false, nil
	})
}
