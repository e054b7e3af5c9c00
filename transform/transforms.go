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

package transform

import (
	"context"
	"strings"

	"github.com/aaronlmathis/wdishape/core"
)

// Package transform provides row transformations applied before indicator lookup.
//
// Every transformer returns a new row and leaves its input untouched.

// DefaultMissingTokens are the placeholders World Bank exports use for absent data.
var DefaultMissingTokens = []string{"..", "NA", "N/A", "#N/A"}

// TrimSpace creates a transformer that trims whitespace from every field.
func TrimSpace() core.Transformer {
	return core.TransformFunc(func(ctx context.Context, row core.Row) (core.Row, error) {
		result := make(core.Row, len(row))
		for i, value := range row {
			result[i] = strings.TrimSpace(value)
		}
		return result, nil
	})
}

// UpperCountry creates a transformer that upper-cases the country code.
func UpperCountry() core.Transformer {
	return core.TransformFunc(func(ctx context.Context, row core.Row) (core.Row, error) {
		result := append(core.Row(nil), row...)
		if len(result) > core.CountryField {
			result[core.CountryField] = strings.ToUpper(result[core.CountryField])
		}
		return result, nil
	})
}

// NormalizeMissing creates a transformer that replaces missing-data tokens in
// the value tail with the empty string. With no tokens, DefaultMissingTokens apply.
func NormalizeMissing(tokens ...string) core.Transformer {
	if len(tokens) == 0 {
		tokens = DefaultMissingTokens
	}
	missing := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		missing[token] = struct{}{}
	}

	return core.TransformFunc(func(ctx context.Context, row core.Row) (core.Row, error) {
		result := append(core.Row(nil), row...)
		for i := core.ValuesStart; i < len(result); i++ {
			if _, ok := missing[strings.TrimSpace(result[i])]; ok {
				result[i] = ""
			}
		}
		return result, nil
	})
}

// Chain applies transformers in order.
func Chain(transformers ...core.Transformer) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, row core.Row) (core.Row, error) {
		var err error
		for _, t := range transformers {
			row, err = t.Transform(ctx, row)
			if err != nil {
				return nil, err
			}
		}
		return row, nil
	})
}
