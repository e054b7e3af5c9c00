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

// validators.go - data quality checks on a finished Result Table
package validators

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aaronlmathis/wdishape/core"
)

// DataQualityValidator checks a Result Table before it is written.
// Zero values disable the corresponding check.
type DataQualityValidator struct {
	MinCountries     int                      // Minimum number of countries required
	MaxCountries     int                      // Maximum number of countries allowed (0 = unlimited)
	RequiredLabels   []string                 // Labels that must be present for at least one country
	ValueCount       int                      // Exact length every value sequence must have
	MaxEmptyRate     float64                  // Maximum share of empty values (0.0-1.0)
	CountryPattern   *regexp.Regexp           // Pattern every country code must match
	CustomValidators []func(core.Table) error // Custom validation functions
}

var _ core.Validator = (*DataQualityValidator)(nil)

// ValidationError reports which rule a table failed.
type ValidationError struct {
	Rule string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation %s: %v", e.Rule, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate runs every configured check and returns the first failure.
func (dqv *DataQualityValidator) Validate(ctx context.Context, table core.Table) error {
	countries := len(table)

	if countries < dqv.MinCountries {
		return &ValidationError{Rule: "min_countries", Err: fmt.Errorf("got %d countries, need at least %d", countries, dqv.MinCountries)}
	}
	if dqv.MaxCountries > 0 && countries > dqv.MaxCountries {
		return &ValidationError{Rule: "max_countries", Err: fmt.Errorf("got %d countries, maximum allowed %d", countries, dqv.MaxCountries)}
	}

	if err := dqv.validateLabels(table); err != nil {
		return err
	}
	if err := dqv.validateCountries(table); err != nil {
		return err
	}
	if err := dqv.validateValues(table); err != nil {
		return err
	}

	for i, custom := range dqv.CustomValidators {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := custom(table); err != nil {
			return &ValidationError{Rule: fmt.Sprintf("custom_%d", i), Err: err}
		}
	}
	return nil
}

func (dqv *DataQualityValidator) validateLabels(table core.Table) error {
	if len(dqv.RequiredLabels) == 0 {
		return nil
	}

	present := make(map[string]bool)
	for _, labels := range table {
		for label := range labels {
			present[label] = true
		}
	}

	var missing []string
	for _, label := range dqv.RequiredLabels {
		if !present[label] {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Rule: "required_labels", Err: fmt.Errorf("no country has %s", strings.Join(missing, ", "))}
	}
	return nil
}

func (dqv *DataQualityValidator) validateCountries(table core.Table) error {
	if dqv.CountryPattern == nil {
		return nil
	}
	for _, country := range table.Countries() {
		if !dqv.CountryPattern.MatchString(country) {
			return &ValidationError{Rule: "country_pattern", Err: fmt.Errorf("country code %q does not match %s", country, dqv.CountryPattern)}
		}
	}
	return nil
}

func (dqv *DataQualityValidator) validateValues(table core.Table) error {
	if dqv.ValueCount <= 0 && dqv.MaxEmptyRate <= 0 {
		return nil
	}

	var total, empty int
	for _, country := range table.Countries() {
		for _, label := range table.Labels(country) {
			values := table[country][label]
			if dqv.ValueCount > 0 && len(values) != dqv.ValueCount {
				return &ValidationError{Rule: "value_count", Err: fmt.Errorf("%s/%s has %d values, expected %d", country, label, len(values), dqv.ValueCount)}
			}
			for _, value := range values {
				total++
				if value == "" {
					empty++
				}
			}
		}
	}

	if dqv.MaxEmptyRate > 0 && total > 0 {
		rate := float64(empty) / float64(total)
		if rate > dqv.MaxEmptyRate {
			return &ValidationError{Rule: "empty_rate", Err: fmt.Errorf("empty value rate %.2f exceeds maximum %.2f", rate, dqv.MaxEmptyRate)}
		}
	}
	return nil
}

// NewDataQualityValidator creates a basic data quality validator
func NewDataQualityValidator(minCountries int, requiredLabels []string) *DataQualityValidator {
	return &DataQualityValidator{
		MinCountries:   minCountries,
		RequiredLabels: requiredLabels,
	}
}

// DataQualityOption is a functional option for configuring DataQualityValidator
type DataQualityOption func(*DataQualityValidator)

// WithMaxCountries sets the maximum country count
func WithMaxCountries(max int) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxCountries = max
	}
}

// WithValueCount requires every value sequence to have exactly n values
func WithValueCount(n int) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.ValueCount = n
	}
}

// WithMaxEmptyRate sets the maximum share of empty values
func WithMaxEmptyRate(rate float64) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxEmptyRate = rate
	}
}

// WithCountryPattern requires every country code to match pattern
func WithCountryPattern(pattern *regexp.Regexp) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.CountryPattern = pattern
	}
}

// WithCustomValidator adds a custom validation function
func WithCustomValidator(validator func(core.Table) error) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.CustomValidators = append(dqv.CustomValidators, validator)
	}
}

// NewConfigurableDataQualityValidator creates a validator with functional options
func NewConfigurableDataQualityValidator(minCountries int, requiredLabels []string, options ...DataQualityOption) *DataQualityValidator {
	dqv := NewDataQualityValidator(minCountries, requiredLabels)

	for _, option := range options {
		option(dqv)
	}

	return dqv
}
