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

// Package indicator holds the indicator-code to label mapping that selects rows for the Result Table.
package indicator

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping maps an indicator code (e.g. "SP.POP.TOTL") to its output label (e.g. "population-total").
// Treat a Mapping as immutable once handed to a reshaper.
type Mapping map[string]string

// Default returns the six World Development Indicators the visualisations consume.
func Default() Mapping {
	return Mapping{
		"SP.POP.TOTL":       "population-total",
		"SP.POP.1564.TO.ZS": "population-working-age",
		"SP.POP.GROW":       "population-growth",
		"SP.DYN.LE00.IN":    "life-expectancy",
		"NY.GDP.PCAP.CD":    "gdp-per-capita",
		"NY.GDP.MKTP.CD":    "gdp",
	}
}

// Label returns the label for code and whether the code is selected.
func (m Mapping) Label(code string) (string, bool) {
	label, ok := m[code]
	return label, ok
}

// Codes returns the indicator codes in sorted order.
func (m Mapping) Codes() []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Clone returns an independent copy.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for code, label := range m {
		out[code] = label
	}
	return out
}

// Validate checks that the mapping is non-empty, has no blank entries and that no two codes share a label.
func (m Mapping) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("indicator mapping is empty")
	}
	seen := make(map[string]string, len(m))
	for _, code := range m.Codes() {
		label := m[code]
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("indicator mapping has an empty code")
		}
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("indicator %s has an empty label", code)
		}
		if other, dup := seen[label]; dup {
			return fmt.Errorf("indicators %s and %s share label %q", other, code, label)
		}
		seen[label] = code
	}
	return nil
}

// Parse builds a mapping from CODE=LABEL pairs, as given on the command line.
func Parse(pairs []string) (Mapping, error) {
	m := make(Mapping, len(pairs))
	for _, pair := range pairs {
		code, label, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("indicator %q: want CODE=LABEL", pair)
		}
		code, label = strings.TrimSpace(code), strings.TrimSpace(label)
		if _, dup := m[code]; dup {
			return nil, fmt.Errorf("indicator %s given twice", code)
		}
		m[code] = label
	}
	return m, m.Validate()
}

// Load reads a YAML document of code: label pairs.
func Load(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read indicator mapping: %w", err)
	}
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse indicator mapping %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("indicator mapping %s: %w", path, err)
	}
	return m, nil
}
