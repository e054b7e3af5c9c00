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

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/wdishape/core"
)

const wdiExport = `Region,Country Code,Country Name,Indicator Code,2020,2019
WLD,USA,United States,SP.POP.TOTL,331,329
WLD,USA,United States,NY.GDP.MKTP.CD,20.9,
WLD,FRA,France,SP.POP.TOTL,67,66
WLD,FRA,France,SP.URB.TOTL,1,2
`

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"WDISHAPE_INPUT", "WDISHAPE_OUTPUT", "WDISHAPE_POSTGRES_DSN", "WDISHAPE_MONGO_URI"} {
		t.Setenv(key, "")
	}
}

func writeInput(t *testing.T, data string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "WDIData.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return dir, path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateEnv(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_WritesJSONAndCSV(t *testing.T) {
	dir, input := writeInput(t, wdiExport)
	jsonPath := filepath.Join(dir, "wdi.json")
	csvPath := filepath.Join(dir, "wdi.csv")

	out, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"-i", input, "-o", jsonPath, "--csv-output", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "rows read: 4, selected: 3")
	assert.Contains(t, out, "countries: 2")

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, `{"FRA":{"population-total":["67","66"]},"USA":{"gdp":["20.9",""],"population-total":["331","329"]}}`, string(data))

	data, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "country_code,indicator,_2020,_2019,"))
	assert.True(t, strings.HasSuffix(lines[0], ",_1960"))
	assert.Equal(t, "FRA,population-total,67,66", lines[1])
	assert.Equal(t, "USA,gdp,20.9,", lines[2])
	assert.Equal(t, "USA,population-total,331,329", lines[3])
}

func TestRun_FlatToStdout(t *testing.T) {
	dir, input := writeInput(t, wdiExport)

	var err error
	output := captureOutput(t, func() {
		_, err = execute(t, "run",
			"--config", filepath.Join(dir, "missing.yaml"),
			"-i", input, "-o", "-",
			"--shape", "flat", "--indicator", "SP.POP.TOTL=population")
	})
	require.NoError(t, err)
	assert.Contains(t, output, `{"FRA":["67","66"],"USA":["331","329"]}`)
}

func TestRun_ConfigFile(t *testing.T) {
	dir, input := writeInput(t, wdiExport)
	jsonPath := filepath.Join(dir, "out.json")
	cfgPath := filepath.Join(dir, "wdishape.yaml")
	cfg := "input:\n  location: " + input + "\n  skip_header: true\n" +
		"output:\n  location: " + jsonPath + "\n" +
		"indicators:\n  NY.GDP.MKTP.CD: gdp\n" +
		"filters:\n  countries: [usa]\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	_, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, `{"USA":{"gdp":["20.9",""]}}`, string(data))
}

func TestRun_MissingInputLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "wdi.json")

	_, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"-i", filepath.Join(dir, "nope.csv"), "-o", jsonPath)
	require.Error(t, err)

	var notFound *core.SourceNotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.NoFileExists(t, jsonPath)
}

func TestRun_ErrorIsNotPrintedByCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"-i", filepath.Join(dir, "nope.csv"), "-o", filepath.Join(dir, "wdi.json"))
	require.Error(t, err)
	assert.NotContains(t, out, "Error:")
	assert.NotContains(t, out, "Usage:")
}

func TestRun_FailFastLeavesNoOutput(t *testing.T) {
	dir, input := writeInput(t, wdiExport+"WLD,DEU\n")
	jsonPath := filepath.Join(dir, "wdi.json")

	_, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"-i", input, "-o", jsonPath, "--error-strategy", "fail-fast")
	require.Error(t, err)

	var malformed *core.MalformedRowError
	assert.True(t, errors.As(err, &malformed))
	assert.NoFileExists(t, jsonPath)
}

func TestRun_MalformedRowIsReported(t *testing.T) {
	dir, input := writeInput(t, wdiExport+"WLD,DEU\n")
	jsonPath := filepath.Join(dir, "wdi.json")

	out, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"-i", input, "-o", jsonPath)
	require.NoError(t, err)
	assert.Contains(t, out, "malformed: 1")
	assert.Contains(t, out, "warning: malformed row")
	assert.FileExists(t, jsonPath)
}

func TestRun_InvalidConfiguration(t *testing.T) {
	dir, input := writeInput(t, wdiExport)

	_, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"-i", input, "--shape", "flat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"-i", input, "--indicator", "SP.POP.TOTL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODE=LABEL")
}

func TestIndicators_Default(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "indicators", "--config", filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "CODE"))
	assert.Contains(t, out, "SP.POP.TOTL")
	assert.Contains(t, out, "population-total")
	assert.True(t, strings.HasPrefix(lines[1], "NY.GDP.MKTP.CD"))
}

func TestIndicators_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indicators.yaml")
	require.NoError(t, os.WriteFile(path, []byte("EN.ATM.CO2E.KT: co2\n"), 0o644))

	out, err := execute(t, "indicators", "--indicators-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "EN.ATM.CO2E.KT")
	assert.Contains(t, out, "co2")
	assert.NotContains(t, out, "SP.POP.TOTL")
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
