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

// Command wdishape reshapes World Development Indicators CSV exports into
// per-country JSON, CSV, Parquet, PostgreSQL or MongoDB output.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds state shared by all commands of one invocation.
type app struct {
	verbose    bool
	configPath string
	level      zap.AtomicLevel
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{
		level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
		logger: zap.NewNop(),
	}

	root := &cobra.Command{
		Use:   "wdishape",
		Short: "Reshape World Development Indicators exports into per-country tables",
		Long: `wdishape reads a World Development Indicators style CSV export
(scope, country code, country name, indicator code, yearly values...) and
groups the rows of selected indicators by country:

  nested: {"USA": {"population-total": ["331", ...]}}
  flat:   {"USA": ["331", ...]}          (single indicator)

Input may be a local file, an s3://bucket/key object or an http(s) URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if a.verbose {
				a.level.SetLevel(zapcore.DebugLevel)
			}
			config.Level = a.level
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "wdishape.yaml", "Path to the YAML run configuration")

	root.AddCommand(newRunCmd(a), newIndicatorsCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
