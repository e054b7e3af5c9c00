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
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/wdishape/config"
	"github.com/aaronlmathis/wdishape/indicator"
)

func newIndicatorsCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "List the indicator codes a run would keep",
		Long: `Prints the code to label mapping resolved from --indicators-file,
the configuration file, or the built-in default, sorted by code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var mapping indicator.Mapping
			if file != "" {
				m, err := indicator.Load(file)
				if err != nil {
					return err
				}
				mapping = m
			} else {
				cfg, err := config.Load(a.configPath)
				if err != nil {
					return err
				}
				if mapping, err = cfg.Mapping(); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tLABEL")
			for _, code := range mapping.Codes() {
				label, _ := mapping.Label(code)
				fmt.Fprintf(w, "%s\t%s\n", code, label)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&file, "indicators-file", "", "YAML file of code: label pairs")
	return cmd
}
