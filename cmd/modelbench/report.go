// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/modelbench/modelbench/pkg/artifacts"
	"github.com/modelbench/modelbench/pkg/perf"
	"github.com/modelbench/modelbench/pkg/report"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [-format summary|csv] [-reference FILE] [-export-bq P.D.T] [-tui] [PERF_CSV]",
	Short: "Render, export, or browse accumulated benchmark results",
	Args:  cobra.MaximumNArgs(1),
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		path := perf.FileName
		if len(args) == 1 {
			path = args[0]
		}
		records, err := perf.Read(path)
		if err != nil {
			return err
		}
		if *reference != "" {
			ref, err := perf.Read(*reference)
			if err != nil {
				return err
			}
			perf.ComputeRelativeChange(records, ref)
		}
		if *exportBQ != "" {
			parts := strings.Split(*exportBQ, ".")
			if len(parts) != 3 {
				return errors.Errorf("export destination %q is not project.dataset.table", *exportBQ)
			}
			if err := report.Export(cmd.Context(), parts[0], parts[1], parts[2], records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d records to %s\n", green("Exported"), len(records), *exportBQ)
			return nil
		}
		if *tuiFlag {
			if *artifactsLoc == "" {
				return errors.New("-tui needs -artifacts to locate run logs")
			}
			store, err := artifacts.NewLatestRunReader(cmd.Context(), *artifactsLoc)
			if err != nil {
				return err
			}
			return report.TUI(cmd.Context(), store, records)
		}
		switch *format {
		case "", "summary":
			report.Summary(cmd.OutOrStdout(), records)
			return nil
		case "csv":
			return report.CSV(cmd.OutOrStdout(), records)
		default:
			return errors.Errorf("unknown format %q", *format)
		}
	},
}
