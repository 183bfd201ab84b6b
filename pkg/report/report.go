// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders accumulated benchmark results for people and
// dashboards.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/modelbench/modelbench/pkg/perf"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func colorStatus(s perf.Status, cell string) string {
	switch s {
	case perf.StatusSuccess:
		return green(cell)
	case perf.StatusTimeout:
		return yellow(cell)
	default:
		return red(cell)
	}
}

var summaryHeader = []string{"Model", "Status", "Performance", "Metric", "Build (s)", "Test (s)", "Change"}

func summaryCells(r perf.Record) []string {
	return []string{r.Model, string(r.Status), r.Performance, r.Metric, r.BuildDuration, r.TestDuration, r.RelativeChange}
}

func pad(cells []string, widths []int) []string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = fmt.Sprintf("%-*s", widths[i], c)
	}
	return padded
}

func line(cells []string) string {
	return strings.TrimRight(strings.Join(cells, "  "), " ")
}

// Summary writes an aligned table of the records followed by a totals line.
// Status words are colored when stdout is a terminal.
func Summary(w io.Writer, records []perf.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	widths := make([]int, len(summaryHeader))
	for i, h := range summaryHeader {
		widths[i] = len(h)
	}
	for _, r := range records {
		for i, c := range summaryCells(r) {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}
	fmt.Fprintln(w, line(pad(summaryHeader, widths)))
	var success, failure, timeout int
	for _, r := range records {
		switch r.Status {
		case perf.StatusSuccess:
			success++
		case perf.StatusTimeout:
			timeout++
		default:
			failure++
		}
		cells := pad(summaryCells(r), widths)
		cells[1] = colorStatus(r.Status, cells[1])
		fmt.Fprintln(w, line(cells))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d results: %s, %s, %s\n", len(records),
		green(fmt.Sprintf("%d SUCCESS", success)),
		red(fmt.Sprintf("%d FAILURE", failure)),
		yellow(fmt.Sprintf("%d TIMEOUT", timeout)))
}

// CSV writes the records in perf.csv form.
func CSV(w io.Writer, records []perf.Record) error {
	return perf.Write(w, records...)
}
