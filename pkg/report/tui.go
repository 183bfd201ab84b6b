// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/modelbench/modelbench/pkg/artifacts"
	"github.com/modelbench/modelbench/pkg/perf"
	"github.com/pkg/errors"
	"github.com/rivo/tview"
)

func resultsTable(records []perf.Record, onSelect func(perf.Record)) *tview.Table {
	table := tview.NewTable().SetBorders(true)
	for i, h := range []string{"Model", "Status", "Performance", "Metric", "Duration"} {
		table.SetCell(0, i, tview.NewTableCell(h).SetTextColor(tcell.ColorYellow).SetSelectable(false))
	}
	table.SetFixed(1, 0)
	for i, r := range records {
		for j, cell := range []string{r.Model, string(r.Status), r.Performance, r.Metric, r.TestDuration} {
			table.SetCellSimple(i+1, j, cell)
		}
	}
	if len(records) > 0 {
		table.Select(1, 0)
	}
	table.ScrollToBeginning()
	table.SetSelectable(true, false)
	table.SetSelectedFunc(func(row, column int) {
		if onSelect != nil && row >= 1 && row <= len(records) {
			onSelect(records[row-1])
		}
	})
	return table
}

// runLogs concatenates the stored build and run logs for a model.
func runLogs(ctx context.Context, store artifacts.ReadOnlyStore, model string) string {
	var b strings.Builder
	for _, typ := range []artifacts.AssetType{artifacts.BuildLogAsset, artifacts.RunLogAsset} {
		fmt.Fprintf(&b, "=== %s ===\n", typ)
		r, err := store.Reader(ctx, typ.For(model))
		if errors.Is(err, artifacts.ErrAssetNotFound) {
			b.WriteString("(not stored)\n")
			continue
		} else if err != nil {
			fmt.Fprintf(&b, "error: %v\n", err)
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			fmt.Fprintf(&b, "error: %v\n", err)
			continue
		}
		b.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// TUI opens an interactive results browser: a table of runs where Enter shows
// the stored logs for the selected model and q quits.
func TUI(ctx context.Context, store artifacts.ReadOnlyStore, records []perf.Record) error {
	app := tview.NewApplication()
	pages := tview.NewPages()
	logView := tview.NewTextView()
	logView.SetBorder(true)
	logView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyESC {
			pages.HidePage("logs")
			return nil
		}
		return event
	})
	table := resultsTable(records, func(r perf.Record) {
		logView.SetText(runLogs(ctx, store, r.Model))
		logView.SetTitle(fmt.Sprintf(" %s ", r.Model))
		logView.ScrollToBeginning()
		pages.ShowPage("logs")
	})
	pages.AddPage("results", table, true, true)
	pages.AddPage("logs", logView, true, false)
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyCtrlC {
			app.Stop()
			return nil
		}
		return event
	})
	return app.SetRoot(pages, true).Run()
}
