// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/google/go-cmp/cmp"
	"github.com/modelbench/modelbench/pkg/artifacts"
	"github.com/modelbench/modelbench/pkg/perf"
)

func plainColors(t *testing.T) {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })
}

func TestSummary(t *testing.T) {
	plainColors(t)
	records := []perf.Record{
		{Model: "vllm-llama", Status: perf.StatusSuccess, Performance: "42.5", Metric: "tps", BuildDuration: "120.00", TestDuration: "900.00", RelativeChange: "1.0321"},
		{Model: "bert", Status: perf.StatusFailure, BuildDuration: "95.10", TestDuration: "30.00"},
		{Model: "resnet50", Status: perf.StatusTimeout, BuildDuration: "80.00", TestDuration: "7200.00"},
	}
	var buf bytes.Buffer
	Summary(&buf, records)
	want := strings.Join([]string{
		"Model       Status   Performance  Metric  Build(s)  Test(s)  Change",
		"vllm-llama  SUCCESS  42.5         tps     120.00    900.00   1.0321",
		"bert        FAILURE                       95.10     30.00",
		"resnet50    TIMEOUT                       80.00     7200.00",
		"",
		"3 results: 1 SUCCESS, 1 FAILURE, 1 TIMEOUT",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryEmpty(t *testing.T) {
	plainColors(t)
	var buf bytes.Buffer
	Summary(&buf, nil)
	if got := buf.String(); got != "No results.\n" {
		t.Errorf("Summary() = %q, want no results line", got)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	records := []perf.Record{
		{Pipeline: "vllm", Model: "llama", Performance: "42.5", Metric: "tps", Status: perf.StatusSuccess},
		{Pipeline: "ort", Model: "bert", Status: perf.StatusFailure},
	}
	var buf bytes.Buffer
	if err := CSV(&buf, records); err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "pipeline,model,") {
		t.Errorf("CSV() output missing header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
	got, err := perf.ReadFrom(&buf)
	if err != nil {
		t.Fatalf("perf.ReadFrom() error = %v", err)
	}
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("CSV() round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLogs(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewFilesystemStoreWithRunID(memfs.New(), "r1")
	w, err := store.Writer(ctx, artifacts.BuildLogAsset.For("llama"))
	if err != nil {
		t.Fatalf("store.Writer() error = %v", err)
	}
	if _, err := io.WriteString(w, "Step 1/9 : ARG BASE_DOCKER\n"); err != nil {
		t.Fatalf("io.WriteString() error = %v", err)
	}
	w.Close()
	got := runLogs(ctx, store, "llama")
	want := strings.Join([]string{
		"=== build.log ===",
		"Step 1/9 : ARG BASE_DOCKER",
		"=== run.log ===",
		"(not stored)",
		"",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("runLogs() mismatch (-want +got):\n%s", diff)
	}
}

func TestResultsTable(t *testing.T) {
	records := []perf.Record{
		{Model: "llama", Status: perf.StatusSuccess, Performance: "42.5", Metric: "tps", TestDuration: "900.00"},
		{Model: "bert", Status: perf.StatusFailure, TestDuration: "30.00"},
	}
	table := resultsTable(records, nil)
	if got := table.GetRowCount(); got != 3 {
		t.Fatalf("GetRowCount() = %d, want 3", got)
	}
	if got := table.GetCell(0, 0).Text; got != "Model" {
		t.Errorf("header cell = %q, want Model", got)
	}
	if got := table.GetCell(1, 1).Text; got != "SUCCESS" {
		t.Errorf("status cell = %q, want SUCCESS", got)
	}
	if got := table.GetCell(2, 4).Text; got != "30.00" {
		t.Errorf("duration cell = %q, want 30.00", got)
	}
}
