// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Result files a benchmark script may leave in the workspace. A
// multiple-results CSV takes precedence over single_result.json, which takes
// precedence over scraping the run log.
const (
	SingleResultFile    = "single_result.json"
	ExceptionResultFile = "exception_result.json"
)

// ScriptResult is one row of a multiple-results CSV.
type ScriptResult struct {
	Model       string
	Performance string
	Metric      string
}

// ReadResultJSON loads a result JSON file into a record. Values are
// stringified the way they land in perf.csv: numbers keep their shortest
// representation and tag lists flatten to comma-joined strings. Unknown keys
// are ignored.
func ReadResultJSON(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, errors.Wrapf(err, "reading %s", path)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return Record{}, errors.Wrapf(err, "parsing %s", path)
	}
	var rec Record
	for k, v := range fields {
		rec.set(k, stringify(v))
	}
	return rec, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

// ReadMultipleResults parses a multiple-results CSV. The file must have
// exactly the columns model, performance, and metric, in any order.
func ReadMultipleResults(path string) ([]ScriptResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading results header")
	}
	if len(header) != 3 {
		return nil, errors.New("multiple results CSV must have three columns: model, performance, metric")
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, h := range []string{"model", "performance", "metric"} {
		if _, ok := index[h]; !ok {
			return nil, errors.Errorf("multiple results CSV is missing the %s column", h)
		}
	}
	var results []ScriptResult
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "reading results row")
		}
		results = append(results, ScriptResult{
			Model:       strings.TrimSpace(row[index["model"]]),
			Performance: strings.TrimSpace(row[index["performance"]]),
			Metric:      strings.TrimSpace(row[index["metric"]]),
		})
	}
	return results, nil
}

// MergeMultiple expands multiple-results rows into full records carrying the
// common run fields. Each row's model is namespaced under the parent model,
// and its status reflects whether a performance value is present.
func MergeMultiple(common Record, model string, results []ScriptResult) []Record {
	records := make([]Record, 0, len(results))
	for _, r := range results {
		rec := common
		rec.Model = model + "_" + r.Model
		rec.Performance = r.Performance
		rec.Metric = r.Metric
		if r.Performance != "" {
			rec.Status = StatusSuccess
		} else {
			rec.Status = StatusFailure
		}
		records = append(records, rec)
	}
	return records
}

// CollectResults resolves a finished run into perf.csv records. An
// exception_result.json left by the run wrapper marks the run failed and wins
// outright. Otherwise, when the model declares a multiple-results CSV and the
// script produced it, its rows win; otherwise single_result.json wins;
// otherwise the common record is returned as-is for the caller's log-scrape
// fallback.
func CollectResults(workspace, model, multipleResults string, common Record) ([]Record, error) {
	exceptionPath := filepath.Join(workspace, ExceptionResultFile)
	if _, err := os.Stat(exceptionPath); err == nil {
		rec, err := ReadResultJSON(exceptionPath)
		if err != nil {
			return nil, err
		}
		merged := overlay(common, rec)
		merged.Status = StatusFailure
		return []Record{merged}, nil
	}
	if multipleResults != "" {
		path := filepath.Join(workspace, multipleResults)
		if _, err := os.Stat(path); err == nil {
			results, err := ReadMultipleResults(path)
			if err != nil {
				return nil, err
			}
			return MergeMultiple(common, model, results), nil
		}
	}
	singlePath := filepath.Join(workspace, SingleResultFile)
	if _, err := os.Stat(singlePath); err == nil {
		rec, err := ReadResultJSON(singlePath)
		if err != nil {
			return nil, err
		}
		return []Record{overlay(common, rec)}, nil
	}
	return []Record{common}, nil
}

// overlay replaces common fields with any the result file set.
func overlay(common, result Record) Record {
	merged := common
	for _, c := range columns {
		if v := result.get(c); v != "" {
			merged.set(c, v)
		}
	}
	return merged
}
