// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// FileName is the cumulative results CSV.
	FileName = "perf.csv"
	// EntryFileName mirrors only the most recent run's records.
	EntryFileName = "perf_entry.csv"
)

// Append adds records to the CSV at path, writing a header first when the
// file is missing or empty.
func Append(path string, records ...Record) error {
	info, err := os.Stat(path)
	writeHeader := errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "statting %s", path)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(columns); err != nil {
			return errors.Wrap(err, "writing CSV header")
		}
	}
	for _, r := range records {
		if err := w.Write(r.row()); err != nil {
			return errors.Wrap(err, "writing CSV row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing CSV")
}

// Write renders the records as CSV, header included.
func Write(out io.Writer, records ...Record) error {
	w := csv.NewWriter(out)
	if err := w.Write(columns); err != nil {
		return errors.Wrap(err, "writing CSV header")
	}
	for _, r := range records {
		if err := w.Write(r.row()); err != nil {
			return errors.Wrap(err, "writing CSV row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing CSV")
}

// WriteEntry replaces the latest-entry mirror with the given records.
func WriteEntry(path string, records ...Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	return Write(f, records...)
}

// Read loads the records from a perf CSV file.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return ReadFrom(f)
}

// ReadFrom parses perf CSV content. Header cells are matched by name after
// trimming whitespace, so column order and padding do not matter.
func ReadFrom(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "reading CSV header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "reading CSV row")
		}
		var rec Record
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			rec.set(header[i], strings.TrimSpace(cell))
		}
		records = append(records, rec)
	}
	return records, nil
}

// ComputeRelativeChange fills each record's relative_change column with the
// ratio of its performance to the matching row of a reference run. Rows match
// on model and metric; when the reference holds several, the most recent
// wins. Records without a numeric performance or without a reference row are
// left unchanged.
func ComputeRelativeChange(records []Record, reference []Record) {
	type key struct{ model, metric string }
	baseline := make(map[key]float64)
	for _, ref := range reference {
		v, err := strconv.ParseFloat(ref.Performance, 64)
		if err != nil {
			continue
		}
		baseline[key{ref.Model, ref.Metric}] = v
	}
	for i := range records {
		v, err := strconv.ParseFloat(records[i].Performance, 64)
		if err != nil {
			continue
		}
		base, ok := baseline[key{records[i].Model, records[i].Metric}]
		if !ok || base == 0 {
			continue
		}
		records[i].RelativeChange = fmt.Sprintf("%.4f", v/base)
	}
}
