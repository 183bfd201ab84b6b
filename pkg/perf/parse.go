// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"regexp"
)

// measurementRE matches the `performance: <value> <metric>` marker benchmark
// scripts print. Both the value and the metric token are optional so a
// malformed marker still scrapes as present.
var measurementRE = regexp.MustCompile(`performance:\s*([+|-]?\d*[.]?\d*)\s*(\w*)`)

// Measurement is a scraped performance marker.
type Measurement struct {
	Value  string
	Metric string
}

// Scrape extracts the performance measurement from run log content. When the
// marker appears multiple times the last one wins, treating earlier prints as
// intermediate readings. The second return is false when the log contains no
// marker at all.
func Scrape(log string) (Measurement, bool) {
	matches := measurementRE.FindAllStringSubmatch(log, -1)
	if len(matches) == 0 {
		return Measurement{}, false
	}
	last := matches[len(matches)-1]
	return Measurement{Value: last[1], Metric: last[2]}, true
}
