// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedent normalizes the indentation of multiline string literals so
// templates and usage text can be written inline at their natural nesting
// depth.
package dedent

import "strings"

// String removes the indentation prefix of the first non-blank line from
// every line of s. A single leading newline is dropped so literals can open
// with a backquote on the preceding line. Lines that do not carry the prefix
// (e.g. blank lines) are preserved as-is with leading whitespace trimmed only
// up to the prefix length.
func String(s string) string {
	s = strings.TrimPrefix(s, "\n")
	lines := strings.Split(s, "\n")
	var prefix string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		prefix = line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		break
	}
	if prefix == "" {
		return s
	}
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, prefix):
			lines[i] = line[len(prefix):]
		case strings.TrimSpace(line) == "":
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}
