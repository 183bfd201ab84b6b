// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace manages the per-run host directory a benchmark executes
// in: the cloned model sources, the logs and artifacts written back by the
// container, and the source metadata recorded alongside results.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// LogsDir collects build and run logs.
	LogsDir = "logs"
	// ArtifactsDir collects result files the benchmark leaves behind.
	ArtifactsDir = "artifacts"
)

// Layout is a prepared per-run workspace on the host. Root is what gets
// mounted at the container workdir.
type Layout struct {
	Root      string
	Logs      string
	Artifacts string
}

// Prepare creates the workspace directory tree for one benchmark execution
// under root.
func Prepare(root, name string) (Layout, error) {
	l := Layout{Root: filepath.Join(root, name)}
	l.Logs = filepath.Join(l.Root, LogsDir)
	l.Artifacts = filepath.Join(l.Root, ArtifactsDir)
	for _, dir := range []string{l.Root, l.Logs, l.Artifacts} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Layout{}, errors.Wrapf(err, "creating %s", dir)
		}
	}
	return l, nil
}
