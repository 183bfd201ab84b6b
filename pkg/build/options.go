// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"time"

	"github.com/modelbench/modelbench/pkg/artifacts"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/modelbench/modelbench/pkg/model"
)

// DefaultTimeout bounds a build or run when no timeout is configured.
const DefaultTimeout = 7200 * time.Second

// Resources configures storage for execution artifacts.
type Resources struct {
	// AssetStore receives logs and result files as the execution progresses.
	// May be nil, in which case no assets are persisted.
	AssetStore artifacts.LocatableStore
}

// Options configures execution behavior.
type Options struct {
	// Timeout bounds the execution. Zero selects DefaultTimeout; a negative
	// value disables the deadline entirely.
	Timeout time.Duration
	// RunID allows specifying a custom run identifier
	RunID string
	// Resources configures storage for execution artifacts
	Resources Resources
}

// EffectiveTimeout resolves the configured timeout. The second return is
// false when no deadline should be applied.
func (o Options) EffectiveTimeout() (time.Duration, bool) {
	switch {
	case o.Timeout < 0:
		return 0, false
	case o.Timeout == 0:
		return DefaultTimeout, true
	default:
		return o.Timeout, true
	}
}

// BuildRequest describes one benchmark image build.
type BuildRequest struct {
	// Model is the catalog entry the image is built for.
	Model model.Model
	// Dockerfile is the path to the resolved Dockerfile.
	Dockerfile string
	// ContextDir is the build context directory.
	ContextDir string
	// Image is the tag to apply. Empty lets the executor derive one from the
	// model name and run ID.
	Image string
	// BaseImage overrides the Dockerfile's default base image build argument.
	BaseImage string
	// NoCache disables the builder cache.
	NoCache bool
}

// Mount is a host directory bind-mounted into the run container.
type Mount struct {
	Src      string
	Dst      string
	ReadOnly bool
}

// RunRequest describes one containerized benchmark run.
type RunRequest struct {
	// Model is the catalog entry being run.
	Model model.Model
	// Image is the image to run.
	Image string
	// Script is the shell command executed inside the container.
	Script string
	// Workspace is the host directory mounted at ContainerWorkdir.
	Workspace string
	// Vendor selects the GPU device arguments to pass.
	Vendor hostinfo.Vendor
	// RenderNodes restricts an AMD run to specific render nodes. Empty
	// exposes every device.
	RenderNodes []int
	// CPUSet is the value for cpuset pinning. Empty disables pinning.
	CPUSet string
	// Env holds KEY=VALUE pairs set in the container.
	Env []string
	// Mounts are additional bind mounts.
	Mounts []Mount
	// KeepAlive leaves the container running after the script exits.
	KeepAlive bool
}
