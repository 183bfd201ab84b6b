// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package build defines the execution contract for benchmark image builds
// and containerized benchmark runs.
package build

import (
	"context"
	"io"
	"time"
)

// ContainerWorkdir is where a run's host workspace is mounted inside the
// benchmark container. Scripts execute with this as their working directory.
const ContainerWorkdir = "/myworkspace"

// Executor manages build and run execution for a specific backend.
type Executor interface {
	// StartBuild begins building the benchmark image for a model.
	StartBuild(ctx context.Context, req BuildRequest, opts Options) (Handle, error)
	// StartRun begins executing a model's benchmark script in a container.
	StartRun(ctx context.Context, req RunRequest, opts Options) (Handle, error)
	// RemoveImage deletes a built image from the backend.
	RemoveImage(ctx context.Context, image string) error
	Status() ExecutorStatus
	Close(ctx context.Context) error
}

// Handle represents an active or completed build or run.
type Handle interface {
	RunID() string
	Wait(ctx context.Context) (Result, error)
	OutputStream() io.Reader
	Status() State
}

// Result represents a completed build or run.
type Result struct {
	// Error represents an execution-time failure (i.e. after setup)
	Error error
	// ExitCode is the process or container exit status
	ExitCode int
	// ImageID is the image digest, populated for builds
	ImageID string
	// Duration is the wall time of the execution
	Duration time.Duration
	// OutputTail holds the last portion of combined output, for error reporting
	OutputTail string
}

// ExecutorStatus represents the overall executor status.
type ExecutorStatus struct {
	// InProgress is the number of executions currently running
	InProgress int
	// Capacity is the max number of executions that can run simultaneously
	Capacity int
	// Healthy is whether the executor is accepting new work
	Healthy bool
}

// State represents the current state of a build or run.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
