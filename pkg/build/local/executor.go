// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package local executes benchmark image builds and container runs through
// the docker CLI on the host.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/modelbench/modelbench/internal/console"
	"github.com/modelbench/modelbench/internal/syncx"
	"github.com/modelbench/modelbench/pkg/artifacts"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/pkg/errors"
)

const defaultOutputBufferSize = 512 * 1024 // 512KB

// DockerExecutor implements build.Executor using the docker CLI.
type DockerExecutor struct {
	maxParallel      int
	semaphore        chan struct{}
	dockerCmd        string
	cmdExecutor      CommandExecutor
	activeRuns       syncx.Map[string, *localHandle]
	outputBufferSize int
}

// DockerExecutorConfig contains configuration for creating a Docker executor
type DockerExecutorConfig struct {
	CommandExecutor  CommandExecutor
	MaxParallel      int // Max number of simultaneous executions
	OutputBufferSize int // Buffer size for output streams, defaults to 512KB
}

// NewDockerExecutor creates a new Docker executor with configuration
func NewDockerExecutor(config DockerExecutorConfig) (*DockerExecutor, error) {
	// Set defaults for unset config params
	cmdExecutor := config.CommandExecutor
	if cmdExecutor == nil {
		cmdExecutor = NewRealCommandExecutor()
	}
	maxParallel := config.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	outputBufferSize := config.OutputBufferSize
	if outputBufferSize <= 0 {
		outputBufferSize = defaultOutputBufferSize
	}
	// Check if docker is available
	dockerCmd := "docker"
	if _, err := cmdExecutor.LookPath(dockerCmd); err != nil {
		return nil, errors.Wrap(err, "docker command not found")
	}
	return &DockerExecutor{
		maxParallel:      maxParallel,
		semaphore:        make(chan struct{}, maxParallel),
		dockerCmd:        dockerCmd,
		cmdExecutor:      cmdExecutor,
		activeRuns:       syncx.Map[string, *localHandle]{},
		outputBufferSize: outputBufferSize,
	}, nil
}

// ImageTag returns the tag applied to a model's benchmark image.
func ImageTag(modelName string) string {
	return "ci-" + strings.ToLower(modelName)
}

// StartBuild implements build.Executor.
func (e *DockerExecutor) StartBuild(ctx context.Context, req build.BuildRequest, opts build.Options) (build.Handle, error) {
	runID := opts.RunID
	if runID == "" {
		runID = fmt.Sprintf("modelbench-%d", time.Now().UnixNano())
	}
	imageTag := req.Image
	if imageTag == "" {
		imageTag = ImageTag(req.Model.Name)
	}
	// Create an execution context that can be cancelled independently.
	execCtx, cancel := context.WithCancel(context.Background())
	if d, ok := opts.EffectiveTimeout(); ok {
		execCtx, cancel = context.WithTimeout(execCtx, d)
	}
	handle := newLocalHandle(runID, cancel, e.outputBufferSize)
	e.activeRuns.Store(runID, handle)
	go e.executeBuild(execCtx, handle, req, imageTag, opts)
	return handle, nil
}

// StartRun implements build.Executor.
func (e *DockerExecutor) StartRun(ctx context.Context, req build.RunRequest, opts build.Options) (build.Handle, error) {
	runID := opts.RunID
	if runID == "" {
		runID = fmt.Sprintf("modelbench-%d", time.Now().UnixNano())
	}
	execCtx, cancel := context.WithCancel(context.Background())
	if d, ok := opts.EffectiveTimeout(); ok {
		execCtx, cancel = context.WithTimeout(execCtx, d)
	}
	handle := newLocalHandle(runID, cancel, e.outputBufferSize)
	e.activeRuns.Store(runID, handle)
	go e.executeRun(execCtx, handle, req, opts)
	return handle, nil
}

// RemoveImage implements build.Executor.
func (e *DockerExecutor) RemoveImage(ctx context.Context, image string) error {
	err := e.cmdExecutor.Execute(ctx, CommandOptions{}, e.dockerCmd, "rmi", image)
	return errors.Wrapf(err, "removing image %s", image)
}

// Status implements build.Executor.
func (e *DockerExecutor) Status() build.ExecutorStatus {
	return build.ExecutorStatus{
		InProgress: len(e.semaphore),
		Capacity:   e.maxParallel,
		Healthy:    true,
	}
}

// Close implements build.Executor.
func (e *DockerExecutor) Close(ctx context.Context) error {
	// Cancel all active executions.
	for handle := range e.activeRuns.Values() {
		handle.cancel()
		handle.updateStatus(build.StateCancelled)
	}
	// Wait for executions to finish or context timeout.
	done := make(chan struct{})
	go func() {
		for len(e.semaphore) > 0 {
			time.Sleep(100 * time.Millisecond)
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "closing executor")
	}
}

// executeBuild runs the actual docker build process.
func (e *DockerExecutor) executeBuild(ctx context.Context, handle *localHandle, req build.BuildRequest, imageTag string, opts build.Options) {
	// Ensure resources are cleaned up on exit.
	defer e.activeRuns.Delete(handle.id)
	defer handle.output.Close()
	// Acquire semaphore slot.
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		handle.updateStatus(build.StateCancelled)
		handle.setResult(build.Result{
			Error: errors.Wrap(ctx.Err(), "enqueuing build"),
		})
		return
	}
	handle.updateStatus(build.StateRunning)
	// Stream output to the handle and, when a store is configured, to the
	// persisted build log.
	// NOTE: Upload failures don't fail the build.
	out := io.Writer(handle)
	store := opts.Resources.AssetStore
	if store != nil {
		if w, err := store.Writer(ctx, artifacts.BuildLogAsset.For(req.Model.Name)); err != nil {
			log.Printf("Failed to open build log writer: %v", err)
		} else {
			defer func() {
				if err := w.Close(); err != nil {
					log.Printf("Failed to close build log writer: %v", err)
				}
			}()
			out = io.MultiWriter(handle, w)
		}
	}
	start := time.Now()
	err := e.cmdExecutor.Execute(ctx, CommandOptions{
		Output: out,
	}, e.dockerCmd, buildArgs(req, imageTag)...)
	duration := time.Since(start)
	exitCode := console.ExitCode(err)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Wrap(ctx.Err(), "docker build interrupted")
		} else {
			err = errors.Wrap(err, "docker build failed")
		}
		handle.updateStatus(build.StateCompleted)
		handle.setResult(build.Result{
			Error:      err,
			ExitCode:   exitCode,
			Duration:   duration,
			OutputTail: handle.outputTail(),
		})
		return
	}
	// Resolve the image digest for provenance records.
	var imageID string
	idBuf := &bytes.Buffer{}
	if err := e.cmdExecutor.Execute(ctx, CommandOptions{Output: idBuf}, e.dockerCmd, "inspect", "--format={{.Id}}", imageTag); err != nil {
		log.Printf("Failed to resolve image ID for %s: %v", imageTag, err)
	} else {
		imageID = strings.TrimSpace(idBuf.String())
	}
	if store != nil {
		if err := e.uploadFile(ctx, store, artifacts.DockerfileAsset.For(req.Model.Name), req.Dockerfile); err != nil {
			log.Printf("Failed to upload Dockerfile: %v", err)
		}
	}
	handle.updateStatus(build.StateCompleted)
	handle.setResult(build.Result{
		ExitCode:   exitCode,
		ImageID:    imageID,
		Duration:   duration,
		OutputTail: handle.outputTail(),
	})
}

// executeRun runs the actual docker run process.
func (e *DockerExecutor) executeRun(ctx context.Context, handle *localHandle, req build.RunRequest, opts build.Options) {
	defer e.activeRuns.Delete(handle.id)
	defer handle.output.Close()
	// Acquire semaphore slot.
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		handle.updateStatus(build.StateCancelled)
		handle.setResult(build.Result{
			Error: errors.Wrap(ctx.Err(), "enqueuing run"),
		})
		return
	}
	handle.updateStatus(build.StateRunning)
	// NOTE: Upload failures don't fail the run.
	out := io.Writer(handle)
	store := opts.Resources.AssetStore
	if store != nil {
		if w, err := store.Writer(ctx, artifacts.RunLogAsset.For(req.Model.Name)); err != nil {
			log.Printf("Failed to open run log writer: %v", err)
		} else {
			defer func() {
				if err := w.Close(); err != nil {
					log.Printf("Failed to close run log writer: %v", err)
				}
			}()
			out = io.MultiWriter(handle, w)
		}
	}
	start := time.Now()
	err := e.cmdExecutor.Execute(ctx, CommandOptions{
		Output: out,
	}, e.dockerCmd, runArgs(req, handle.id)...)
	duration := time.Since(start)
	exitCode := console.ExitCode(err)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Wrap(ctx.Err(), "docker run interrupted")
		} else {
			err = errors.Wrap(err, "docker run failed")
		}
	}
	if req.KeepAlive {
		log.Printf("Container %s retained for inspection (docker start -ai %s to resume, docker rm -f %s to clean up)", handle.id, handle.id, handle.id)
	}
	handle.updateStatus(build.StateCompleted)
	handle.setResult(build.Result{
		Error:      err,
		ExitCode:   exitCode,
		Duration:   duration,
		OutputTail: handle.outputTail(),
	})
}

// uploadFile uploads a local file to the asset store.
func (e *DockerExecutor) uploadFile(ctx context.Context, store artifacts.Store, asset artifacts.Asset, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", filePath)
	}
	defer file.Close()
	writer, err := store.Writer(ctx, asset)
	if err != nil {
		return errors.Wrap(err, "failed to get asset store writer")
	}
	defer writer.Close()
	if _, err := io.Copy(writer, file); err != nil {
		return errors.Wrap(err, "failed to upload file to asset store")
	}
	return nil
}
