// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"

	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/hostinfo"
)

// shmSize is the shared memory allocation for benchmark containers. Large
// model runs fail with the Docker default of 64MB.
const shmSize = "16g"

// gpuArgs returns the device arguments exposing GPUs to a container.
// NVIDIA containers get the full runtime; AMD containers get the KFD and
// DRI device nodes, optionally restricted to specific render nodes.
func gpuArgs(vendor hostinfo.Vendor, renderNodes []int) []string {
	switch vendor {
	case hostinfo.NVIDIA:
		return []string{"--gpus", "all"}
	case hostinfo.AMD:
		args := []string{"--device=/dev/kfd"}
		if len(renderNodes) == 0 {
			return append(args, "--device=/dev/dri")
		}
		for _, n := range renderNodes {
			args = append(args, fmt.Sprintf("--device=/dev/dri/renderD%d", n))
		}
		return args
	default:
		return nil
	}
}

// cpusetArgs returns the CPU pinning argument, or nothing when no set is
// requested.
func cpusetArgs(cpuset string) []string {
	if cpuset == "" {
		return nil
	}
	return []string{"--cpuset-cpus=" + cpuset}
}

// envArgs returns the environment variable arguments.
func envArgs(env []string) []string {
	var args []string
	for _, kv := range env {
		args = append(args, "--env", kv)
	}
	return args
}

// mountArgs returns the bind mount arguments. The mode suffix is always
// explicit.
func mountArgs(mounts []build.Mount) []string {
	var args []string
	for _, m := range mounts {
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		args = append(args, "-v", fmt.Sprintf("%s:%s:%s", m.Src, m.Dst, mode))
	}
	return args
}

// buildArgs assembles the argv for a docker image build.
func buildArgs(req build.BuildRequest, imageTag string) []string {
	args := []string{"build", "-f", req.Dockerfile, "-t", imageTag}
	if req.NoCache {
		args = append(args, "--no-cache")
	}
	if req.BaseImage != "" {
		args = append(args, "--build-arg", "BASE_DOCKER="+req.BaseImage)
	}
	return append(args, req.ContextDir)
}

// runArgs assembles the argv for a one-shot benchmark container run.
func runArgs(req build.RunRequest, containerName string) []string {
	args := []string{"run"}
	if !req.KeepAlive {
		args = append(args, "--rm")
	}
	args = append(args, "--name", containerName)
	args = append(args, gpuArgs(req.Vendor, req.RenderNodes)...)
	args = append(args, "--shm-size", shmSize)
	args = append(args, cpusetArgs(req.CPUSet)...)
	args = append(args, envArgs(req.Env)...)
	if req.Workspace != "" {
		args = append(args, "-v", fmt.Sprintf("%s:%s", req.Workspace, build.ContainerWorkdir))
	}
	args = append(args, mountArgs(req.Mounts)...)
	args = append(args, "-w", build.ContainerWorkdir)
	args = append(args, req.Image)
	args = append(args, "/bin/bash", "-c", req.Script)
	return args
}
