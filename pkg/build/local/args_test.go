// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/modelbench/modelbench/pkg/model"
)

func TestGPUArgs(t *testing.T) {
	testCases := []struct {
		name        string
		vendor      hostinfo.Vendor
		renderNodes []int
		want        []string
	}{
		{
			name:   "nvidia",
			vendor: hostinfo.NVIDIA,
			want:   []string{"--gpus", "all"},
		},
		{
			name:   "amd all devices",
			vendor: hostinfo.AMD,
			want:   []string{"--device=/dev/kfd", "--device=/dev/dri"},
		},
		{
			name:        "amd specific render nodes",
			vendor:      hostinfo.AMD,
			renderNodes: []int{128, 136},
			want:        []string{"--device=/dev/kfd", "--device=/dev/dri/renderD128", "--device=/dev/dri/renderD136"},
		},
		{
			name:   "unknown vendor",
			vendor: hostinfo.Vendor(""),
			want:   nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := gpuArgs(tc.vendor, tc.renderNodes)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("gpuArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildArgs(t *testing.T) {
	testCases := []struct {
		name     string
		req      build.BuildRequest
		imageTag string
		want     []string
	}{
		{
			name: "plain build",
			req: build.BuildRequest{
				Model:      model.Model{Name: "pyt_vllm_llama-3.1-8b"},
				Dockerfile: "docker/vllm.ubuntu.amd.Dockerfile",
				ContextDir: ".",
			},
			imageTag: "ci-pyt_vllm_llama-3.1-8b",
			want: []string{
				"build",
				"-f", "docker/vllm.ubuntu.amd.Dockerfile",
				"-t", "ci-pyt_vllm_llama-3.1-8b",
				".",
			},
		},
		{
			name: "base image override without cache",
			req: build.BuildRequest{
				Model:      model.Model{Name: "dummy_smoke"},
				Dockerfile: "docker/vllm.ubuntu.amd.Dockerfile",
				ContextDir: "/srv/bench",
				BaseImage:  "rocm/vllm:rocm6.4_vllm0.9.0",
				NoCache:    true,
			},
			imageTag: "ci-dummy_smoke",
			want: []string{
				"build",
				"-f", "docker/vllm.ubuntu.amd.Dockerfile",
				"-t", "ci-dummy_smoke",
				"--no-cache",
				"--build-arg", "BASE_DOCKER=rocm/vllm:rocm6.4_vllm0.9.0",
				"/srv/bench",
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := buildArgs(tc.req, tc.imageTag)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("buildArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunArgs(t *testing.T) {
	testCases := []struct {
		name          string
		req           build.RunRequest
		containerName string
		want          []string
	}{
		{
			name: "nvidia with cpuset and env",
			req: build.RunRequest{
				Model:     model.Model{Name: "pyt_vllm_llama-3.1-8b"},
				Image:     "ci-pyt_vllm_llama-3.1-8b",
				Script:    "bash run.sh",
				Workspace: "/tmp/ws",
				Vendor:    hostinfo.NVIDIA,
				CPUSet:    "0-3",
				Env:       []string{"HF_TOKEN=secret", "VLLM_USE_V1=1"},
			},
			containerName: "run-1",
			want: []string{
				"run", "--rm",
				"--name", "run-1",
				"--gpus", "all",
				"--shm-size", "16g",
				"--cpuset-cpus=0-3",
				"--env", "HF_TOKEN=secret",
				"--env", "VLLM_USE_V1=1",
				"-v", "/tmp/ws:/myworkspace",
				"-w", "/myworkspace",
				"ci-pyt_vllm_llama-3.1-8b",
				"/bin/bash", "-c", "bash run.sh",
			},
		},
		{
			name: "amd keep-alive with read-only mount",
			req: build.RunRequest{
				Model:     model.Model{Name: "dummy_smoke"},
				Image:     "ci-dummy_smoke",
				Script:    "bash run.sh",
				Workspace: "/tmp/ws",
				Vendor:    hostinfo.AMD,
				Mounts: []build.Mount{
					{Src: "/data/models", Dst: "/data/models", ReadOnly: true},
				},
				KeepAlive: true,
			},
			containerName: "run-2",
			want: []string{
				"run",
				"--name", "run-2",
				"--device=/dev/kfd", "--device=/dev/dri",
				"--shm-size", "16g",
				"-v", "/tmp/ws:/myworkspace",
				"-v", "/data/models:/data/models:ro",
				"-w", "/myworkspace",
				"ci-dummy_smoke",
				"/bin/bash", "-c", "bash run.sh",
			},
		},
		{
			name: "amd pinned render nodes with rw mount",
			req: build.RunRequest{
				Model:       model.Model{Name: "pyt_vllm_mixtral-8x7b"},
				Image:       "ci-pyt_vllm_mixtral-8x7b",
				Script:      "bash run.sh --tp 4",
				Workspace:   "/tmp/ws",
				Vendor:      hostinfo.AMD,
				RenderNodes: []int{128, 129, 130, 131},
				Mounts: []build.Mount{
					{Src: "/scratch", Dst: "/scratch"},
				},
			},
			containerName: "run-3",
			want: []string{
				"run", "--rm",
				"--name", "run-3",
				"--device=/dev/kfd",
				"--device=/dev/dri/renderD128",
				"--device=/dev/dri/renderD129",
				"--device=/dev/dri/renderD130",
				"--device=/dev/dri/renderD131",
				"--shm-size", "16g",
				"-v", "/tmp/ws:/myworkspace",
				"-v", "/scratch:/scratch:rw",
				"-w", "/myworkspace",
				"ci-pyt_vllm_mixtral-8x7b",
				"/bin/bash", "-c", "bash run.sh --tp 4",
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := runArgs(tc.req, tc.containerName)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("runArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
