// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package dockerx

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/go-cmp/cmp"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type createCall struct {
	Config     *container.Config
	HostConfig *container.HostConfig
	Name       string
}

type stopCall struct {
	ID      string
	Options container.StopOptions
}

type removeCall struct {
	ID      string
	Options container.RemoveOptions
}

// fakeClient records Engine API calls and replays canned responses.
type fakeClient struct {
	containers []container.Summary
	images     []image.Summary

	execOutput   []byte
	execExitCode int
	pullBody     string

	created     []createCall
	started     []string
	stopped     []stopCall
	removed     []removeCall
	execCreated []container.ExecOptions
	pulled      []string
}

func (f *fakeClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.created = append(f.created, createCall{Config: config, HostConfig: hostConfig, Name: containerName})
	return container.CreateResponse{ID: "cid-" + containerName}, nil
}

func (f *fakeClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.stopped = append(f.stopped, stopCall{ID: containerID, Options: options})
	return nil
}

func (f *fakeClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.removed = append(f.removed, removeCall{ID: containerID, Options: options})
	return nil
}

func (f *fakeClient) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	return f.containers, nil
}

func (f *fakeClient) ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error) {
	f.execCreated = append(f.execCreated, options)
	return container.ExecCreateResponse{ID: "exec-1"}, nil
}

func (f *fakeClient) ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error) {
	conn, peer := net.Pipe()
	peer.Close()
	return types.HijackedResponse{
		Conn:   conn,
		Reader: bufio.NewReader(bytes.NewReader(f.execOutput)),
	}, nil
}

func (f *fakeClient) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	return container.ExecInspect{ExecID: execID, ExitCode: f.execExitCode}, nil
}

func (f *fakeClient) ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error) {
	return f.images, nil
}

func (f *fakeClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, refStr)
	return io.NopCloser(strings.NewReader(f.pullBody)), nil
}

func (f *fakeClient) Close() error { return nil }

func TestOpenRejectsNameCollision(t *testing.T) {
	client := &fakeClient{containers: []container.Summary{{
		ID:    "abc123",
		Names: []string{"/session_vllm"},
	}}}
	m := NewManagerWithClient(client)
	_, err := m.Open(context.Background(), SessionConfig{Name: "session_vllm", Image: "ci-model"})
	if err == nil {
		t.Fatal("Open() expected error for duplicate name, got nil")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Open() error = %v, want name collision message", err)
	}
	if len(client.created) != 0 {
		t.Errorf("Open() created %d containers, want 0", len(client.created))
	}
}

func TestOpenIgnoresPrefixMatches(t *testing.T) {
	// The engine's name filter matches substrings, so a container named
	// session_vllm_2 shows up when filtering for session_vllm.
	client := &fakeClient{containers: []container.Summary{{
		ID:    "abc123",
		Names: []string{"/session_vllm_2"},
	}}}
	m := NewManagerWithClient(client)
	if _, err := m.Open(context.Background(), SessionConfig{Name: "session_vllm", Image: "ci-model"}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(client.created) != 1 {
		t.Fatalf("Open() created %d containers, want 1", len(client.created))
	}
}

func TestOpenContainerConfig(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         SessionConfig
		wantConfig  *container.Config
		wantDevices []container.DeviceMapping
		wantGPUs    []container.DeviceRequest
		wantCpuset  string
		wantMounts  int
	}{
		{
			name: "nvidia with cpuset and env",
			cfg: SessionConfig{
				Name:      "session_llama",
				Image:     "ci-pyt_vllm_llama",
				Workspace: "/home/user/run",
				Vendor:    hostinfo.NVIDIA,
				CPUSet:    "0-15",
				Env:       []string{"MODEL_DIR=models/llama"},
				User:      "1000:1000",
			},
			wantConfig: &container.Config{
				Image:      "ci-pyt_vllm_llama",
				Env:        []string{"MODEL_DIR=models/llama"},
				Cmd:        []string{"cat"},
				Tty:        true,
				OpenStdin:  true,
				User:       "1000:1000",
				WorkingDir: build.ContainerWorkdir,
				Labels:     map[string]string{"modelbench.session": "session_llama"},
			},
			wantGPUs: []container.DeviceRequest{{
				Driver:       "nvidia",
				Count:        -1,
				Capabilities: [][]string{{"gpu"}},
			}},
			wantCpuset: "0-15",
			wantMounts: 1,
		},
		{
			name: "amd default devices with extra mount",
			cfg: SessionConfig{
				Name:      "session_resnet",
				Image:     "ci-resnet",
				Workspace: "/scratch/run",
				Vendor:    hostinfo.AMD,
				Mounts:    []build.Mount{{Src: "/data", Dst: "/data", ReadOnly: true}},
			},
			wantConfig: &container.Config{
				Image:      "ci-resnet",
				Cmd:        []string{"cat"},
				Tty:        true,
				OpenStdin:  true,
				WorkingDir: build.ContainerWorkdir,
				Labels:     map[string]string{"modelbench.session": "session_resnet"},
			},
			wantDevices: []container.DeviceMapping{
				{PathOnHost: "/dev/kfd", PathInContainer: "/dev/kfd", CgroupPermissions: "rwm"},
				{PathOnHost: "/dev/dri", PathInContainer: "/dev/dri", CgroupPermissions: "rwm"},
			},
			wantMounts: 2,
		},
		{
			name: "amd pinned render nodes",
			cfg: SessionConfig{
				Name:        "session_bert",
				Image:       "ci-bert",
				Workspace:   "/scratch/run",
				Vendor:      hostinfo.AMD,
				RenderNodes: []int{128, 129},
			},
			wantConfig: &container.Config{
				Image:      "ci-bert",
				Cmd:        []string{"cat"},
				Tty:        true,
				OpenStdin:  true,
				WorkingDir: build.ContainerWorkdir,
				Labels:     map[string]string{"modelbench.session": "session_bert"},
			},
			wantDevices: []container.DeviceMapping{
				{PathOnHost: "/dev/kfd", PathInContainer: "/dev/kfd", CgroupPermissions: "rwm"},
				{PathOnHost: "/dev/dri/renderD128", PathInContainer: "/dev/dri/renderD128", CgroupPermissions: "rwm"},
				{PathOnHost: "/dev/dri/renderD129", PathInContainer: "/dev/dri/renderD129", CgroupPermissions: "rwm"},
			},
			wantMounts: 1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{}
			m := NewManagerWithClient(client)
			sess, err := m.Open(context.Background(), tc.cfg)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if len(client.created) != 1 {
				t.Fatalf("Open() created %d containers, want 1", len(client.created))
			}
			call := client.created[0]
			if diff := cmp.Diff(tc.wantConfig, call.Config); diff != "" {
				t.Errorf("container config mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantDevices, call.HostConfig.Resources.Devices); diff != "" {
				t.Errorf("devices mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantGPUs, call.HostConfig.Resources.DeviceRequests); diff != "" {
				t.Errorf("device requests mismatch (-want +got):\n%s", diff)
			}
			if call.HostConfig.Resources.CpusetCpus != tc.wantCpuset {
				t.Errorf("cpuset = %q, want %q", call.HostConfig.Resources.CpusetCpus, tc.wantCpuset)
			}
			if call.HostConfig.ShmSize != sessionShmSize {
				t.Errorf("shm size = %d, want %d", call.HostConfig.ShmSize, sessionShmSize)
			}
			if len(call.HostConfig.Mounts) != tc.wantMounts {
				t.Errorf("mounts = %d, want %d", len(call.HostConfig.Mounts), tc.wantMounts)
			}
			ws := call.HostConfig.Mounts[0]
			if ws.Source != tc.cfg.Workspace || ws.Target != build.ContainerWorkdir {
				t.Errorf("workspace mount = %s:%s, want %s:%s", ws.Source, ws.Target, tc.cfg.Workspace, build.ContainerWorkdir)
			}
			if call.Name != tc.cfg.Name {
				t.Errorf("container name = %q, want %q", call.Name, tc.cfg.Name)
			}
			if len(client.started) != 1 || client.started[0] != sess.ID() {
				t.Errorf("started = %v, want [%s]", client.started, sess.ID())
			}
		})
	}
}

func TestSessionExec(t *testing.T) {
	var mux bytes.Buffer
	stdout := stdcopy.NewStdWriter(&mux, stdcopy.Stdout)
	stderr := stdcopy.NewStdWriter(&mux, stdcopy.Stderr)
	stdout.Write([]byte("performance: 42.5 samples_per_second\n"))
	stderr.Write([]byte("warn: slow clock\n"))
	client := &fakeClient{execOutput: mux.Bytes(), execExitCode: 7}
	m := NewManagerWithClient(client)
	sess, err := m.Open(context.Background(), SessionConfig{Name: "session_x", Image: "ci-x", Workspace: "/tmp/ws"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	var out bytes.Buffer
	code, err := sess.Exec(context.Background(), "bash run.sh", &out)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if code != 7 {
		t.Errorf("Exec() exit code = %d, want 7", code)
	}
	if !strings.Contains(out.String(), "performance: 42.5") || !strings.Contains(out.String(), "slow clock") {
		t.Errorf("Exec() output = %q, want both stream channels", out.String())
	}
	if len(client.execCreated) != 1 {
		t.Fatalf("exec created %d times, want 1", len(client.execCreated))
	}
	opts := client.execCreated[0]
	wantCmd := []string{"/bin/bash", "-c", "bash run.sh"}
	if diff := cmp.Diff(wantCmd, opts.Cmd); diff != "" {
		t.Errorf("exec cmd mismatch (-want +got):\n%s", diff)
	}
	if !opts.AttachStdout || !opts.AttachStderr {
		t.Errorf("exec attach flags = stdout:%t stderr:%t, want both true", opts.AttachStdout, opts.AttachStderr)
	}
	if opts.WorkingDir != build.ContainerWorkdir {
		t.Errorf("exec workdir = %q, want %q", opts.WorkingDir, build.ContainerWorkdir)
	}
}

func TestSessionClose(t *testing.T) {
	client := &fakeClient{}
	m := NewManagerWithClient(client)
	sess, err := m.Open(context.Background(), SessionConfig{Name: "session_x", Image: "ci-x", Workspace: "/tmp/ws"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sess.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(client.stopped) != 1 {
		t.Fatalf("stopped %d containers, want 1", len(client.stopped))
	}
	if got := client.stopped[0]; got.ID != sess.ID() || got.Options.Timeout == nil || *got.Options.Timeout != 1 {
		t.Errorf("stop call = %+v, want ID %s with 1s grace", got, sess.ID())
	}
	if len(client.removed) != 1 {
		t.Fatalf("removed %d containers, want 1", len(client.removed))
	}
	if got := client.removed[0]; got.ID != sess.ID() || !got.Options.Force || !got.Options.RemoveVolumes {
		t.Errorf("remove call = %+v, want forced removal with volumes", got)
	}
}

func TestDetachMessage(t *testing.T) {
	sess := &Session{id: "cid", name: "session_llama"}
	msg := sess.DetachMessage()
	for _, want := range []string{"docker exec -it session_llama", "docker stop --time=1 session_llama", "docker rm -f session_llama"} {
		if !strings.Contains(msg, want) {
			t.Errorf("DetachMessage() = %q, missing %q", msg, want)
		}
	}
}
