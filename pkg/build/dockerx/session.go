// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package dockerx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/pkg/errors"
)

// sessionShmSize is the shared memory allocation for session containers,
// matching the one-shot executor.
const sessionShmSize int64 = 16 << 30 // 16g

// stopGrace is how long a container gets to exit before Docker kills it.
const stopGrace = 1 // seconds

// SessionConfig describes the container a session runs in.
type SessionConfig struct {
	// Name is the container name. Opening fails if it is already taken.
	Name string
	// Image is the benchmark image to run.
	Image string
	// Workspace is the host directory mounted at the container workdir.
	Workspace string
	// Vendor selects GPU device wiring.
	Vendor hostinfo.Vendor
	// RenderNodes restricts an AMD session to specific render nodes.
	RenderNodes []int
	// CPUSet pins the container to a CPU set. Empty disables pinning.
	CPUSet string
	// Env holds KEY=VALUE pairs set in the container.
	Env []string
	// Mounts are additional bind mounts.
	Mounts []build.Mount
	// User is the uid:gid the container runs as. Empty keeps the image
	// default; DefaultUser() matches the invoking user.
	User string
}

// DefaultUser returns the invoking user's uid:gid pair, so files written to
// mounted workspaces keep host ownership.
func DefaultUser() string {
	return fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
}

// Session is a running keep-alive container accepting script executions.
type Session struct {
	client Client
	id     string
	name   string
}

// Open creates and starts a session container. The container idles on a
// `cat` process with a TTY attached so it stays alive between Exec calls.
func (m *Manager) Open(ctx context.Context, cfg SessionConfig) (*Session, error) {
	existing, err := m.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", cfg.Name)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing containers")
	}
	// The name filter matches substrings; require an exact name.
	for _, c := range existing {
		for _, n := range c.Names {
			if n == "/"+cfg.Name {
				return nil, errors.Errorf("container with name %s already exists: stop (docker stop --time=%d %s) and remove (docker rm -f %s) to proceed", cfg.Name, stopGrace, cfg.Name, cfg.Name)
			}
		}
	}
	config := &container.Config{
		Image:      cfg.Image,
		Env:        cfg.Env,
		Cmd:        []string{"cat"},
		Tty:        true,
		OpenStdin:  true,
		User:       cfg.User,
		WorkingDir: build.ContainerWorkdir,
		Labels:     map[string]string{"modelbench.session": cfg.Name},
	}
	hostConfig := &container.HostConfig{
		Resources: deviceResources(cfg.Vendor, cfg.RenderNodes, cfg.CPUSet),
		ShmSize:   sessionShmSize,
		Mounts:    sessionMounts(cfg.Workspace, cfg.Mounts),
	}
	resp, err := m.client.ContainerCreate(ctx, config, hostConfig, nil, nil, cfg.Name)
	if err != nil {
		return nil, errors.Wrap(err, "creating session container")
	}
	if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, errors.Wrap(err, "starting session container")
	}
	return &Session{client: m.client, id: resp.ID, name: cfg.Name}, nil
}

// deviceResources maps GPU wiring onto the Engine API. NVIDIA uses the
// device request mechanism behind `--gpus all`; AMD exposes the KFD and DRI
// device nodes directly.
func deviceResources(vendor hostinfo.Vendor, renderNodes []int, cpuset string) container.Resources {
	res := container.Resources{CpusetCpus: cpuset}
	switch vendor {
	case hostinfo.NVIDIA:
		res.DeviceRequests = []container.DeviceRequest{{
			Driver:       "nvidia",
			Count:        -1,
			Capabilities: [][]string{{"gpu"}},
		}}
	case hostinfo.AMD:
		paths := []string{"/dev/kfd"}
		if len(renderNodes) == 0 {
			paths = append(paths, "/dev/dri")
		} else {
			for _, n := range renderNodes {
				paths = append(paths, fmt.Sprintf("/dev/dri/renderD%d", n))
			}
		}
		for _, p := range paths {
			res.Devices = append(res.Devices, container.DeviceMapping{
				PathOnHost:        p,
				PathInContainer:   p,
				CgroupPermissions: "rwm",
			})
		}
	}
	return res
}

func sessionMounts(workspace string, extra []build.Mount) []mount.Mount {
	mounts := []mount.Mount{{
		Type:   mount.TypeBind,
		Source: workspace,
		Target: build.ContainerWorkdir,
	}}
	for _, m := range extra {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Src,
			Target:   m.Dst,
			ReadOnly: m.ReadOnly,
		})
	}
	return mounts
}

// ID returns the container ID.
func (s *Session) ID() string { return s.id }

// Name returns the container name.
func (s *Session) Name() string { return s.name }

// Exec runs a shell command in the session container, streaming combined
// output to out. It returns the command's exit code.
func (s *Session) Exec(ctx context.Context, script string, out io.Writer) (int, error) {
	exec, err := s.client.ContainerExecCreate(ctx, s.id, container.ExecOptions{
		Cmd:          []string{"/bin/bash", "-c", script},
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   build.ContainerWorkdir,
	})
	if err != nil {
		return -1, errors.Wrap(err, "creating exec")
	}
	attach, err := s.client.ContainerExecAttach(ctx, exec.ID, container.ExecAttachOptions{})
	if err != nil {
		return -1, errors.Wrap(err, "attaching to exec")
	}
	defer attach.Close()
	// Without a TTY the stream is multiplexed; demux both channels to out.
	if _, err := stdcopy.StdCopy(out, out, attach.Reader); err != nil {
		return -1, errors.Wrap(err, "streaming exec output")
	}
	inspect, err := s.client.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return -1, errors.Wrap(err, "inspecting exec")
	}
	return inspect.ExitCode, nil
}

// Close stops the session container with a short grace period and removes
// it along with its anonymous volumes.
func (s *Session) Close(ctx context.Context) error {
	grace := stopGrace
	if err := s.client.ContainerStop(ctx, s.id, container.StopOptions{Timeout: &grace}); err != nil {
		return errors.Wrap(err, "stopping session container")
	}
	if err := s.client.ContainerRemove(ctx, s.id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		return errors.Wrap(err, "removing session container")
	}
	return nil
}

// DetachMessage returns the instructions printed when a session is left
// running for inspection instead of being closed.
func (s *Session) DetachMessage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session container %s left running.\n", s.name)
	fmt.Fprintf(&b, "  attach:  docker exec -it %s /bin/bash\n", s.name)
	fmt.Fprintf(&b, "  stop:    docker stop --time=%d %s\n", stopGrace, s.name)
	fmt.Fprintf(&b, "  remove:  docker rm -f %s", s.name)
	return b.String()
}
