// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package dockerx manages long-lived benchmark containers through the Docker
// Engine API. Unlike the one-shot CLI executor, sessions opened here survive
// across multiple script invocations and can be handed to the user for
// interactive debugging.
package dockerx

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

// Client is the subset of the Docker Engine API that sessions use.
// *client.Client satisfies it; tests substitute a recording fake.
type Client interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	Close() error
}

// Manager opens and tracks container sessions against one Docker daemon.
type Manager struct {
	client Client
}

// NewManager connects to the Docker daemon configured by the environment
// (DOCKER_HOST and friends) and verifies it is reachable.
func NewManager() (*Manager, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating docker client")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "docker daemon is not accessible")
	}
	return &Manager{client: cli}, nil
}

// NewManagerWithClient creates a Manager over an existing client. Used by
// tests and by callers that manage client lifecycle themselves.
func NewManagerWithClient(c Client) *Manager {
	return &Manager{client: c}
}

// Close releases the underlying client connection.
func (m *Manager) Close() error {
	return m.client.Close()
}
