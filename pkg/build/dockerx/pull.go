// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package dockerx

import (
	"context"
	"io"
	"os"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// EnsureImage pulls ref unless it is already present locally. Pull progress
// is rendered to out in the engine's JSON message format.
func (m *Manager) EnsureImage(ctx context.Context, ref string, out io.Writer) error {
	present, err := m.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return errors.Wrap(err, "listing images")
	}
	if len(present) > 0 {
		return nil
	}
	resp, err := m.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(err, "pulling %s", ref)
	}
	defer resp.Close()
	var fd uintptr
	var isTerm bool
	if f, ok := out.(*os.File); ok {
		fd = f.Fd()
		isTerm = isatty.IsTerminal(fd)
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp, out, fd, isTerm, nil); err != nil {
		return errors.Wrapf(err, "pulling %s", ref)
	}
	return nil
}
