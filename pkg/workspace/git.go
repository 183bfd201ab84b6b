// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"io"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
)

// CloneModel clones a model's repository into dir. ref may name a branch,
// tag, or commit; empty leaves the default branch checked out. Progress
// output goes to progress when non-nil.
func CloneModel(ctx context.Context, url, ref, dir string, progress io.Writer) (*git.Repository, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:      url,
		Progress: progress,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cloning %s", url)
	}
	if ref == "" {
		return repo, nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", ref)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "getting worktree")
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return nil, errors.Wrapf(err, "checking out %s", ref)
	}
	return repo, nil
}

// HeadCommit returns the HEAD hash of the repository containing path, or ""
// when path is not inside one. Used to stamp results with the harness's own
// revision.
func HeadCommit(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
