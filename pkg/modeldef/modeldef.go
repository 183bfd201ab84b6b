// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package modeldef resolves per-model override definitions. A definition is
// a small YAML document, keyed by model name, that adjusts how a catalog
// entry is built or run on a particular site (different base image, extra
// args, longer timeout) without editing the catalog itself.
package modeldef

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/modelbench/modelbench/pkg/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Definition holds the overridable subset of a catalog entry. Zero values
// mean "keep the catalog's value"; Timeout uses a pointer so an explicit
// zero (select the default) remains expressible.
type Definition struct {
	Dockerfile string   `yaml:"dockerfile,omitempty"`
	BaseImage  string   `yaml:"base_image,omitempty"`
	Scripts    string   `yaml:"scripts,omitempty"`
	Args       string   `yaml:"args,omitempty"`
	Timeout    *int     `yaml:"timeout,omitempty"`
	NGPUs      int      `yaml:"n_gpus,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
}

// Apply overlays the definition onto a catalog model and returns the result
// together with any base image override (which lives outside model.Model).
func (d Definition) Apply(m model.Model) (model.Model, string) {
	if d.Dockerfile != "" {
		m.Dockerfile = d.Dockerfile
	}
	if d.Scripts != "" {
		m.Scripts = d.Scripts
	}
	if d.Args != "" {
		m.Args = d.Args
	}
	if d.Timeout != nil {
		m.Timeout = *d.Timeout
	}
	if d.NGPUs > 0 {
		m.NGPUs = d.NGPUs
	}
	if len(d.Tags) > 0 {
		m.Tags = append(m.Tags, d.Tags...)
	}
	return m, d.BaseImage
}

// Set resolves definitions by model name. A nil Definition with nil error
// means no override exists.
type Set interface {
	Get(ctx context.Context, name string) (*Definition, error)
}

// FilesystemSet reads definitions from <dir>/<model>.yaml on a filesystem.
type FilesystemSet struct {
	fs billy.Filesystem
}

func NewFilesystemSet(fs billy.Filesystem) *FilesystemSet {
	return &FilesystemSet{fs: fs}
}

func (s *FilesystemSet) Get(ctx context.Context, name string) (*Definition, error) {
	f, err := s.fs.Open(path.Join(name + ".yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening definition for %q", name)
	}
	defer f.Close()
	return decode(f, name)
}

func decode(r io.Reader, name string) (*Definition, error) {
	var d Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, errors.Wrapf(err, "parsing definition for %q", name)
	}
	return &d, nil
}

// GitSet serves definitions from a directory of a git repository checked out
// into memory.
type GitSet struct {
	fs  billy.Filesystem
	ref plumbing.Hash
}

// GitSetOptions configures the clone and which subdirectory holds
// definitions.
type GitSetOptions struct {
	git.CloneOptions
	RelativePath string
}

// NewGitSet clones the repository at the configured ref into an in-memory
// filesystem and serves definitions from RelativePath.
func NewGitSet(opts *GitSetOptions) (*GitSet, error) {
	if opts.ReferenceName.String() == "" {
		opts.ReferenceName = plumbing.Main
	}
	mfs := memfs.New()
	r, err := git.Clone(memory.NewStorage(), mfs, &opts.CloneOptions)
	if err != nil {
		return nil, errors.Wrap(err, "cloning definitions repository")
	}
	ref, err := r.Reference(opts.ReferenceName, true)
	if err != nil {
		return nil, errors.Wrap(err, "resolving definitions ref")
	}
	w, err := r.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "getting worktree")
	}
	if err := w.Checkout(&git.CheckoutOptions{Branch: opts.ReferenceName}); err != nil {
		return nil, errors.Wrap(err, "checking out definitions ref")
	}
	deffs := mfs
	if opts.RelativePath != "" {
		if deffs, err = mfs.Chroot(opts.RelativePath); err != nil {
			return nil, errors.Wrap(err, "entering definitions directory")
		}
	}
	return &GitSet{fs: deffs, ref: ref.Hash()}, nil
}

func (s *GitSet) Get(ctx context.Context, name string) (*Definition, error) {
	return (&FilesystemSet{fs: s.fs}).Get(ctx, name)
}

// Ref returns the commit the definitions were read from.
func (s *GitSet) Ref() plumbing.Hash { return s.ref }
