// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Project is the identity a cloned model declares in its pyproject.toml.
type Project struct {
	Name    string
	Version string
}

type projectMetadata struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type pyProject struct {
	Project projectMetadata `toml:"project"`
	Tool    struct {
		Poetry projectMetadata `toml:"poetry"`
	} `toml:"tool"`
}

// ProbeProject reads pyproject.toml from the root of fsys, preferring
// [project] metadata over [tool.poetry]. A missing file returns a zero
// Project and no error.
func ProbeProject(fsys billy.Filesystem) (Project, error) {
	b, err := util.ReadFile(fsys, "pyproject.toml")
	if errors.Is(err, os.ErrNotExist) {
		return Project{}, nil
	} else if err != nil {
		return Project{}, errors.Wrap(err, "reading pyproject.toml")
	}
	var p pyProject
	if err := toml.Unmarshal(b, &p); err != nil {
		return Project{}, errors.Wrap(err, "parsing pyproject.toml")
	}
	if p.Project.Name != "" {
		return Project{Name: p.Project.Name, Version: p.Project.Version}, nil
	}
	return Project{Name: p.Tool.Poetry.Name, Version: p.Tool.Poetry.Version}, nil
}
