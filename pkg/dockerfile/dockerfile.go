// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package dockerfile resolves, parses, and checks the model build recipes
// under docker/. Recipes are named <prefix>.<os>.<vendor>.Dockerfile and
// carry a fixed contract: an overridable BASE_DOCKER build argument, a
// workspace directory exported through WORKSPACE_DIR, and a package
// inventory step.
package dockerfile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/pkg/errors"
)

// BaseImageArg is the build argument recipes use to select their base image.
const BaseImageArg = "BASE_DOCKER"

// WorkspaceEnv is the environment variable exposing the workspace path.
const WorkspaceEnv = "WORKSPACE_DIR"

// Select resolves the recipe for a model prefix against the host, most
// specific name first: <prefix>.<os>.<vendor>, then <prefix>.<vendor>, then
// the bare <prefix>. The returned path is relative to fsys.
func Select(fsys billy.Filesystem, prefix string, os hostinfo.OS, vendor hostinfo.Vendor) (string, error) {
	candidates := []string{
		fmt.Sprintf("%s.%s.%s.Dockerfile", prefix, os.Suffix(), vendor.Suffix()),
		fmt.Sprintf("%s.%s.Dockerfile", prefix, vendor.Suffix()),
		fmt.Sprintf("%s.Dockerfile", prefix),
	}
	for _, c := range candidates {
		if _, err := fsys.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", errors.Errorf("no Dockerfile for %q (tried %s)", prefix, strings.Join(candidates, ", "))
}

// Read returns the contents of a recipe on fsys.
func Read(fsys billy.Filesystem, path string) ([]byte, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

// BaseImage parses the BASE_DOCKER default from recipe contents: the value
// after "=" on the ARG line, with surrounding quotes stripped.
func BaseImage(contents []byte) (string, error) {
	for _, line := range strings.Split(string(contents), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "ARG ") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "ARG "))
		if !strings.HasPrefix(rest, BaseImageArg) {
			continue
		}
		_, value, found := strings.Cut(rest, "=")
		if !found {
			return "", errors.Errorf("ARG %s has no default", BaseImageArg)
		}
		return strings.Trim(strings.TrimSpace(value), `"'`), nil
	}
	return "", errors.Errorf("no ARG %s in Dockerfile", BaseImageArg)
}

// Workspace parses the WORKSPACE_DIR value from recipe contents. Both ENV
// syntaxes (key=value and key value) are accepted.
func Workspace(contents []byte) (string, error) {
	for _, line := range strings.Split(string(contents), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "ENV ") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "ENV "))
		var value string
		switch {
		case strings.HasPrefix(rest, WorkspaceEnv+"="):
			value = strings.TrimPrefix(rest, WorkspaceEnv+"=")
		case strings.HasPrefix(rest, WorkspaceEnv+" "):
			value = strings.TrimPrefix(rest, WorkspaceEnv+" ")
		default:
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"'`), nil
	}
	return "", errors.Errorf("no ENV %s in Dockerfile", WorkspaceEnv)
}

// Finding is one contract-check result.
type Finding struct {
	Rule   string
	OK     bool
	Detail string
}

var workspaceRef = regexp.MustCompile(`\$\{?` + WorkspaceEnv + `\}?`)

// Lint statically checks the recipe contract. It returns one finding per
// rule; callers decide whether failures are fatal.
func Lint(contents []byte) []Finding {
	text := string(contents)
	var findings []Finding
	add := func(rule string, ok bool, detail string) {
		findings = append(findings, Finding{Rule: rule, OK: ok, Detail: detail})
	}

	base, err := BaseImage(contents)
	switch {
	case err != nil:
		add("base-image-arg", false, err.Error())
	case base == "":
		add("base-image-arg", false, "ARG "+BaseImageArg+" default is empty")
	default:
		add("base-image-arg", true, base)
	}

	fromArg := regexp.MustCompile(`(?m)^\s*FROM\s+\$\{?` + BaseImageArg + `\}?\b`)
	if fromArg.MatchString(text) {
		add("from-base-arg", true, "")
	} else {
		add("from-base-arg", false, "FROM does not reference $"+BaseImageArg)
	}

	ws, err := Workspace(contents)
	if err != nil {
		add("workspace-env", false, err.Error())
	} else {
		add("workspace-env", true, ws)
	}

	mkdir := regexp.MustCompile(`(?m)^\s*RUN\s+mkdir\s+-p\s+` + workspaceRef.String())
	if mkdir.MatchString(text) {
		add("workspace-created", true, "")
	} else {
		add("workspace-created", false, "no RUN mkdir -p $"+WorkspaceEnv)
	}

	workdir := regexp.MustCompile(`(?m)^\s*WORKDIR\s+` + workspaceRef.String())
	if workdir.MatchString(text) {
		add("workdir-workspace", true, "")
	} else {
		add("workdir-workspace", false, "WORKDIR is not $"+WorkspaceEnv)
	}

	inventory := regexp.MustCompile(`(?m)^\s*RUN\s+.*pip3?\s+(list|freeze)`)
	if inventory.MatchString(text) {
		add("package-inventory", true, "")
	} else {
		add("package-inventory", false, "no pip list/freeze step")
	}
	return findings
}

// Problems filters findings down to failures.
func Problems(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if !f.OK {
			out = append(out, f)
		}
	}
	return out
}
