// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package dockerfile

import (
	"io"
	"strings"
	"text/template"

	"github.com/modelbench/modelbench/internal/dedent"
	"github.com/pkg/errors"
)

// ScaffoldParams parameterizes a generated recipe.
type ScaffoldParams struct {
	// BaseImage is the BASE_DOCKER default. Required.
	BaseImage string
	// Workspace defaults to /workspace.
	Workspace string
	// PipInstall lists extra packages installed after the base layers.
	PipInstall []string
}

var scaffoldTmpl = template.Must(
	template.New("dockerfile").
		Funcs(template.FuncMap{"join": func(sep string, s []string) string { return strings.Join(s, sep) }}).
		Parse(dedent.String(`
			# Copyright 2025 The ModelBench Authors
			# SPDX-License-Identifier: Apache-2.0

			ARG BASE_DOCKER={{.BaseImage}}
			FROM $BASE_DOCKER

			USER root

			ENV WORKSPACE_DIR={{.Workspace}}
			RUN mkdir -p $WORKSPACE_DIR
			WORKDIR $WORKSPACE_DIR
			{{- if .PipInstall}}

			RUN pip install {{join " " .PipInstall}}
			{{- end}}

			# Record the preinstalled package inventory in the build log.
			RUN pip list
			`)))

// Scaffold writes a new recipe carrying the standard contract.
func Scaffold(w io.Writer, params ScaffoldParams) error {
	if params.BaseImage == "" {
		return errors.New("scaffold requires a base image")
	}
	if params.Workspace == "" {
		params.Workspace = "/workspace"
	}
	return errors.Wrap(scaffoldTmpl.Execute(w, params), "rendering Dockerfile")
}
