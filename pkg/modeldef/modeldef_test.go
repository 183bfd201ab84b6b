// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package modeldef

import (
	"context"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
	"github.com/modelbench/modelbench/pkg/model"
)

func TestFilesystemSetGet(t *testing.T) {
	fs := memfs.New()
	def := `
dockerfile: docker/vllm-nightly
base_image: rocm/vllm-dev:nightly
timeout: 0
tags: [nightly]
`
	if err := util.WriteFile(fs, "llama.yaml", []byte(def), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	set := NewFilesystemSet(fs)
	got, err := set.Get(context.Background(), "llama")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil definition")
	}
	zero := 0
	want := &Definition{
		Dockerfile: "docker/vllm-nightly",
		BaseImage:  "rocm/vllm-dev:nightly",
		Timeout:    &zero,
		Tags:       []string{"nightly"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("definition mismatch (-want +got):\n%s", diff)
	}
}

func TestFilesystemSetGetMissing(t *testing.T) {
	set := NewFilesystemSet(memfs.New())
	got, err := set.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil for missing definition", got)
	}
}

func TestFilesystemSetGetMalformed(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, "bad.yaml", []byte("unknown_field: 1"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := NewFilesystemSet(fs).Get(context.Background(), "bad")
	if err == nil {
		t.Fatal("Get succeeded on malformed definition")
	}
	if !strings.Contains(err.Error(), `parsing definition for "bad"`) {
		t.Errorf("error = %q, want parse error naming the model", err)
	}
}

func TestDefinitionApply(t *testing.T) {
	base := model.Model{
		Name:       "llama",
		Dockerfile: "docker/vllm",
		Scripts:    "scripts/vllm/run.sh",
		Args:       "--model_repo x",
		NGPUs:      1,
		Timeout:    7200,
		Tags:       []string{"vllm"},
	}
	tmo := -1
	got, baseImage := Definition{
		BaseImage: "rocm/vllm:override",
		Args:      "--model_repo y",
		Timeout:   &tmo,
		NGPUs:     8,
		Tags:      []string{"site"},
	}.Apply(base)
	if baseImage != "rocm/vllm:override" {
		t.Errorf("base image = %q", baseImage)
	}
	want := base
	want.Args = "--model_repo y"
	want.Timeout = -1
	want.NGPUs = 8
	want.Tags = []string{"vllm", "site"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
}

func TestDefinitionApplyZeroKeepsCatalog(t *testing.T) {
	base := model.Model{Name: "m", Dockerfile: "docker/vllm", Scripts: "s", NGPUs: 2, Timeout: 600}
	got, baseImage := Definition{}.Apply(base)
	if baseImage != "" {
		t.Errorf("base image = %q, want empty", baseImage)
	}
	if diff := cmp.Diff(base, got); diff != "" {
		t.Errorf("empty definition changed model (-want +got):\n%s", diff)
	}
}
