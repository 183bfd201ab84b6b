// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package verify runs the acceptance checks for a model build recipe: the
// static contract, registry-side reachability of the declared base image,
// and, when enabled, real docker builds and container probes of the
// workspace configuration.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/modelbench/modelbench/internal/ocix"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/dockerfile"
)

// Check names, in the order findings are reported.
const (
	CheckContract      = "dockerfile-contract"
	CheckBasePullable  = "base-image-pullable"
	CheckBuild         = "build-succeeds"
	CheckWorkspaceDir  = "workspace-dir-exists"
	CheckWorkspaceEnv  = "workspace-env-set"
	CheckNegativeBuild = "build-fails-unresolvable-base"
)

// defaultUnresolvableBase is guaranteed not to resolve: .invalid never has
// DNS records.
const defaultUnresolvableBase = "registry.invalid/modelbench/base:missing"

// defaultImage tags images produced by verification builds.
const defaultImage = "ci-verify"

// Status is a check verdict.
type Status string

const (
	Pass Status = "PASS"
	Fail Status = "FAIL"
	Skip Status = "SKIP"
)

// Finding is one check result.
type Finding struct {
	Check  string
	Status Status
	Detail string
}

// Target is the recipe under verification.
type Target struct {
	// Path locates the recipe on disk for docker builds.
	Path string
	// Contents is the recipe text for the static checks.
	Contents []byte
	// ContextDir is the docker build context. Defaults to ".".
	ContextDir string
	// Image tags verification builds. Defaults to ci-verify.
	Image string
}

// Options select which checks run.
type Options struct {
	// Build enables the docker build and the container-side workspace
	// probes. Requires a docker daemon.
	Build bool
	// Negative additionally builds against an unresolvable base, expecting
	// the build to fail. Implies waiting out a full pull attempt.
	Negative bool
	// UnresolvableBase overrides the reference the negative check uses.
	UnresolvableBase string
	// Timeout bounds each docker operation. Zero uses the build default.
	Timeout time.Duration
	// RegistryOptions pass through to registry probes.
	RegistryOptions []remote.Option
}

// Run executes the acceptance checks and returns one finding per check.
// Failures never abort the sequence; dependent checks report SKIP instead.
func Run(ctx context.Context, executor build.Executor, target Target, opts Options) []Finding {
	if target.ContextDir == "" {
		target.ContextDir = "."
	}
	if target.Image == "" {
		target.Image = defaultImage
	}
	if opts.UnresolvableBase == "" {
		opts.UnresolvableBase = defaultUnresolvableBase
	}
	findings := []Finding{
		checkContract(target),
		checkBasePullable(ctx, target, opts),
	}
	buildFinding := checkBuild(ctx, executor, target, opts)
	findings = append(findings,
		buildFinding,
		checkWorkspaceDir(ctx, executor, target, opts, buildFinding),
		checkWorkspaceEnv(ctx, executor, target, opts, buildFinding),
		checkNegativeBuild(ctx, executor, target, opts),
	)
	return findings
}

// Failed reports whether any finding failed. SKIP does not count.
func Failed(findings []Finding) bool {
	for _, f := range findings {
		if f.Status == Fail {
			return true
		}
	}
	return false
}

func checkContract(target Target) Finding {
	problems := dockerfile.Problems(dockerfile.Lint(target.Contents))
	if len(problems) == 0 {
		return Finding{Check: CheckContract, Status: Pass}
	}
	details := make([]string, len(problems))
	for i, p := range problems {
		details[i] = fmt.Sprintf("%s: %s", p.Rule, p.Detail)
	}
	return Finding{Check: CheckContract, Status: Fail, Detail: strings.Join(details, "; ")}
}

func checkBasePullable(ctx context.Context, target Target, opts Options) Finding {
	base, err := dockerfile.BaseImage(target.Contents)
	if err != nil {
		return Finding{Check: CheckBasePullable, Status: Fail, Detail: err.Error()}
	}
	desc, err := ocix.Head(ctx, base, opts.RegistryOptions...)
	if err != nil {
		return Finding{Check: CheckBasePullable, Status: Fail, Detail: err.Error()}
	}
	return Finding{Check: CheckBasePullable, Status: Pass, Detail: fmt.Sprintf("%s @ %s", base, desc.Digest)}
}

func checkBuild(ctx context.Context, executor build.Executor, target Target, opts Options) Finding {
	if !opts.Build {
		return Finding{Check: CheckBuild, Status: Skip, Detail: "enable with --build"}
	}
	result, err := runBuild(ctx, executor, build.BuildRequest{
		Dockerfile: target.Path,
		ContextDir: target.ContextDir,
		Image:      target.Image,
	}, opts)
	if err != nil {
		return Finding{Check: CheckBuild, Status: Fail, Detail: err.Error()}
	}
	if result.Error != nil {
		return Finding{Check: CheckBuild, Status: Fail, Detail: result.Error.Error()}
	}
	return Finding{Check: CheckBuild, Status: Pass, Detail: fmt.Sprintf("built %s in %s", target.Image, result.Duration.Round(time.Second))}
}

func checkNegativeBuild(ctx context.Context, executor build.Executor, target Target, opts Options) Finding {
	if !opts.Build || !opts.Negative {
		return Finding{Check: CheckNegativeBuild, Status: Skip, Detail: "enable with --build --negative"}
	}
	result, err := runBuild(ctx, executor, build.BuildRequest{
		Dockerfile: target.Path,
		ContextDir: target.ContextDir,
		Image:      target.Image + "-negative",
		BaseImage:  opts.UnresolvableBase,
		NoCache:    true,
	}, opts)
	if err != nil {
		return Finding{Check: CheckNegativeBuild, Status: Fail, Detail: err.Error()}
	}
	if result.Error == nil && result.ExitCode == 0 {
		return Finding{Check: CheckNegativeBuild, Status: Fail, Detail: fmt.Sprintf("build with base %s unexpectedly succeeded", opts.UnresolvableBase)}
	}
	return Finding{Check: CheckNegativeBuild, Status: Pass, Detail: "build rejected the unresolvable base"}
}

func checkWorkspaceDir(ctx context.Context, executor build.Executor, target Target, opts Options, buildFinding Finding) Finding {
	if skip, detail := needsImage(opts, buildFinding); skip {
		return Finding{Check: CheckWorkspaceDir, Status: Skip, Detail: detail}
	}
	result, err := runProbe(ctx, executor, target, opts, `test -d "$WORKSPACE_DIR"`)
	if err != nil {
		return Finding{Check: CheckWorkspaceDir, Status: Fail, Detail: err.Error()}
	}
	if result.Error != nil || result.ExitCode != 0 {
		return Finding{Check: CheckWorkspaceDir, Status: Fail, Detail: fmt.Sprintf("workspace directory missing (exit %d)", result.ExitCode)}
	}
	return Finding{Check: CheckWorkspaceDir, Status: Pass}
}

func checkWorkspaceEnv(ctx context.Context, executor build.Executor, target Target, opts Options, buildFinding Finding) Finding {
	if skip, detail := needsImage(opts, buildFinding); skip {
		return Finding{Check: CheckWorkspaceEnv, Status: Skip, Detail: detail}
	}
	result, err := runProbe(ctx, executor, target, opts, `test -n "$WORKSPACE_DIR" && echo "WORKSPACE_DIR=$WORKSPACE_DIR"`)
	if err != nil {
		return Finding{Check: CheckWorkspaceEnv, Status: Fail, Detail: err.Error()}
	}
	if result.Error != nil || result.ExitCode != 0 {
		return Finding{Check: CheckWorkspaceEnv, Status: Fail, Detail: fmt.Sprintf("WORKSPACE_DIR not set (exit %d)", result.ExitCode)}
	}
	// When the recipe declares a path, the value in the image must match.
	if declared, err := dockerfile.Workspace(target.Contents); err == nil {
		if !strings.Contains(result.OutputTail, "WORKSPACE_DIR="+declared) {
			return Finding{Check: CheckWorkspaceEnv, Status: Fail, Detail: fmt.Sprintf("WORKSPACE_DIR does not match declared %s", declared)}
		}
		return Finding{Check: CheckWorkspaceEnv, Status: Pass, Detail: declared}
	}
	return Finding{Check: CheckWorkspaceEnv, Status: Pass}
}

func needsImage(opts Options, buildFinding Finding) (bool, string) {
	if !opts.Build {
		return true, "enable with --build"
	}
	if buildFinding.Status != Pass {
		return true, "requires a successful build"
	}
	return false, ""
}

func runBuild(ctx context.Context, executor build.Executor, req build.BuildRequest, opts Options) (build.Result, error) {
	handle, err := executor.StartBuild(ctx, req, build.Options{Timeout: opts.Timeout})
	if err != nil {
		return build.Result{}, err
	}
	return handle.Wait(ctx)
}

func runProbe(ctx context.Context, executor build.Executor, target Target, opts Options, script string) (build.Result, error) {
	handle, err := executor.StartRun(ctx, build.RunRequest{
		Image:  target.Image,
		Script: script,
	}, build.Options{Timeout: opts.Timeout})
	if err != nil {
		return build.Result{}, err
	}
	return handle.Wait(ctx)
}
