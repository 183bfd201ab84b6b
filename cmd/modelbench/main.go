// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// modelbench builds and runs containerized ML benchmarks: it resolves each
// model's Dockerfile against the host GPU, builds the image, executes the
// model's run script in a container, and records results to perf.csv.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-billy/v5/osfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/modelbench/modelbench/pkg/model"
	"github.com/modelbench/modelbench/pkg/modeldef"
	"github.com/spf13/cobra"
)

var (
	// Shared
	modelsPath   = flag.String("models", "models.json", "path to the model catalog")
	defsDir      = flag.String("defs", "", "directory of per-model definition overrides (inside -defs-repo when that is set)")
	defsRepo     = flag.String("defs-repo", "", "git repository serving definition overrides instead of the local filesystem")
	defsRef      = flag.String("defs-ref", "", "branch of -defs-repo to read (default main)")
	artifactsLoc = flag.String("artifacts", "", "artifact store location (a directory or gs:// bucket); empty keeps artifacts in the workspace only")
	quiet        = flag.Bool("quiet", false, "suppress streamed docker output")
	baseDocker   = flag.String("base-docker", "", "override for the BASE_DOCKER build argument")
	format       = flag.String("format", "", "output format")
	tags         = flag.String("tags", "", "comma-separated tags a model must carry to be selected")
	// build
	noCache           = flag.Bool("no-cache", false, "build without the docker cache")
	maxParallel       = flag.Int("max-parallel", 1, "maximum simultaneous docker builds")
	skipRegistryCheck = flag.Bool("skip-registry-check", false, "skip the registry probe for base images")
	// run
	pipeline     = flag.String("pipeline", "local", "pipeline name recorded with results")
	runTimeout   = flag.Int("timeout", 0, "run timeout in seconds; overrides the model's value, negative disables the deadline")
	cpuset       = flag.String("cpuset", "", "cpuset-cpus value for run containers")
	keepAlive    = flag.Bool("keep-alive", false, "leave the benchmark container running for interactive debugging")
	keepImage    = flag.Bool("keep-image", false, "keep built images after their runs finish")
	skipGPUCheck = flag.Bool("skip-gpu-check", false, "run even when a model wants more GPUs than the host has")
	outputDir    = flag.String("output", ".", "directory receiving per-run workspaces and perf.csv")
	// verify
	dockerfileFlag = flag.String("dockerfile", "", "verify a Dockerfile path directly instead of a model's")
	buildCheck     = flag.Bool("build", false, "verify with a real docker build and container probes")
	negativeCheck  = flag.Bool("negative", false, "also verify the build fails against an unresolvable base")
	// scaffold
	pipInstall = flag.String("pip", "", "comma-separated extra pip packages the scaffolded image installs")
	// report
	reference = flag.String("reference", "", "reference perf.csv used to compute relative change")
	exportBQ  = flag.String("export-bq", "", "BigQuery destination as project.dataset.table")
	tuiFlag   = flag.Bool("tui", false, "browse results in a terminal UI")
)

var (
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	white  = color.New(color.FgWhite).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "modelbench [subcommand]",
	Short: "A CLI for building and running containerized ML benchmarks",
}

// loadModels returns the catalog entries selected by names and --tags, with
// any definition overrides applied. The second return maps model names to
// base image overrides from their definitions.
func loadModels(ctx context.Context, names []string) ([]model.Model, map[string]string, error) {
	catalog, err := model.Load(*modelsPath)
	if err != nil {
		return nil, nil, err
	}
	models, err := catalog.Filter(names, splitTags())
	if err != nil {
		return nil, nil, err
	}
	bases := make(map[string]string)
	defs, err := definitionSet()
	if err != nil {
		return nil, nil, err
	}
	if defs == nil {
		return models, bases, nil
	}
	for i, m := range models {
		d, err := defs.Get(ctx, m.Name)
		if err != nil {
			return nil, nil, err
		}
		if d == nil {
			continue
		}
		applied, base := d.Apply(m)
		models[i] = applied
		if base != "" {
			bases[m.Name] = base
		}
	}
	return models, bases, nil
}

// definitionSet resolves where overrides come from: a git repository when
// -defs-repo is set (with -defs naming the directory inside it), a local
// directory for bare -defs, nil when neither is given.
func definitionSet() (modeldef.Set, error) {
	switch {
	case *defsRepo != "":
		opts := &modeldef.GitSetOptions{
			CloneOptions: git.CloneOptions{URL: *defsRepo, Depth: 1},
			RelativePath: *defsDir,
		}
		if *defsRef != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(*defsRef)
		}
		return modeldef.NewGitSet(opts)
	case *defsDir != "":
		return modeldef.NewFilesystemSet(osfs.New(*defsDir)), nil
	}
	return nil, nil
}

func splitTags() []string {
	if *tags == "" {
		return nil
	}
	return strings.Split(*tags, ",")
}

// streamWriter is where docker and git output goes when not quiet.
func streamWriter() io.Writer {
	if *quiet {
		return io.Discard
	}
	return os.Stdout
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().AddGoFlag(flag.Lookup("format"))

	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().AddGoFlag(flag.Lookup("models"))
	modelsCmd.Flags().AddGoFlag(flag.Lookup("defs"))
	modelsCmd.Flags().AddGoFlag(flag.Lookup("defs-repo"))
	modelsCmd.Flags().AddGoFlag(flag.Lookup("defs-ref"))
	modelsCmd.Flags().AddGoFlag(flag.Lookup("tags"))

	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().AddGoFlag(flag.Lookup("models"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("defs"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("defs-repo"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("defs-ref"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("tags"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("base-docker"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("no-cache"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("max-parallel"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("skip-registry-check"))
	buildCmd.Flags().AddGoFlag(flag.Lookup("quiet"))

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().AddGoFlag(flag.Lookup("models"))
	runCmd.Flags().AddGoFlag(flag.Lookup("defs"))
	runCmd.Flags().AddGoFlag(flag.Lookup("defs-repo"))
	runCmd.Flags().AddGoFlag(flag.Lookup("defs-ref"))
	runCmd.Flags().AddGoFlag(flag.Lookup("tags"))
	runCmd.Flags().AddGoFlag(flag.Lookup("artifacts"))
	runCmd.Flags().AddGoFlag(flag.Lookup("pipeline"))
	runCmd.Flags().AddGoFlag(flag.Lookup("base-docker"))
	runCmd.Flags().AddGoFlag(flag.Lookup("timeout"))
	runCmd.Flags().AddGoFlag(flag.Lookup("cpuset"))
	runCmd.Flags().AddGoFlag(flag.Lookup("keep-alive"))
	runCmd.Flags().AddGoFlag(flag.Lookup("keep-image"))
	runCmd.Flags().AddGoFlag(flag.Lookup("skip-gpu-check"))
	runCmd.Flags().AddGoFlag(flag.Lookup("no-cache"))
	runCmd.Flags().AddGoFlag(flag.Lookup("output"))
	runCmd.Flags().AddGoFlag(flag.Lookup("quiet"))

	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().AddGoFlag(flag.Lookup("quiet"))

	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().AddGoFlag(flag.Lookup("models"))
	verifyCmd.Flags().AddGoFlag(flag.Lookup("defs"))
	verifyCmd.Flags().AddGoFlag(flag.Lookup("defs-repo"))
	verifyCmd.Flags().AddGoFlag(flag.Lookup("defs-ref"))
	verifyCmd.Flags().AddGoFlag(flag.Lookup("dockerfile"))
	verifyCmd.Flags().AddGoFlag(flag.Lookup("build"))
	verifyCmd.Flags().AddGoFlag(flag.Lookup("negative"))

	rootCmd.AddCommand(scaffoldCmd)
	scaffoldCmd.Flags().AddGoFlag(flag.Lookup("models"))
	scaffoldCmd.Flags().AddGoFlag(flag.Lookup("base-docker"))
	scaffoldCmd.Flags().AddGoFlag(flag.Lookup("pip"))

	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().AddGoFlag(flag.Lookup("format"))
	reportCmd.Flags().AddGoFlag(flag.Lookup("reference"))
	reportCmd.Flags().AddGoFlag(flag.Lookup("export-bq"))
	reportCmd.Flags().AddGoFlag(flag.Lookup("tui"))
	reportCmd.Flags().AddGoFlag(flag.Lookup("artifacts"))

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
