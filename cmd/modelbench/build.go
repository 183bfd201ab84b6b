// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/modelbench/modelbench/internal/ocix"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/build/local"
	"github.com/modelbench/modelbench/pkg/dockerfile"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/modelbench/modelbench/pkg/model"
	"github.com/modelbench/modelbench/pkg/perf"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// buildJob is one resolved image build: the catalog entry, the Dockerfile
// picked for this host, and any base image override.
type buildJob struct {
	model      model.Model
	dockerfile string
	base       string
}

var buildCmd = &cobra.Command{
	Use:   "build [-base-docker REF] [-no-cache] [-max-parallel N] MODEL...",
	Short: "Build benchmark images for the selected models",
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		models, bases, err := loadModels(ctx, args)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			return errors.New("no models selected")
		}
		host, err := hostinfo.New().Info(ctx)
		if err != nil {
			return err
		}
		fsys := osfs.New(".")
		var jobs []buildJob
		for _, m := range models {
			path, err := dockerfile.Select(fsys, m.Dockerfile, host.OS, host.Vendor)
			if err != nil {
				return err
			}
			base := *baseDocker
			if base == "" {
				base = bases[m.Name]
			}
			jobs = append(jobs, buildJob{model: m, dockerfile: path, base: base})
		}
		if !*skipRegistryCheck {
			checked := make(map[string]bool)
			for _, j := range jobs {
				ref := j.base
				if ref == "" {
					contents, err := dockerfile.Read(fsys, j.dockerfile)
					if err != nil {
						return err
					}
					if ref, err = dockerfile.BaseImage(contents); err != nil {
						return errors.Wrapf(err, "parsing %s", j.dockerfile)
					}
				}
				if checked[ref] {
					continue
				}
				digest, err := ocix.Digest(ctx, ref)
				if err != nil {
					return errors.Wrapf(err, "base image %s is not pullable", ref)
				}
				log.Printf("[build] base %s resolves to %s", ref, digest)
				checked[ref] = true
			}
		}
		executor, err := local.NewDockerExecutor(local.DockerExecutorConfig{MaxParallel: *maxParallel})
		if err != nil {
			return err
		}
		defer executor.Close(context.Background())
		handles := make([]build.Handle, len(jobs))
		for i, j := range jobs {
			h, err := executor.StartBuild(ctx, build.BuildRequest{
				Model:      j.model,
				Dockerfile: j.dockerfile,
				ContextDir: ".",
				BaseImage:  j.base,
				NoCache:    *noCache,
			}, build.Options{})
			if err != nil {
				return errors.Wrapf(err, "starting build for %s", j.model.Name)
			}
			go func(h build.Handle) {
				_, _ = io.Copy(streamWriter(), h.OutputStream())
			}(h)
			handles[i] = h
		}
		w := cmd.OutOrStdout()
		var failed int
		for i, h := range handles {
			name := jobs[i].model.Name
			result, err := h.Wait(ctx)
			if err != nil {
				return errors.Wrapf(err, "waiting on build for %s", name)
			}
			if result.Error != nil {
				failed++
				fmt.Fprintf(w, "%s %s: %v\n", red("FAIL"), name, result.Error)
				if *quiet && result.OutputTail != "" {
					fmt.Fprintln(w, result.OutputTail)
				}
				continue
			}
			fmt.Fprintf(w, "%s %s -> %s (%ss)\n", green("OK"), name, local.ImageTag(name), perf.FormatDuration(result.Duration))
		}
		if failed > 0 {
			return errors.Errorf("%d of %d builds failed", failed, len(jobs))
		}
		return nil
	},
}
