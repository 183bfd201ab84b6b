// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/build/local"
	"github.com/modelbench/modelbench/pkg/dockerfile"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/modelbench/modelbench/pkg/verify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [-build [-negative]] [-dockerfile F] [MODEL]",
	Short: "Check a benchmark Dockerfile against the image contract",
	Args:  cobra.MaximumNArgs(1),
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fsys := osfs.New(".")
		var dfPath string
		switch {
		case *dockerfileFlag != "":
			dfPath = *dockerfileFlag
		case len(args) == 1:
			models, _, err := loadModels(ctx, args)
			if err != nil {
				return err
			}
			if len(models) == 0 {
				return errors.Errorf("model %q not selected", args[0])
			}
			host, err := hostinfo.New().Info(ctx)
			if err != nil {
				return err
			}
			if dfPath, err = dockerfile.Select(fsys, models[0].Dockerfile, host.OS, host.Vendor); err != nil {
				return err
			}
		default:
			return errors.New("provide a model name or -dockerfile")
		}
		contents, err := dockerfile.Read(fsys, dfPath)
		if err != nil {
			return err
		}
		// The executor is only needed for the docker-backed checks.
		var executor build.Executor
		if *buildCheck {
			e, err := local.NewDockerExecutor(local.DockerExecutorConfig{})
			if err != nil {
				return err
			}
			defer e.Close(context.Background())
			executor = e
		}
		findings := verify.Run(ctx, executor, verify.Target{Path: dfPath, Contents: contents}, verify.Options{
			Build:    *buildCheck,
			Negative: *negativeCheck,
		})
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n", white(dfPath))
		for _, f := range findings {
			if f.Detail != "" {
				fmt.Fprintf(w, "  %s %s: %s\n", verdict(f.Status), f.Check, f.Detail)
			} else {
				fmt.Fprintf(w, "  %s %s\n", verdict(f.Status), f.Check)
			}
		}
		if verify.Failed(findings) {
			return errors.Errorf("verification failed for %s", dfPath)
		}
		return nil
	},
}

func verdict(s verify.Status) string {
	switch s {
	case verify.Pass:
		return green(string(s))
	case verify.Fail:
		return red(string(s))
	default:
		return yellow(string(s))
	}
}
