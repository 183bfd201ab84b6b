// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log"

	"github.com/modelbench/modelbench/internal/console"
	"github.com/modelbench/modelbench/pkg/build/dockerx"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull REF",
	Short: "Pull an image if not already present, with progress",
	Args:  cobra.ExactArgs(1),
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := dockerx.NewManager()
		if err != nil {
			// The engine API needs DOCKER_HOST to point at the daemon; the
			// docker CLI resolves contexts itself, so fall back to it under
			// a pty to keep its native progress rendering.
			log.Printf("[pull] engine API unavailable (%v), using docker CLI", err)
			runner := &console.Runner{Out: streamWriter(), Quiet: *quiet}
			if err := runner.RunPTY(ctx, "docker", "pull", args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("Present"), args[0])
			return nil
		}
		defer mgr.Close()
		if err := mgr.EnsureImage(ctx, args[0], streamWriter()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("Present"), args[0])
		return nil
	},
}
