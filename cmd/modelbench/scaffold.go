// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log"
	"strings"

	"github.com/modelbench/modelbench/pkg/dockerfile"
	"github.com/modelbench/modelbench/pkg/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold -base-docker REF [MODEL|PREFIX]",
	Short: "Emit a Dockerfile carrying the benchmark image contract",
	Args:  cobra.MaximumNArgs(1),
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		if *baseDocker == "" {
			return errors.New("scaffold requires -base-docker")
		}
		params := dockerfile.ScaffoldParams{BaseImage: *baseDocker}
		if *pipInstall != "" {
			params.PipInstall = strings.Split(*pipInstall, ",")
		}
		if err := dockerfile.Scaffold(cmd.OutOrStdout(), params); err != nil {
			return err
		}
		if len(args) == 1 {
			prefix := args[0]
			// A catalog model name resolves to its recipe prefix; anything
			// else is taken as the prefix itself.
			if catalog, err := model.Load(*modelsPath); err == nil {
				if m, err := catalog.Get(args[0]); err == nil {
					prefix = m.Dockerfile
				}
			}
			log.Printf("[scaffold] save as %s.<os>.<vendor>.Dockerfile to register it for selection", prefix)
		}
		return nil
	},
}
